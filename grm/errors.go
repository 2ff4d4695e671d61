package grm

import (
	"errors"
	"fmt"
)

var (
	// ErrDegenerateScale is returned when the VanRaden scale factor k is too
	// close to zero to divide by. There is no silent fallback scale.
	ErrDegenerateScale = errors.New("grm: degenerate scale factor")

	// ErrNotSymmetric is returned by FromDense when the supplied matrix is
	// not symmetric within tolerance.
	ErrNotSymmetric = errors.New("grm: matrix is not symmetric")
)

// DimensionError reports a shape mismatch in caller-supplied matrices.
type DimensionError struct {
	Rows, Cols int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("grm: matrix is %dx%d, want square", e.Rows, e.Cols)
}
