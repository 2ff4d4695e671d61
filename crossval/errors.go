package crossval

import (
	"errors"
	"fmt"
)

var (
	// ErrBadFoldCount is returned when fewer than two folds are requested.
	ErrBadFoldCount = errors.New("crossval: fold count must be at least 2")

	// ErrBadRepeats is returned for a non-positive repeat count.
	ErrBadRepeats = errors.New("crossval: repeat count must be at least 1")
)

// MethodError is returned when the configured model is not one of the
// supported methods.
type MethodError struct {
	Method Method
}

func (e *MethodError) Error() string {
	return fmt.Sprintf("crossval: unknown method %q", string(e.Method))
}

// FoldCountError is returned when the population is too small to be split
// into the requested number of folds.
type FoldCountError struct {
	Folds       int
	Individuals int
}

func (e *FoldCountError) Error() string {
	return fmt.Sprintf("crossval: %d-fold validation needs at least %d individuals, have %d",
		e.Folds, e.Folds, e.Individuals)
}
