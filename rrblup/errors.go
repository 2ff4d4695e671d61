package rrblup

import (
	"errors"
	"fmt"
)

// ErrTooFewIndividuals is returned when fewer than MinIndividuals lines are
// supplied; the marker-effect model is not estimable below that.
var ErrTooFewIndividuals = errors.New("rrblup: need at least 3 individuals")

// MarkerMismatchError reports prediction input whose marker count differs
// from the fitted model.
type MarkerMismatchError struct {
	Got, Want int
}

func (e *MarkerMismatchError) Error() string {
	return fmt.Sprintf("rrblup: %d markers in prediction input, model has %d", e.Got, e.Want)
}
