package solver

import (
	"errors"
	"fmt"
)

// ErrSingularSystem is returned when the mixed-model system (G + λI) cannot
// be factorized even after regularization.
var ErrSingularSystem = errors.New("solver: singular mixed-model system")

// HeritabilityError reports an h² outside the open interval (0, 1).
type HeritabilityError struct {
	Value float64
}

func (e *HeritabilityError) Error() string {
	return fmt.Sprintf("solver: heritability %v out of range (0, 1)", e.Value)
}

// DimensionError reports a phenotype vector that does not match the
// relationship matrix.
type DimensionError struct {
	Phenotypes  int
	Individuals int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("solver: %d phenotypes for %d individuals", e.Phenotypes, e.Individuals)
}

// PhenotypeError reports a non-finite phenotype value.
type PhenotypeError struct {
	Index int
	Value float64
}

func (e *PhenotypeError) Error() string {
	return fmt.Sprintf("solver: non-finite phenotype %v at index %d", e.Value, e.Index)
}

// InvariantViolationError reports a derived reliability escaping [0, 1]
// beyond floating tolerance. It signals an inconsistent relationship
// matrix or variance ratio, not a recoverable input problem.
type InvariantViolationError struct {
	Index int
	Value float64
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("solver: reliability %v at individual %d outside [0, 1]", e.Value, e.Index)
}
