package gblup

import (
	"errors"
	"fmt"

	"github.com/breedkit/gblup/genotype"
	"github.com/breedkit/gblup/grm"
	"github.com/breedkit/gblup/internal/linalg"
	"github.com/breedkit/gblup/solver"
)

var (
	// ErrClosed is returned when calling a closed engine.
	ErrClosed = errors.New("engine is closed")

	// ErrEmptyInput is returned for a dosage matrix with zero individuals
	// or zero markers.
	ErrEmptyInput = errors.New("empty input")

	// ErrNoUsableMarkers is returned when every marker is excluded as
	// non-informative.
	ErrNoUsableMarkers = errors.New("no usable markers")

	// ErrDegenerateScale is returned when the VanRaden scale factor is too
	// close to zero to divide by.
	ErrDegenerateScale = errors.New("degenerate GRM scale factor")

	// ErrSingularMatrix is returned when the mixed-model system cannot be
	// factorized even after regularization.
	ErrSingularMatrix = errors.New("singular mixed-model system")

	// ErrNotSymmetric is returned when a caller-supplied relationship
	// matrix is not symmetric within tolerance.
	ErrNotSymmetric = errors.New("relationship matrix is not symmetric")

	// ErrUnsupportedPloidy is returned for any ploidy other than 2.
	// The engine implements the diploid dosage model only.
	ErrUnsupportedPloidy = errors.New("only diploid (ploidy 2) genotypes are supported")
)

// InvalidDosageError reports a genotype call outside {0, 1, 2, missing}.
//
// The underlying package error can be accessed via errors.Unwrap.
type InvalidDosageError struct {
	Individual int
	Marker     int
	Value      float64
	cause      error
}

func (e *InvalidDosageError) Error() string {
	return fmt.Sprintf("invalid dosage %v at individual %d, marker %d", e.Value, e.Individual, e.Marker)
}

func (e *InvalidDosageError) Unwrap() error { return e.cause }

// DimensionError reports a shape mismatch between inputs: a phenotype
// vector that does not match the relationship matrix, or a non-square
// relationship matrix.
type DimensionError struct {
	Expected int
	Actual   int
	cause    error
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *DimensionError) Unwrap() error { return e.cause }

// PhenotypeError reports a NaN or infinite phenotype observation.
type PhenotypeError struct {
	Index int
	Value float64
	cause error
}

func (e *PhenotypeError) Error() string {
	return fmt.Sprintf("non-finite phenotype %v at index %d", e.Value, e.Index)
}

func (e *PhenotypeError) Unwrap() error { return e.cause }

// HeritabilityError reports a heritability outside the open interval (0, 1).
type HeritabilityError struct {
	Value float64
	cause error
}

func (e *HeritabilityError) Error() string {
	return fmt.Sprintf("heritability %v out of range (0, 1)", e.Value)
}

func (e *HeritabilityError) Unwrap() error { return e.cause }

// InvariantViolationError reports a derived reliability escaping [0, 1]
// beyond floating tolerance. It signals an inconsistent relationship
// matrix, not a recoverable input problem.
type InvariantViolationError struct {
	Individual int
	Value      float64
	cause      error
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("reliability %v at individual %d outside [0, 1]", e.Value, e.Individual)
}

func (e *InvariantViolationError) Unwrap() error { return e.cause }

// IsValidation reports whether err is an input-validation failure: the
// request was malformed and retrying with the same inputs cannot succeed.
func IsValidation(err error) bool {
	var de *DimensionError
	var he *HeritabilityError
	var ie *InvalidDosageError
	var pe *PhenotypeError
	return errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrNotSymmetric) ||
		errors.Is(err, ErrUnsupportedPloidy) ||
		errors.As(err, &ie) ||
		errors.As(err, &de) ||
		errors.As(err, &he) ||
		errors.As(err, &pe)
}

// IsComputation reports whether err is a numeric failure on well-formed
// inputs. These are deterministic and are never retried internally; the
// caller may retry with regularized inputs.
func IsComputation(err error) bool {
	var iv *InvariantViolationError
	return errors.Is(err, ErrNoUsableMarkers) ||
		errors.Is(err, ErrDegenerateScale) ||
		errors.Is(err, ErrSingularMatrix) ||
		errors.As(err, &iv)
}

// translateError normalizes sub-package errors into the facade taxonomy so
// callers only import the root package for matching.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Sentinel unification.
	if errors.Is(err, genotype.ErrEmptyInput) || errors.Is(err, genotype.ErrRaggedMatrix) {
		return fmt.Errorf("%w: %w", ErrEmptyInput, err)
	}
	if errors.Is(err, genotype.ErrNoUsableMarkers) {
		return fmt.Errorf("%w: %w", ErrNoUsableMarkers, err)
	}
	if errors.Is(err, grm.ErrDegenerateScale) {
		return fmt.Errorf("%w: %w", ErrDegenerateScale, err)
	}
	if errors.Is(err, grm.ErrNotSymmetric) {
		return fmt.Errorf("%w: %w", ErrNotSymmetric, err)
	}
	if errors.Is(err, solver.ErrSingularSystem) || errors.Is(err, linalg.ErrSingular) {
		return fmt.Errorf("%w: %w", ErrSingularMatrix, err)
	}
	if errors.Is(err, genotype.ErrPloidyUnsupported) {
		return fmt.Errorf("%w: %w", ErrUnsupportedPloidy, err)
	}

	// Typed normalization.
	var dos *genotype.DosageError
	if errors.As(err, &dos) {
		return &InvalidDosageError{Individual: dos.Row, Marker: dos.Col, Value: dos.Value, cause: err}
	}
	var sd *solver.DimensionError
	if errors.As(err, &sd) {
		return &DimensionError{Expected: sd.Individuals, Actual: sd.Phenotypes, cause: err}
	}
	var gd *grm.DimensionError
	if errors.As(err, &gd) {
		return &DimensionError{Expected: gd.Rows, Actual: gd.Cols, cause: err}
	}
	var he *solver.HeritabilityError
	if errors.As(err, &he) {
		return &HeritabilityError{Value: he.Value, cause: err}
	}
	var pe *solver.PhenotypeError
	if errors.As(err, &pe) {
		return &PhenotypeError{Index: pe.Index, Value: pe.Value, cause: err}
	}
	var iv *solver.InvariantViolationError
	if errors.As(err, &iv) {
		return &InvariantViolationError{Individual: iv.Index, Value: iv.Value, cause: err}
	}

	return err
}
