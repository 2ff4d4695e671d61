package genotype

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when the raw matrix has zero individuals or
	// zero markers.
	ErrEmptyInput = errors.New("genotype: empty input")

	// ErrRaggedMatrix is returned when rows of the raw matrix differ in length.
	ErrRaggedMatrix = errors.New("genotype: ragged matrix")

	// ErrPloidyUnsupported is returned for any ploidy other than 2.
	// The engine implements the diploid dosage model only.
	ErrPloidyUnsupported = errors.New("genotype: only diploid (ploidy 2) genotypes are supported")

	// ErrNoUsableMarkers is returned when every marker is excluded from the
	// variance-bearing set (monomorphic or too few calls).
	ErrNoUsableMarkers = errors.New("genotype: no usable markers")
)

// DosageError reports a genotype call outside {0, 1, 2, missing}.
type DosageError struct {
	Row   int
	Col   int
	Value float64
}

func (e *DosageError) Error() string {
	return fmt.Sprintf("genotype: invalid dosage %v at individual %d, marker %d", e.Value, e.Row, e.Col)
}
