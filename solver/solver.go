// Package solver fits the GBLUP mixed model: given a genomic relationship
// matrix, phenotypes and a supplied heritability, it shrinks phenotypic
// deviations through A = (G+λI)⁻¹G to produce breeding values with
// per-individual reliability and accuracy.
package solver

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/breedkit/gblup/grm"
	"github.com/breedkit/gblup/internal/linalg"
)

// Options configure a solve.
type Options struct {
	// ReliabilityTolerance is the band beyond [0, 1] inside which a derived
	// reliability is treated as floating-point noise and clamped.
	ReliabilityTolerance float64
}

// DefaultOptions returns the default solve options.
func DefaultOptions() Options {
	return Options{
		ReliabilityTolerance: 1e-6,
	}
}

// Option modifies solve options.
type Option func(*Options)

// WithReliabilityTolerance overrides the reliability clamp band.
func WithReliabilityTolerance(tol float64) Option {
	return func(o *Options) {
		o.ReliabilityTolerance = tol
	}
}

// Result is the immutable outcome of one GBLUP solve.
type Result struct {
	GEBV        []float64 `json:"gebv"`
	Reliability []float64 `json:"reliability"`
	Accuracy    []float64 `json:"accuracy"`

	GeneticVariance  float64 `json:"genetic_variance"`
	ResidualVariance float64 `json:"residual_variance"`
	Mean             float64 `json:"mean"`

	NIndividuals int `json:"n_individuals"`
	MarkersUsed  int `json:"markers_used"`

	// Factorization records which decomposition served the solve. Not part
	// of the wire format.
	Factorization string `json:"-"`
}

// Solve fits the mixed model against g and y with heritability h2.
//
// λ = (1-h²)/h², u = A(y - μ1) with A = (G+λI)⁻¹G, reliability_i =
// 1 - λ·A_ii, accuracy_i = sqrt(max(0, reliability_i)). The variance
// partition is taken from the phenotypes: σ²g = h²·Var(y),
// σ²e = (1-h²)·Var(y), sample variance.
func Solve(ctx context.Context, g *grm.Matrix, y []float64, h2 float64, optFns ...Option) (*Result, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if math.IsNaN(h2) || h2 <= 0 || h2 >= 1 {
		return nil, &HeritabilityError{Value: h2}
	}
	n := g.N()
	if len(y) != n {
		return nil, &DimensionError{Phenotypes: len(y), Individuals: n}
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &PhenotypeError{Index: i, Value: v}
		}
	}

	// The factorization itself is not interruptible; callers that need
	// cancellation discard the result instead.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	lambda := (1 - h2) / h2

	state, err := linalg.NewSolverState(g.Sym(), lambda)
	if err != nil {
		if errors.Is(err, linalg.ErrSingular) {
			return nil, ErrSingularSystem
		}
		return nil, err
	}

	mu := stat.Mean(y, nil)
	centered := make([]float64, n)
	for i, v := range y {
		centered[i] = v - mu
	}
	gebv := state.Apply(centered)

	rel, acc, err := reliabilities(state.DiagA(), lambda, opts.ReliabilityTolerance)
	if err != nil {
		return nil, err
	}

	var vy float64
	if n > 1 {
		vy = stat.Variance(y, nil)
	}

	return &Result{
		GEBV:             gebv,
		Reliability:      rel,
		Accuracy:         acc,
		GeneticVariance:  h2 * vy,
		ResidualVariance: (1 - h2) * vy,
		Mean:             mu,
		NIndividuals:     n,
		MarkersUsed:      g.MarkersUsed(),
		Factorization:    string(state.Method()),
	}, nil
}
