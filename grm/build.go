package grm

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/breedkit/gblup/genotype"
)

// Options configure a GRM build.
type Options struct {
	// ScaleEpsilon is the threshold below which the VanRaden denominator is
	// treated as degenerate.
	ScaleEpsilon float64
}

// DefaultOptions returns the default build options.
func DefaultOptions() Options {
	return Options{
		ScaleEpsilon: 1e-12,
	}
}

// Option modifies build options.
type Option func(*Options)

// WithScaleEpsilon overrides the degenerate-scale threshold.
func WithScaleEpsilon(eps float64) Option {
	return func(o *Options) {
		o.ScaleEpsilon = eps
	}
}

// Build estimates allele frequencies from mx and builds the VanRaden
// Method 1 relationship matrix G = ZZᵀ/k.
func Build(ctx context.Context, mx *genotype.Matrix, optFns ...Option) (*Matrix, error) {
	ft, err := mx.Frequencies()
	if err != nil {
		return nil, err
	}
	return BuildFromFrequencies(ctx, mx, ft, optFns...)
}

// BuildFromFrequencies builds G against a precomputed frequency table. The
// table may come from a different matrix over the same markers, which is
// how train-set frequencies are applied to held-out individuals.
func BuildFromFrequencies(ctx context.Context, mx *genotype.Matrix, ft *genotype.FrequencyTable, optFns ...Option) (*Matrix, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	cols := usableColumns(ft)
	k := vanRadenScale(ft, cols)
	if k <= opts.ScaleEpsilon {
		return nil, ErrDegenerateScale
	}

	z, err := centered(ctx, mx, ft, cols)
	if err != nil {
		return nil, err
	}

	n := mx.Individuals()
	sym := mat.NewSymDense(n, nil)
	sym.SymOuterK(1/k, z)

	g := &Matrix{
		sym:         sym,
		n:           n,
		markersUsed: len(cols),
		scale:       k,
	}
	g.meanDiag, g.meanOffDiag = diagStats(sym)
	return g, nil
}

// Cross computes the test-by-train relationship block
// Z_test·Z_trainᵀ/k using the training set's frequency table. Both
// matrices must cover the same markers.
func Cross(ctx context.Context, test, train *genotype.Matrix, ft *genotype.FrequencyTable, optFns ...Option) (*mat.Dense, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if test.Markers() != train.Markers() {
		return nil, &DimensionError{Rows: test.Markers(), Cols: train.Markers()}
	}

	cols := usableColumns(ft)
	k := vanRadenScale(ft, cols)
	if k <= opts.ScaleEpsilon {
		return nil, ErrDegenerateScale
	}

	zTest, err := centered(ctx, test, ft, cols)
	if err != nil {
		return nil, err
	}
	zTrain, err := centered(ctx, train, ft, cols)
	if err != nil {
		return nil, err
	}

	var cross mat.Dense
	cross.Mul(zTest, zTrain.T())
	cross.Scale(1/k, &cross)
	return &cross, nil
}

func usableColumns(ft *genotype.FrequencyTable) []int {
	cols := make([]int, 0, ft.UsableCount())
	for j := 0; j < ft.Markers(); j++ {
		if ft.IsUsable(j) {
			cols = append(cols, j)
		}
	}
	return cols
}

func vanRadenScale(ft *genotype.FrequencyTable, cols []int) float64 {
	var k float64
	for _, j := range cols {
		p := ft.P(j)
		k += p * (1 - p)
	}
	return 2 * k
}

// centered materializes Z = X - 2p over the usable columns. Missing calls
// are mean imputed, so their centered value is exactly zero.
func centered(ctx context.Context, mx *genotype.Matrix, ft *genotype.FrequencyTable, cols []int) (*mat.Dense, error) {
	n := mx.Individuals()
	z := mat.NewDense(n, len(cols), nil)

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		for c, j := range cols {
			x, ok := mx.Dosage(i, j)
			if !ok {
				continue
			}
			z.Set(i, c, x-genotype.Ploidy*ft.P(j))
		}
	}
	return z, nil
}
