package solver

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breedkit/gblup/genotype"
	"github.com/breedkit/gblup/grm"
)

func identity(t *testing.T, n int) *grm.Matrix {
	t.Helper()
	raw := make([][]float64, n)
	for i := range raw {
		raw[i] = make([]float64, n)
		raw[i][i] = 1
	}
	g, err := grm.FromDense(raw)
	require.NoError(t, err)
	return g
}

func TestSolve(t *testing.T) {
	ctx := context.Background()
	g := identity(t, 3)
	y := []float64{1, -1, 0}

	res, err := Solve(ctx, g, y, 0.5)
	require.NoError(t, err)

	// λ = 1, A = I/2: gebv = (y-μ)/2, reliability = 1/2.
	assert.InDelta(t, 0.5, res.GEBV[0], 1e-12)
	assert.InDelta(t, -0.5, res.GEBV[1], 1e-12)
	assert.InDelta(t, 0.0, res.GEBV[2], 1e-12)

	for i := 0; i < 3; i++ {
		assert.InDelta(t, 0.5, res.Reliability[i], 1e-12)
		assert.InDelta(t, math.Sqrt(0.5), res.Accuracy[i], 1e-12)
	}

	assert.InDelta(t, 0.0, res.Mean, 1e-12)
	assert.InDelta(t, 0.5, res.GeneticVariance, 1e-12)
	assert.InDelta(t, 0.5, res.ResidualVariance, 1e-12)
	assert.Equal(t, 3, res.NIndividuals)
	assert.Equal(t, "cholesky", res.Factorization)
}

func TestSolve_HighHeritabilityLimit(t *testing.T) {
	ctx := context.Background()
	g := identity(t, 3)
	y := []float64{2, 5, -1}
	mu := 2.0

	res, err := Solve(ctx, g, y, 0.999)
	require.NoError(t, err)

	for i, v := range y {
		assert.InDelta(t, v-mu, res.GEBV[i], 0.01)
		assert.Greater(t, res.Reliability[i], 0.99)
	}
}

func TestSolve_LowHeritabilityLimit(t *testing.T) {
	ctx := context.Background()
	g := identity(t, 3)
	y := []float64{2, 5, -1}

	res, err := Solve(ctx, g, y, 0.001)
	require.NoError(t, err)

	for i := range y {
		assert.Less(t, math.Abs(res.GEBV[i]), 0.005)
		assert.Less(t, res.Reliability[i], 0.01)
	}
}

func TestSolve_FromGenotypes(t *testing.T) {
	ctx := context.Background()
	mx, err := genotype.Encode([][]float64{
		{0, 1, 2},
		{1, 1, 1},
		{2, 1, 0},
	}, 2)
	require.NoError(t, err)

	g, err := grm.Build(ctx, mx)
	require.NoError(t, err)

	res, err := Solve(ctx, g, []float64{10, 12, 14}, 0.4)
	require.NoError(t, err)

	assert.Equal(t, 3, res.MarkersUsed)
	assert.Equal(t, 3, res.NIndividuals)
	assert.InDelta(t, 12.0, res.Mean, 1e-12)
	for i := 0; i < 3; i++ {
		assert.False(t, math.IsNaN(res.GEBV[i]))
		assert.GreaterOrEqual(t, res.Reliability[i], 0.0)
		assert.LessOrEqual(t, res.Reliability[i], 1.0)
	}
}

func TestSolve_HeritabilityOutOfRange(t *testing.T) {
	ctx := context.Background()
	g := identity(t, 2)
	y := []float64{1, 2}

	for _, h2 := range []float64{0, 1, -0.5, 1.5, math.NaN()} {
		_, err := Solve(ctx, g, y, h2)

		var he *HeritabilityError
		require.ErrorAs(t, err, &he, "h2=%v", h2)
	}
}

func TestSolve_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	g := identity(t, 3)

	_, err := Solve(ctx, g, []float64{1, 2}, 0.5)

	var de *DimensionError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 2, de.Phenotypes)
	assert.Equal(t, 3, de.Individuals)
}

func TestSolve_NonFinitePhenotype(t *testing.T) {
	ctx := context.Background()
	g := identity(t, 3)

	_, err := Solve(ctx, g, []float64{1, math.NaN(), 0}, 0.5)

	var pe *PhenotypeError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Index)

	_, err = Solve(ctx, g, []float64{1, 2, math.Inf(-1)}, 0.5)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Index)
}

func TestSolve_InvariantViolation(t *testing.T) {
	ctx := context.Background()
	// diag(3, 1) with λ = 2: r_0 = 1 - 2·(3/5) = -0.2, far outside the band.
	g, err := grm.FromDense([][]float64{
		{3, 0},
		{0, 1},
	})
	require.NoError(t, err)

	_, err = Solve(ctx, g, []float64{1, -1}, 1.0/3.0)

	var ive *InvariantViolationError
	require.ErrorAs(t, err, &ive)
	assert.Equal(t, 0, ive.Index)
	assert.InDelta(t, -0.2, ive.Value, 1e-9)
}

func TestSolve_ReliabilityClampBand(t *testing.T) {
	ctx := context.Background()
	// A tiny negative diagonal pushes r_0 just past 1; inside the band it
	// clamps instead of failing.
	g, err := grm.FromDense([][]float64{
		{-5e-7, 0},
		{0, 1},
	})
	require.NoError(t, err)

	res, err := Solve(ctx, g, []float64{1, -1}, 0.5)
	require.NoError(t, err)

	assert.Equal(t, 1.0, res.Reliability[0])
	assert.Equal(t, 1.0, res.Accuracy[0])
	assert.InDelta(t, 0.5, res.Reliability[1], 1e-12)
}

func TestSolve_SingularSystem(t *testing.T) {
	ctx := context.Background()
	g, err := grm.FromDense([][]float64{
		{math.NaN(), 0},
		{0, 1},
	})
	require.NoError(t, err)

	_, err = Solve(ctx, g, []float64{1, -1}, 0.5)
	assert.ErrorIs(t, err, ErrSingularSystem)
}

func TestSolve_RegularizedFallback(t *testing.T) {
	ctx := context.Background()
	// Rank-one G and a λ below float resolution force the shifted retry.
	g, err := grm.FromDense([][]float64{
		{1, 1},
		{1, 1},
	})
	require.NoError(t, err)

	res, err := Solve(ctx, g, []float64{1, -1}, 1-1e-16)
	require.NoError(t, err)

	assert.Equal(t, "regularized", res.Factorization)
	for i := 0; i < 2; i++ {
		assert.GreaterOrEqual(t, res.Reliability[i], 0.0)
		assert.LessOrEqual(t, res.Reliability[i], 1.0)
	}
}

func TestSolve_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := identity(t, 2)
	_, err := Solve(ctx, g, []float64{1, 2}, 0.5)
	assert.ErrorIs(t, err, context.Canceled)
}
