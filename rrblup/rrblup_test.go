package rrblup

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breedkit/gblup/genotype"
	"github.com/breedkit/gblup/solver"
)

func encode(t *testing.T, raw [][]float64) *genotype.Matrix {
	t.Helper()
	mx, err := genotype.Encode(raw, 2)
	require.NoError(t, err)
	return mx
}

func TestFit(t *testing.T) {
	ctx := context.Background()
	// Phenotype equals marker 0's dosage; marker 1 is constant-het and
	// carries no signal.
	mx := encode(t, [][]float64{
		{0, 1},
		{1, 1},
		{2, 1},
		{1, 1},
	})
	y := []float64{0, 1, 2, 1}

	res, err := Fit(ctx, mx, y, 0.5)
	require.NoError(t, err)

	// λm = 2·(0.5/0.5) = 2, Z₀ᵀZ₀ = 2, Z₀ᵀ(y-μ) = 2: α₀ = 0.5.
	require.Len(t, res.Effects, 2)
	assert.InDelta(t, 0.5, res.Effects[0].Effect, 1e-12)
	assert.InDelta(t, 0.0, res.Effects[1].Effect, 1e-12)
	assert.InDelta(t, 2.0, res.Lambda, 1e-12)

	assert.InDelta(t, -0.5, res.GEBV[0], 1e-12)
	assert.InDelta(t, 0.0, res.GEBV[1], 1e-12)
	assert.InDelta(t, 0.5, res.GEBV[2], 1e-12)
	assert.InDelta(t, 1.0, res.Mean, 1e-12)

	// Fit correlation is perfect: GEBV is proportional to y-μ.
	assert.InDelta(t, 1.0, res.Accuracy, 1e-9)

	// Var(y) = 2/3: σ²g = 1/3, σ²e = 1/3, σ²α = σ²g/2.
	assert.InDelta(t, 1.0/3.0, res.GeneticVariance, 1e-12)
	assert.InDelta(t, 1.0/3.0, res.ResidualVariance, 1e-12)
	assert.InDelta(t, 1.0/6.0, res.MarkerVariance, 1e-12)

	// SE = sqrt(diag((ZᵀZ+λmI)⁻¹)·σ²e): diag inverse is [1/4, 1/2].
	assert.InDelta(t, math.Sqrt(0.25/3.0), res.Effects[0].SE, 1e-9)
	assert.InDelta(t, math.Sqrt(0.5/3.0), res.Effects[1].SE, 1e-9)

	// t₀ = 0.5/SE₀ = √3, df = 3: two-sided p ≈ 0.1817.
	assert.InDelta(t, math.Sqrt(3), res.Effects[0].TStat, 1e-9)
	assert.InDelta(t, 0.1817, res.Effects[0].PValue, 1e-3)
	assert.InDelta(t, 0.0, res.Effects[1].TStat, 1e-12)
	assert.InDelta(t, 1.0, res.Effects[1].PValue, 1e-12)

	// PVE₀ = 2·0.5·0.5·0.25/(2/3) = 0.1875.
	assert.InDelta(t, 0.1875, res.Effects[0].PVE, 1e-9)
	assert.InDelta(t, 0.0, res.Effects[1].PVE, 1e-12)

	assert.Equal(t, 4, res.NIndividuals)
	assert.Equal(t, 2, res.NMarkers)
	assert.Equal(t, 0, res.NSignificant)
}

func TestFit_ExcludedMarkers(t *testing.T) {
	ctx := context.Background()
	// Marker 1 is fixed at 0: excluded but still present in the output.
	mx := encode(t, [][]float64{
		{0, 0},
		{1, 0},
		{2, 0},
	})
	y := []float64{1, 2, 3}

	res, err := Fit(ctx, mx, y, 0.5)
	require.NoError(t, err)

	require.Len(t, res.Effects, 2)
	assert.False(t, res.Effects[0].Excluded)
	assert.True(t, res.Effects[1].Excluded)
	assert.Equal(t, 0.0, res.Effects[1].Effect)
	assert.Equal(t, 1.0, res.Effects[1].PValue)
}

func TestFit_Validation(t *testing.T) {
	ctx := context.Background()
	mx := encode(t, [][]float64{
		{0, 1},
		{1, 1},
		{2, 0},
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := Fit(ctx, mx, []float64{1, 2}, 0.5)
		var de *solver.DimensionError
		assert.ErrorAs(t, err, &de)
	})

	t.Run("too few individuals", func(t *testing.T) {
		small := encode(t, [][]float64{
			{0, 1},
			{2, 1},
		})
		_, err := Fit(ctx, small, []float64{1, 2}, 0.5)
		assert.ErrorIs(t, err, ErrTooFewIndividuals)
	})

	t.Run("heritability out of range", func(t *testing.T) {
		_, err := Fit(ctx, mx, []float64{1, 2, 3}, 1.0)
		var he *solver.HeritabilityError
		assert.ErrorAs(t, err, &he)
	})

	t.Run("non-finite phenotype", func(t *testing.T) {
		_, err := Fit(ctx, mx, []float64{1, math.Inf(1), 3}, 0.5)
		var pe *solver.PhenotypeError
		assert.ErrorAs(t, err, &pe)
	})
}

func TestFit_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mx := encode(t, [][]float64{
		{0, 1},
		{1, 1},
		{2, 0},
	})
	_, err := Fit(ctx, mx, []float64{1, 2, 3}, 0.5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPredict(t *testing.T) {
	ctx := context.Background()
	mx := encode(t, [][]float64{
		{0, 1},
		{1, 1},
		{2, 1},
		{1, 1},
	})
	res, err := Fit(ctx, mx, []float64{0, 1, 2, 1}, 0.5)
	require.NoError(t, err)

	// New line with dosage 2 at the causal marker: 0.5·(2-1) + μ = 1.5.
	pred, err := res.Predict(ctx, encode(t, [][]float64{{2, 1}}))
	require.NoError(t, err)
	require.Len(t, pred, 1)
	assert.InDelta(t, 1.5, pred[0], 1e-12)

	// Missing dosage imputes to the training mean and adds nothing.
	pred, err = res.Predict(ctx, encode(t, [][]float64{{math.NaN(), 1}}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, pred[0], 1e-12)
}

func TestPredict_MarkerMismatch(t *testing.T) {
	ctx := context.Background()
	mx := encode(t, [][]float64{
		{0, 1},
		{1, 1},
		{2, 1},
	})
	res, err := Fit(ctx, mx, []float64{0, 1, 2}, 0.5)
	require.NoError(t, err)

	_, err = res.Predict(ctx, encode(t, [][]float64{{1, 1, 0}}))

	var mm *MarkerMismatchError
	require.ErrorAs(t, err, &mm)
	assert.Equal(t, 3, mm.Got)
	assert.Equal(t, 2, mm.Want)
}
