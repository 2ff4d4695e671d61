package popgen

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneticCorrelations(t *testing.T) {
	// Trait 1 is exactly twice trait 0. The min-count normalization
	// divides the centered cross-product sum by n rather than n-1, so
	// even perfectly correlated traits report r = 2/3 here.
	res, err := GeneticCorrelations([][]float64{
		{1, 2},
		{2, 4},
		{3, 6},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.NTraits)
	assert.InDelta(t, 2.0, res.Means[0], 1e-12)
	assert.InDelta(t, 4.0, res.Means[1], 1e-12)
	assert.InDelta(t, 1.0, res.Variances[0], 1e-12)
	assert.InDelta(t, 4.0, res.Variances[1], 1e-12)

	assert.InDelta(t, 1.0, res.Matrix[0][0], 1e-12)
	assert.InDelta(t, 1.0, res.Matrix[1][1], 1e-12)
	assert.InDelta(t, 2.0/3.0, res.Matrix[0][1], 1e-12)
	assert.InDelta(t, 2.0/3.0, res.Matrix[1][0], 1e-12)
}

func TestGeneticCorrelations_MissingValues(t *testing.T) {
	res, err := GeneticCorrelations([][]float64{
		{1, 2},
		{2, math.NaN()},
		{3, 6},
	})
	require.NoError(t, err)

	// Trait 1 statistics come from the two observed values only.
	assert.InDelta(t, 4.0, res.Means[1], 1e-12)
	assert.InDelta(t, 8.0, res.Variances[1], 1e-12)

	// covSum = 4 over the two complete pairs; r = 4 / sqrt(1*8) / 2.
	assert.InDelta(t, 4.0/math.Sqrt(8)/2.0, res.Matrix[0][1], 1e-12)
}

func TestGeneticCorrelations_Errors(t *testing.T) {
	_, err := GeneticCorrelations(nil)
	assert.ErrorIs(t, err, ErrEmptyTraits)

	_, err = GeneticCorrelations([][]float64{{}})
	assert.ErrorIs(t, err, ErrEmptyTraits)

	_, err = GeneticCorrelations([][]float64{
		{1, 2},
		{1},
	})
	assert.ErrorIs(t, err, ErrRaggedTraits)
}

func TestSelectionIndex(t *testing.T) {
	traits := [][]float64{
		{2, 0},
		{3, 2},
		{4, 4},
		{0, 1},
	}
	weights := []float64{1, 0.5}

	res, err := SelectionIndex(traits, weights, 0.25, 0.3)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{2, 4, 6, 0.5}, res.IndexValues, 1e-12)
	assert.Equal(t, []int{2, 1, 0, 3}, res.Rankings)
	assert.Equal(t, 1, res.NSelected)

	// meanAll = 3.125, best individual scores 6.
	assert.InDelta(t, 2.875, res.SelectionDifferential, 1e-12)
	assert.InDelta(t, 2.875*0.3, res.ExpectedResponse, 1e-12)
}

func TestSelectionIndex_TopHalf(t *testing.T) {
	traits := [][]float64{
		{2, 0},
		{3, 2},
		{4, 4},
		{0, 1},
	}

	res, err := SelectionIndex(traits, []float64{1, 0.5}, 0.5, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, res.NSelected)
	assert.InDelta(t, 1.875, res.SelectionDifferential, 1e-12)
	assert.InDelta(t, 1.875, res.ExpectedResponse, 1e-12)
}

func TestSelectionIndex_MissingValues(t *testing.T) {
	res, err := SelectionIndex([][]float64{
		{1, math.NaN()},
		{2, 1},
	}, []float64{1, 1}, 0.5, 0.5)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{1, 3}, res.IndexValues, 1e-12)
	assert.Equal(t, []int{1, 0}, res.Rankings)
}

func TestSelectionIndex_Errors(t *testing.T) {
	traits := [][]float64{{1, 2}}

	_, err := SelectionIndex(nil, nil, 0.5, 0.5)
	assert.ErrorIs(t, err, ErrEmptyTraits)

	_, err = SelectionIndex([][]float64{{1, 2}, {1}}, []float64{1, 1}, 0.5, 0.5)
	assert.ErrorIs(t, err, ErrRaggedTraits)

	_, err = SelectionIndex(traits, []float64{1}, 0.5, 0.5)
	assert.ErrorIs(t, err, ErrWeightCount)

	for _, p := range []float64{0, -0.5, 1.5} {
		_, err = SelectionIndex(traits, []float64{1, 1}, p, 0.5)
		assert.ErrorIs(t, err, ErrBadProportion, "proportion %v", p)
	}

	for _, h2 := range []float64{-0.1, 1.1, math.NaN()} {
		_, err = SelectionIndex(traits, []float64{1, 1}, 0.5, h2)
		assert.ErrorIs(t, err, ErrBadHeritability, "h2 %v", h2)
	}
}
