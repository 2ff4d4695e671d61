package genotype

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	raw := [][]float64{
		{0, 1, 2},
		{1, 1, 0},
		{2, math.NaN(), 0},
		{1, 1, -1}, // -1 is the sentinel missing code
	}

	mx, err := Encode(raw, 2)
	require.NoError(t, err)

	assert.Equal(t, 4, mx.Individuals())
	assert.Equal(t, 3, mx.Markers())
	assert.Equal(t, 2, mx.MissingCount())

	v, ok := mx.Dosage(0, 2)
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)

	v, ok = mx.Dosage(2, 1)
	assert.False(t, ok)
	assert.Equal(t, 0.0, v)

	assert.True(t, mx.Missing(3, 2))
	assert.False(t, mx.Missing(3, 1))
}

func TestEncode_InvalidDosage(t *testing.T) {
	tests := []struct {
		name  string
		value float64
	}{
		{"fractional", 0.5},
		{"above ploidy", 3},
		{"negative", -2},
		{"infinite", math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode([][]float64{{0, tt.value}}, 2)
			require.Error(t, err)

			var de *DosageError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, 0, de.Row)
			assert.Equal(t, 1, de.Col)
			assert.Equal(t, tt.value, de.Value)
		})
	}
}

func TestEncode_EmptyInput(t *testing.T) {
	_, err := Encode(nil, 2)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Encode([][]float64{}, 2)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Encode([][]float64{{}}, 2)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestEncode_RaggedMatrix(t *testing.T) {
	_, err := Encode([][]float64{{0, 1}, {2}}, 2)
	assert.ErrorIs(t, err, ErrRaggedMatrix)
}

func TestEncode_PloidyUnsupported(t *testing.T) {
	_, err := Encode([][]float64{{0, 1}}, 4)
	assert.ErrorIs(t, err, ErrPloidyUnsupported)

	_, err = Encode([][]float64{{0, 1}}, 0)
	assert.ErrorIs(t, err, ErrPloidyUnsupported)
}

func TestMatrix_MarkerCalls(t *testing.T) {
	mx, err := Encode([][]float64{
		{0, 1},
		{2, math.NaN()},
		{1, math.NaN()},
	}, 2)
	require.NoError(t, err)

	calls, sum := mx.MarkerCalls(0)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3.0, sum)

	calls, sum = mx.MarkerCalls(1)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1.0, sum)

	assert.InDelta(t, 0.0, mx.MissingRate(0), 1e-12)
	assert.InDelta(t, 2.0/3.0, mx.MissingRate(1), 1e-12)
}

func TestMatrix_Column(t *testing.T) {
	mx, err := Encode([][]float64{
		{0, 2},
		{1, math.NaN()},
	}, 2)
	require.NoError(t, err)

	col := mx.Column(1)
	require.Len(t, col, 2)
	assert.Equal(t, 2.0, col[0])
	assert.True(t, math.IsNaN(col[1]))
}

func TestMatrix_Rows(t *testing.T) {
	raw := [][]float64{
		{0, 1, 2},
		{2, math.NaN(), 0},
	}
	mx, err := Encode(raw, 2)
	require.NoError(t, err)

	rows := mx.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []float64{0, 1, 2}, rows[0])
	assert.Equal(t, 2.0, rows[1][0])
	assert.True(t, math.IsNaN(rows[1][1]))
	assert.Equal(t, 0.0, rows[1][2])
}

func TestMatrix_Subset(t *testing.T) {
	mx, err := Encode([][]float64{
		{0, 1, 2},
		{1, 1, 0},
		{2, math.NaN(), 0},
	}, 2)
	require.NoError(t, err)

	sub := mx.Subset([]int{2, 0})
	assert.Equal(t, 2, sub.Individuals())
	assert.Equal(t, 3, sub.Markers())

	// Row order follows the selection, not the source.
	v, ok := sub.Dosage(0, 0)
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)
	assert.True(t, sub.Missing(0, 1))

	v, ok = sub.Dosage(1, 2)
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)
	assert.False(t, sub.Missing(1, 1))
}

func TestDosageError_Message(t *testing.T) {
	err := &DosageError{Row: 3, Col: 7, Value: 2.5}
	assert.Contains(t, err.Error(), "2.5")
	assert.Contains(t, err.Error(), "individual 3")
	assert.Contains(t, err.Error(), "marker 7")

	// Sentinel identity survives wrapping.
	wrapped := errors.Join(err, ErrRaggedMatrix)
	var de *DosageError
	assert.ErrorAs(t, wrapped, &de)
}
