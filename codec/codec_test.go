package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testResult struct {
	GEBV []float64 `json:"gebv"`
	Mean float64   `json:"mean"`
	N    int       `json:"n_individuals"`
}

func TestByName(t *testing.T) {
	c, ok := ByName("json")
	require.True(t, ok)
	assert.Equal(t, "json", c.Name())

	c, ok = ByName("go-json")
	require.True(t, ok)
	assert.Equal(t, "go-json", c.Name())

	_, ok = ByName("msgpack")
	assert.False(t, ok)
}

func TestCodecs_RoundTrip(t *testing.T) {
	in := testResult{
		GEBV: []float64{0.5, -0.5, 0},
		Mean: 10.25,
		N:    3,
	}

	for _, c := range []Codec{JSON{}, GoJSON{}} {
		data, err := c.Marshal(in)
		require.NoError(t, err, c.Name())

		var out testResult
		require.NoError(t, c.Unmarshal(data, &out), c.Name())
		assert.Equal(t, in, out, c.Name())
	}
}

func TestCodecs_WireCompatible(t *testing.T) {
	in := testResult{GEBV: []float64{1, 2}, Mean: 1.5, N: 2}

	data := MustMarshal(JSON{}, in)
	var out testResult
	require.NoError(t, GoJSON{}.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
