package codec

import (
	"testing"
)

type benchMarker struct {
	Index  int     `json:"index"`
	Effect float64 `json:"effect"`
	PValue float64 `json:"p_value"`
}

type benchPayload struct {
	GEBV        []float64     `json:"gebv"`
	Reliability []float64     `json:"reliability"`
	Mean        float64       `json:"mean"`
	Markers     []benchMarker `json:"markers"`
	N           int           `json:"n_individuals"`
}

func benchInput() benchPayload {
	p := benchPayload{
		GEBV:        make([]float64, 200),
		Reliability: make([]float64, 200),
		Mean:        10.5,
		Markers:     make([]benchMarker, 500),
		N:           200,
	}
	for i := range p.GEBV {
		p.GEBV[i] = float64(i) * 0.01
		p.Reliability[i] = 0.5
	}
	for j := range p.Markers {
		p.Markers[j] = benchMarker{Index: j, Effect: float64(j) * 1e-3, PValue: 0.05}
	}
	return p
}

func benchmarkCodecMarshal(b *testing.B, c Codec, v any) {
	b.Helper()
	b.ReportAllocs()

	warm, err := c.Marshal(v)
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(warm)))

	var sink []byte
	b.ResetTimer()
	for b.Loop() {
		out, err := c.Marshal(v)
		if err != nil {
			b.Fatal(err)
		}
		sink = out
	}
	_ = sink
}

func benchmarkCodecUnmarshal[T any](b *testing.B, c Codec, data []byte, dst *T) {
	b.Helper()
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))

	var v T
	b.ResetTimer()
	for b.Loop() {
		if err := c.Unmarshal(data, &v); err != nil {
			b.Fatal(err)
		}
	}
	if dst != nil {
		*dst = v
	}
}

func BenchmarkCodec_Marshal_Result(b *testing.B) {
	payload := benchInput()

	b.Run("stdlib", func(b *testing.B) { benchmarkCodecMarshal(b, JSON{}, payload) })
	b.Run("go-json", func(b *testing.B) { benchmarkCodecMarshal(b, GoJSON{}, payload) })
}

func BenchmarkCodec_Unmarshal_Result(b *testing.B) {
	jsonData := MustMarshal(JSON{}, benchInput())

	b.Run("stdlib", func(b *testing.B) {
		var sink benchPayload
		benchmarkCodecUnmarshal(b, JSON{}, jsonData, &sink)
		_ = sink
	})
	b.Run("go-json", func(b *testing.B) {
		var sink benchPayload
		benchmarkCodecUnmarshal(b, GoJSON{}, jsonData, &sink)
		_ = sink
	})
}
