package grm

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// neThreshold gates the effective-population-size approximation: below this
// mean |F| the estimate diverges and is reported as undefined.
const neThreshold = 1e-6

// Inbreeding returns the genomic inbreeding coefficients F_i = G_ii - 1.
// F > 0 indicates excess homozygosity, F < 0 excess heterozygosity.
func (g *Matrix) Inbreeding() []float64 {
	f := make([]float64, g.n)
	for i := 0; i < g.n; i++ {
		f[i] = g.sym.At(i, i) - 1
	}
	return f
}

// AverageKinship returns, per individual, the mean relationship to all
// other individuals. Zero when the population has a single member.
func (g *Matrix) AverageKinship() []float64 {
	avg := make([]float64, g.n)
	if g.n < 2 {
		return avg
	}
	for i := 0; i < g.n; i++ {
		var sum float64
		for j := 0; j < g.n; j++ {
			if j == i {
				continue
			}
			sum += g.sym.At(i, j)
		}
		avg[i] = sum / float64(g.n-1)
	}
	return avg
}

// Summary aggregates population-level statistics from the matrix.
type Summary struct {
	MeanInbreeding float64 `json:"mean_inbreeding"`
	MinInbreeding  float64 `json:"min_inbreeding"`
	MaxInbreeding  float64 `json:"max_inbreeding"`
	SDInbreeding   float64 `json:"sd_inbreeding"`
	NumInbred      int     `json:"n_inbred"`
	NumOutcrossed  int     `json:"n_outcrossed"`
	MeanKinship    float64 `json:"population_avg_kinship"`
	KinshipSD      float64 `json:"population_kinship_sd"`

	// EffectivePopulationSize approximates Ne ≈ 1/(2·|ΔF|). Nil when mean
	// inbreeding is too close to zero for the approximation to hold.
	EffectivePopulationSize *float64 `json:"effective_population_size"`

	NIndividuals int `json:"n_individuals"`
}

// Summarize computes the population summary.
func (g *Matrix) Summarize() Summary {
	f := g.Inbreeding()

	s := Summary{
		MeanInbreeding: stat.Mean(f, nil),
		MinInbreeding:  f[0],
		MaxInbreeding:  f[0],
		SDInbreeding:   stat.PopStdDev(f, nil),
		NIndividuals:   g.n,
	}
	for _, v := range f {
		s.MinInbreeding = math.Min(s.MinInbreeding, v)
		s.MaxInbreeding = math.Max(s.MaxInbreeding, v)
		if v > 0 {
			s.NumInbred++
		}
		if v < 0 {
			s.NumOutcrossed++
		}
	}

	if g.n > 1 {
		off := make([]float64, 0, g.n*(g.n-1)/2)
		for i := 0; i < g.n; i++ {
			for j := i + 1; j < g.n; j++ {
				off = append(off, g.sym.At(i, j))
			}
		}
		s.MeanKinship = stat.Mean(off, nil)
		s.KinshipSD = stat.PopStdDev(off, nil)
	}

	if mean := math.Abs(s.MeanInbreeding); mean > neThreshold {
		ne := 1 / (2 * mean)
		s.EffectivePopulationSize = &ne
	}
	return s
}
