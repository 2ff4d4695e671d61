package popgen

import (
	"math"
	"sort"
)

// CorrelationResult is a trait-by-trait correlation summary over a
// phenotype matrix with missing observations allowed (NaN).
type CorrelationResult struct {
	Matrix    [][]float64 `json:"correlation_matrix"`
	Means     []float64   `json:"trait_means"`
	Variances []float64   `json:"trait_variances"`
	NTraits   int         `json:"n_traits"`
}

// GeneticCorrelations computes pairwise trait correlations from an
// n-individuals × t-traits value matrix. Observations are used
// pairwise-complete; correlations are clamped to [-1, 1].
func GeneticCorrelations(traits [][]float64) (*CorrelationResult, error) {
	n := len(traits)
	if n == 0 || len(traits[0]) == 0 {
		return nil, ErrEmptyTraits
	}
	t := len(traits[0])
	for _, row := range traits {
		if len(row) != t {
			return nil, ErrRaggedTraits
		}
	}

	means := make([]float64, t)
	counts := make([]int, t)
	for i := 0; i < n; i++ {
		for c := 0; c < t; c++ {
			if v := traits[i][c]; !math.IsNaN(v) {
				means[c] += v
				counts[c]++
			}
		}
	}
	for c := 0; c < t; c++ {
		if counts[c] > 0 {
			means[c] /= float64(counts[c])
		}
	}

	variances := make([]float64, t)
	cov := make([][]float64, t)
	for c := range cov {
		cov[c] = make([]float64, t)
	}
	for i := 0; i < n; i++ {
		for t1 := 0; t1 < t; t1++ {
			v1 := traits[i][t1]
			if math.IsNaN(v1) {
				continue
			}
			d1 := v1 - means[t1]
			variances[t1] += d1 * d1

			for t2 := t1 + 1; t2 < t; t2++ {
				v2 := traits[i][t2]
				if math.IsNaN(v2) {
					continue
				}
				d := d1 * (v2 - means[t2])
				cov[t1][t2] += d
				cov[t2][t1] += d
			}
		}
	}
	for c := 0; c < t; c++ {
		if counts[c] > 1 {
			variances[c] /= float64(counts[c] - 1)
		}
	}

	corr := make([][]float64, t)
	for t1 := 0; t1 < t; t1++ {
		corr[t1] = make([]float64, t)
		corr[t1][t1] = 1
	}
	for t1 := 0; t1 < t; t1++ {
		for t2 := t1 + 1; t2 < t; t2++ {
			var r float64
			if denom := math.Sqrt(variances[t1] * variances[t2]); denom > 0 {
				pairs := min(counts[t1], counts[t2])
				r = cov[t1][t2] / denom / float64(pairs)
				r = math.Max(-1, math.Min(1, r))
			}
			corr[t1][t2] = r
			corr[t2][t1] = r
		}
	}

	return &CorrelationResult{
		Matrix:    corr,
		Means:     means,
		Variances: variances,
		NTraits:   t,
	}, nil
}

// SelectionResult describes a weighted selection index over a population.
type SelectionResult struct {
	IndexValues []float64 `json:"index_values"`

	// Rankings lists individual indices from best to worst index value.
	Rankings []int `json:"rankings"`

	SelectionDifferential float64 `json:"selection_differential"`
	ExpectedResponse      float64 `json:"expected_response"`
	NSelected             int     `json:"n_selected"`
}

// SelectionIndex computes I_i = Σ w_t·x_it per individual (missing trait
// values contribute nothing), ranks the population, and derives the
// selection differential of the top fraction and the expected response
// S·h².
func SelectionIndex(traits [][]float64, weights []float64, proportion, h2 float64) (*SelectionResult, error) {
	n := len(traits)
	if n == 0 || len(traits[0]) == 0 {
		return nil, ErrEmptyTraits
	}
	t := len(traits[0])
	for _, row := range traits {
		if len(row) != t {
			return nil, ErrRaggedTraits
		}
	}
	if len(weights) != t {
		return nil, ErrWeightCount
	}
	if proportion <= 0 || proportion > 1 {
		return nil, ErrBadProportion
	}
	if math.IsNaN(h2) || h2 < 0 || h2 > 1 {
		return nil, ErrBadHeritability
	}

	idx := make([]float64, n)
	for i := 0; i < n; i++ {
		for c := 0; c < t; c++ {
			if v := traits[i][c]; !math.IsNaN(v) {
				idx[i] += weights[c] * v
			}
		}
	}

	rankings := make([]int, n)
	for i := range rankings {
		rankings[i] = i
	}
	sort.SliceStable(rankings, func(a, b int) bool {
		return idx[rankings[a]] > idx[rankings[b]]
	})

	nSelected := int(math.Ceil(float64(n) * proportion))
	var meanAll, meanSelected float64
	for _, v := range idx {
		meanAll += v
	}
	meanAll /= float64(n)
	for _, i := range rankings[:nSelected] {
		meanSelected += idx[i]
	}
	meanSelected /= float64(nSelected)

	s := meanSelected - meanAll
	return &SelectionResult{
		IndexValues:           idx,
		Rankings:              rankings,
		SelectionDifferential: s,
		ExpectedResponse:      s * h2,
		NSelected:             nSelected,
	}, nil
}
