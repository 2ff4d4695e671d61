package genotype

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"
)

// minCalls is the minimum number of non-missing calls required to estimate a
// marker's allele frequency.
const minCalls = 2

// Exclusion reasons recorded per marker in the frequency table.
const (
	ExcludeNone         = ""
	ExcludeInsufficient = "insufficient calls"
	ExcludeMonomorphic  = "monomorphic"
)

// FrequencyTable holds per-marker allele frequencies and the exclusion sets
// derived from a dosage matrix.
//
// Two kinds of exclusion exist. Markers with fewer than two non-missing calls
// have no estimable frequency at all (P reports NaN). Monomorphic markers
// keep their frequency but carry zero variance, so they are excluded from
// the variance-bearing set the GRM is scaled by. Neither kind is removed
// from the matrix itself; their contribution to centered dosages is zero.
type FrequencyTable struct {
	m            int
	p            []float64 // alt-allele frequency; NaN where inestimable
	het          []float64 // observed heterozygosity over non-missing calls
	missingRate  []float64
	insufficient *roaring.Bitmap
	monomorphic  *roaring.Bitmap
	usable       int
}

// Frequencies estimates per-marker allele frequencies from the matrix:
// p_j = mean(non-missing dosages of marker j) / 2.
//
// Returns ErrNoUsableMarkers if no marker survives exclusion.
func (mx *Matrix) Frequencies() (*FrequencyTable, error) {
	ft := &FrequencyTable{
		m:            mx.m,
		p:            make([]float64, mx.m),
		het:          make([]float64, mx.m),
		missingRate:  make([]float64, mx.m),
		insufficient: roaring.New(),
		monomorphic:  roaring.New(),
	}

	for j := 0; j < mx.m; j++ {
		var calls, hets int
		var sum float64
		for i := 0; i < mx.n; i++ {
			idx := i*mx.m + j
			if mx.missing.Contains(uint64(idx)) {
				continue
			}
			calls++
			v := mx.data[idx]
			sum += v
			if v == 1 {
				hets++
			}
		}

		ft.missingRate[j] = float64(mx.n-calls) / float64(mx.n)

		if calls < minCalls {
			ft.p[j] = math.NaN()
			ft.insufficient.Add(uint32(j))
			continue
		}

		p := sum / (Ploidy * float64(calls))
		ft.p[j] = p
		ft.het[j] = float64(hets) / float64(calls)

		if p == 0 || p == 1 {
			ft.monomorphic.Add(uint32(j))
			continue
		}
		ft.usable++
	}

	if ft.usable == 0 {
		return nil, ErrNoUsableMarkers
	}
	return ft, nil
}

// Markers returns the number of markers covered by the table.
func (ft *FrequencyTable) Markers() int { return ft.m }

// P returns the alt-allele frequency of marker j. NaN when the marker had
// too few calls to estimate.
func (ft *FrequencyTable) P(j int) float64 { return ft.p[j] }

// MAF returns the minor-allele frequency of marker j, min(p, 1-p).
func (ft *FrequencyTable) MAF(j int) float64 {
	p := ft.p[j]
	if math.IsNaN(p) {
		return math.NaN()
	}
	return math.Min(p, 1-p)
}

// IsUsable reports whether marker j is in the variance-bearing set.
func (ft *FrequencyTable) IsUsable(j int) bool {
	return !ft.insufficient.Contains(uint32(j)) && !ft.monomorphic.Contains(uint32(j))
}

// UsableCount returns the number of variance-bearing markers.
func (ft *FrequencyTable) UsableCount() int { return ft.usable }

// ExcludedCount returns the number of excluded markers.
func (ft *FrequencyTable) ExcludedCount() int { return ft.m - ft.usable }

// ExcludeReason returns why marker j is excluded, or ExcludeNone.
func (ft *FrequencyTable) ExcludeReason(j int) string {
	switch {
	case ft.insufficient.Contains(uint32(j)):
		return ExcludeInsufficient
	case ft.monomorphic.Contains(uint32(j)):
		return ExcludeMonomorphic
	default:
		return ExcludeNone
	}
}

// MarkerStats is the per-marker frequency report exposed to callers.
type MarkerStats struct {
	Index          int     `json:"index"`
	AltFrequency   float64 `json:"alt_frequency"`
	MAF            float64 `json:"maf"`
	Heterozygosity float64 `json:"heterozygosity"`
	MissingRate    float64 `json:"missing_rate"`
	Excluded       bool    `json:"excluded"`
	Reason         string  `json:"reason,omitempty"`
}

// Report materializes per-marker statistics for all m markers.
func (ft *FrequencyTable) Report() []MarkerStats {
	out := make([]MarkerStats, ft.m)
	for j := 0; j < ft.m; j++ {
		reason := ft.ExcludeReason(j)
		out[j] = MarkerStats{
			Index:          j,
			AltFrequency:   ft.p[j],
			MAF:            ft.MAF(j),
			Heterozygosity: ft.het[j],
			MissingRate:    ft.missingRate[j],
			Excluded:       reason != ExcludeNone,
			Reason:         reason,
		}
	}
	return out
}

// ImputedDosages materializes the dosage matrix as a flat row-major slice
// with missing calls replaced by the marker mean 2p_j (VanRaden mean
// imputation; a documented simplification, not a genotype caller). Markers
// without an estimable frequency impute to 0.
//
// The GRM builder does not need this materialization (a mean-imputed call
// centers to exactly zero); it exists for the marker-effect model, which
// regresses on the dosages themselves.
func (mx *Matrix) ImputedDosages(ft *FrequencyTable) []float64 {
	out := make([]float64, len(mx.data))
	copy(out, mx.data)

	it := mx.missing.Iterator()
	for it.HasNext() {
		idx := it.Next()
		j := int(idx % uint64(mx.m))
		p := ft.p[j]
		if math.IsNaN(p) {
			out[idx] = 0
			continue
		}
		out[idx] = Ploidy * p
	}
	return out
}
