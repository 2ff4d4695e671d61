package genotype

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Ploidy is the only ploidy level the engine supports.
const Ploidy = 2

// Matrix is a validated, immutable dosage matrix: n individuals x m markers,
// row-major, with missing calls tracked in a bitmap over flattened indices.
//
// The zero value is not usable; construct via Encode.
type Matrix struct {
	n, m    int
	data    []float64 // n*m row-major; missing cells hold 0 and are masked
	missing *roaring64.Bitmap
}

// Encode validates raw marker calls and builds a dosage Matrix.
//
// Every cell must be exactly 0, 1 or 2, or a missing sentinel (NaN or -1).
// Anything else fails with *DosageError; nothing is coerced. The raw slice is
// copied, so the caller may reuse it afterwards.
func Encode(raw [][]float64, ploidy int) (*Matrix, error) {
	if ploidy != Ploidy {
		return nil, ErrPloidyUnsupported
	}

	n := len(raw)
	if n == 0 {
		return nil, ErrEmptyInput
	}
	m := len(raw[0])
	if m == 0 {
		return nil, ErrEmptyInput
	}

	mx := &Matrix{
		n:       n,
		m:       m,
		data:    make([]float64, n*m),
		missing: roaring64.New(),
	}

	for i, row := range raw {
		if len(row) != m {
			return nil, ErrRaggedMatrix
		}
		base := i * m
		for j, v := range row {
			switch {
			case v == 0 || v == 1 || v == 2:
				mx.data[base+j] = v
			case math.IsNaN(v) || v == -1:
				mx.missing.Add(uint64(base + j))
			default:
				return nil, &DosageError{Row: i, Col: j, Value: v}
			}
		}
	}

	return mx, nil
}

// Individuals returns n, the number of rows.
func (mx *Matrix) Individuals() int { return mx.n }

// Markers returns m, the number of columns.
func (mx *Matrix) Markers() int { return mx.m }

// Dosage returns the call for individual i at marker j and whether it is
// present. Missing calls report ok == false and a zero dosage.
func (mx *Matrix) Dosage(i, j int) (v float64, ok bool) {
	idx := uint64(i*mx.m + j)
	if mx.missing.Contains(idx) {
		return 0, false
	}
	return mx.data[i*mx.m+j], true
}

// Missing reports whether the call for individual i at marker j is missing.
func (mx *Matrix) Missing(i, j int) bool {
	return mx.missing.Contains(uint64(i*mx.m + j))
}

// MissingCount returns the total number of missing calls.
func (mx *Matrix) MissingCount() int {
	return int(mx.missing.GetCardinality())
}

// MarkerCalls returns the number of non-missing calls and their dosage sum
// for marker j. Both the frequency estimator and the population statistics
// start from these two numbers.
func (mx *Matrix) MarkerCalls(j int) (calls int, sum float64) {
	for i := 0; i < mx.n; i++ {
		idx := i*mx.m + j
		if mx.missing.Contains(uint64(idx)) {
			continue
		}
		calls++
		sum += mx.data[idx]
	}
	return calls, sum
}

// MissingRate returns the fraction of individuals with a missing call at
// marker j.
func (mx *Matrix) MissingRate(j int) float64 {
	missing := 0
	for i := 0; i < mx.n; i++ {
		if mx.missing.Contains(uint64(i*mx.m + j)) {
			missing++
		}
	}
	return float64(missing) / float64(mx.n)
}

// Column copies the dosages of marker j into a fresh slice, with missing
// calls as NaN. Used by the LD and HWE statistics, which handle missingness
// pairwise instead of by imputation.
func (mx *Matrix) Column(j int) []float64 {
	col := make([]float64, mx.n)
	for i := 0; i < mx.n; i++ {
		idx := i*mx.m + j
		if mx.missing.Contains(uint64(idx)) {
			col[i] = math.NaN()
		} else {
			col[i] = mx.data[idx]
		}
	}
	return col
}

// Rows materializes the dosage matrix as [][]float64 with NaN for missing
// calls. Intended for the wire layer; the engine itself works on the flat
// representation.
func (mx *Matrix) Rows() [][]float64 {
	rows := make([][]float64, mx.n)
	for i := 0; i < mx.n; i++ {
		rows[i] = make([]float64, mx.m)
		base := i * mx.m
		for j := 0; j < mx.m; j++ {
			if mx.missing.Contains(uint64(base + j)) {
				rows[i][j] = math.NaN()
			} else {
				rows[i][j] = mx.data[base+j]
			}
		}
	}
	return rows
}

// Subset returns a new Matrix restricted to the given individual rows, in
// the given order. Cross-validation uses this to carve train/test splits
// without re-validating calls.
func (mx *Matrix) Subset(rows []int) *Matrix {
	sub := &Matrix{
		n:       len(rows),
		m:       mx.m,
		data:    make([]float64, len(rows)*mx.m),
		missing: roaring64.New(),
	}
	for si, i := range rows {
		copy(sub.data[si*mx.m:(si+1)*mx.m], mx.data[i*mx.m:(i+1)*mx.m])
		for j := 0; j < mx.m; j++ {
			if mx.missing.Contains(uint64(i*mx.m + j)) {
				sub.missing.Add(uint64(si*mx.m + j))
			}
		}
	}
	return sub
}
