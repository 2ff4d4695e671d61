package popgen

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/breedkit/gblup/genotype"
)

// LD is the linkage disequilibrium between two markers.
type LD struct {
	RSquared float64 `json:"r_squared"`
	DPrime   float64 `json:"d_prime"`
	NValid   int     `json:"n_valid"`
}

// LDPair computes r² and D' between two marker vectors (dosages with NaN
// for missing calls) over their pairwise-complete observations. Fewer than
// two complete pairs, or a marker without variance, yields zero LD rather
// than an error.
func LDPair(x, y []float64) (LD, error) {
	if len(x) != len(y) {
		return LD{}, ErrLengthMismatch
	}

	var sumX, sumY, sumXY, sumX2, sumY2 float64
	var valid int
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumX2 += x[i] * x[i]
		sumY2 += y[i] * y[i]
		valid++
	}

	if valid < 2 {
		return LD{NValid: valid}, nil
	}

	n := float64(valid)
	meanX := sumX / n
	meanY := sumY / n
	varX := sumX2/n - meanX*meanX
	varY := sumY2/n - meanY*meanY
	cov := sumXY/n - meanX*meanY

	ld := LD{NValid: valid}
	if varX > 0 && varY > 0 {
		ld.RSquared = cov * cov / (varX * varY)
		ld.DPrime = math.Min(1, math.Abs(cov)/math.Sqrt(varX*varY))
	}
	return ld, nil
}

// LDMatrix computes the symmetric m×m r² matrix over all marker pairs,
// with a unit diagonal. Per-marker means and variances come from each
// marker's own calls; pair covariances from the pairwise-complete subset.
func LDMatrix(ctx context.Context, mx *genotype.Matrix) (*mat.SymDense, error) {
	n := mx.Individuals()
	m := mx.Markers()

	means := make([]float64, m)
	vars := make([]float64, m)
	for j := 0; j < m; j++ {
		var sum, sum2 float64
		var count int
		for i := 0; i < n; i++ {
			v, ok := mx.Dosage(i, j)
			if !ok {
				continue
			}
			sum += v
			sum2 += v * v
			count++
		}
		if count > 0 {
			means[j] = sum / float64(count)
			vars[j] = sum2/float64(count) - means[j]*means[j]
		}
	}

	ld := mat.NewSymDense(m, nil)
	for j1 := 0; j1 < m; j1++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		ld.SetSym(j1, j1, 1)
		for j2 := j1 + 1; j2 < m; j2++ {
			var cov float64
			var valid int
			for i := 0; i < n; i++ {
				v1, ok1 := mx.Dosage(i, j1)
				v2, ok2 := mx.Dosage(i, j2)
				if !ok1 || !ok2 {
					continue
				}
				cov += (v1 - means[j1]) * (v2 - means[j2])
				valid++
			}

			if valid > 0 && vars[j1] > 0 && vars[j2] > 0 {
				c := cov / float64(valid)
				ld.SetSym(j1, j2, c*c/(vars[j1]*vars[j2]))
			}
		}
	}
	return ld, nil
}
