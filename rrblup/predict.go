package rrblup

import (
	"context"

	"github.com/breedkit/gblup/genotype"
)

// Predict scores new individuals with the fitted model: GEBV = Z_new·α + μ,
// centering the new dosages with the training frequencies. Missing calls
// impute to the training mean and contribute zero.
func (r *Result) Predict(ctx context.Context, mx *genotype.Matrix) ([]float64, error) {
	if mx.Markers() != r.NMarkers {
		return nil, &MarkerMismatchError{Got: mx.Markers(), Want: r.NMarkers}
	}

	n := mx.Individuals()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		sum := r.Mean
		for c, j := range r.cols {
			x, ok := mx.Dosage(i, j)
			if !ok {
				continue
			}
			sum += (x - genotype.Ploidy*r.freq[j]) * r.alpha[c]
		}
		out[i] = sum
	}
	return out, nil
}
