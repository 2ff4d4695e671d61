package solver

import "math"

// reliabilities derives per-individual reliability and accuracy from the
// cached diagonal of A.
//
// For a well-formed PSD G and λ > 0 every r_i lands in [0, 1]; values
// escaping by at most tol are clamped as floating-point noise, anything
// further is surfaced as an invariant violation with no partial result.
func reliabilities(diagA []float64, lambda, tol float64) (rel, acc []float64, err error) {
	rel = make([]float64, len(diagA))
	acc = make([]float64, len(diagA))

	for i, d := range diagA {
		r := 1 - lambda*d
		if r < -tol || r > 1+tol {
			return nil, nil, &InvariantViolationError{Index: i, Value: r}
		}
		r = math.Min(1, math.Max(0, r))
		rel[i] = r
		acc[i] = math.Sqrt(math.Max(0, r))
	}
	return rel, acc, nil
}
