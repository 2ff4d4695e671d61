package popgen

import "math"

// hweAlpha is the significance threshold for the equilibrium call.
const hweAlpha = 0.05

// HWEResult is a single-marker Hardy-Weinberg equilibrium test.
type HWEResult struct {
	ChiSquared    float64 `json:"chi_squared"`
	PValue        float64 `json:"p_value"`
	ObservedHet   float64 `json:"observed_het"`
	ExpectedHet   float64 `json:"expected_het"`
	InEquilibrium bool    `json:"in_equilibrium"`
}

// HWE tests a marker's genotype counts against Hardy-Weinberg proportions
// with a chi-square over the three genotype classes. The p-value uses the
// one-degree-of-freedom approximation exp(-χ²/2). Values other than 0, 1, 2
// (missing calls included) are skipped; no calls at all reports equilibrium
// with p = 1.
func HWE(calls []float64) HWEResult {
	var nAA, nAB, nBB int
	for _, v := range calls {
		switch v {
		case 0:
			nAA++
		case 1:
			nAB++
		case 2:
			nBB++
		}
	}

	n := float64(nAA + nAB + nBB)
	if n < 1 {
		return HWEResult{PValue: 1, InEquilibrium: true}
	}

	p := (2*float64(nAA) + float64(nAB)) / (2 * n)
	q := 1 - p

	expAA := p * p * n
	expAB := 2 * p * q * n
	expBB := q * q * n

	var chi2 float64
	if expAA > 0 {
		chi2 += (float64(nAA) - expAA) * (float64(nAA) - expAA) / expAA
	}
	if expAB > 0 {
		chi2 += (float64(nAB) - expAB) * (float64(nAB) - expAB) / expAB
	}
	if expBB > 0 {
		chi2 += (float64(nBB) - expBB) * (float64(nBB) - expBB) / expBB
	}

	pValue := math.Exp(-chi2 / 2)
	return HWEResult{
		ChiSquared:    chi2,
		PValue:        pValue,
		ObservedHet:   float64(nAB) / n,
		ExpectedHet:   2 * p * q,
		InEquilibrium: pValue > hweAlpha,
	}
}
