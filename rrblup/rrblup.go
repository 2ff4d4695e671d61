// Package rrblup fits the ridge-regression BLUP marker-effect model
// y = 1μ + Zα + ε with a supplied heritability. It complements the
// relationship-matrix path: GBLUP shrinks individuals, rrBLUP shrinks
// marker effects, and the two give identical GEBV under the equivalence
// λm = m·(1-h²)/h².
package rrblup

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/breedkit/gblup/genotype"
	"github.com/breedkit/gblup/internal/linalg"
	"github.com/breedkit/gblup/solver"
)

// MinIndividuals is the smallest population the model accepts.
const MinIndividuals = 3

// significanceLevel drives the significant-marker count in the result.
const significanceLevel = 0.05

// MarkerEffect is the per-marker slice of a fitted model.
type MarkerEffect struct {
	Index  int     `json:"index"`
	Effect float64 `json:"effect"`
	SE     float64 `json:"se"`
	TStat  float64 `json:"t_stat"`
	PValue float64 `json:"p_value"`
	PVE    float64 `json:"pve"`

	// Excluded markers (monomorphic or unestimable frequency) carry a zero
	// effect and a p-value of 1.
	Excluded bool `json:"excluded,omitempty"`
}

// Result is a fitted marker-effect model.
type Result struct {
	Effects []MarkerEffect `json:"effects"`
	GEBV    []float64      `json:"gebv"`
	Mean    float64        `json:"mean"`

	// Accuracy is the fit correlation cor(Zα, y-μ).
	Accuracy float64 `json:"accuracy"`

	GeneticVariance  float64 `json:"genetic_variance"`
	ResidualVariance float64 `json:"residual_variance"`
	MarkerVariance   float64 `json:"marker_variance"`
	Lambda           float64 `json:"lambda"`

	NIndividuals int `json:"n_individuals"`
	NMarkers     int `json:"n_markers"`
	NSignificant int `json:"n_significant_markers"`

	// Prediction state: training frequencies and compact effects over the
	// usable columns. Not serialized; Predict needs a solver-produced Result.
	freq  []float64
	cols  []int
	alpha []float64
}

// Fit estimates marker effects from dosages and phenotypes with supplied
// heritability: (ZᵀZ + λm·I)α = Zᵀ(y-μ), λm = m·(1-h²)/h². Markers outside
// the variance-bearing set stay in the output with zero effect.
func Fit(ctx context.Context, mx *genotype.Matrix, y []float64, h2 float64) (*Result, error) {
	n := mx.Individuals()
	m := mx.Markers()

	if len(y) != n {
		return nil, &solver.DimensionError{Phenotypes: len(y), Individuals: n}
	}
	if n < MinIndividuals {
		return nil, ErrTooFewIndividuals
	}
	if math.IsNaN(h2) || h2 <= 0 || h2 >= 1 {
		return nil, &solver.HeritabilityError{Value: h2}
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &solver.PhenotypeError{Index: i, Value: v}
		}
	}

	ft, err := mx.Frequencies()
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	cols := make([]int, 0, ft.UsableCount())
	freq := make([]float64, m)
	for j := 0; j < m; j++ {
		freq[j] = ft.P(j)
		if ft.IsUsable(j) {
			cols = append(cols, j)
		}
	}
	u := len(cols)

	z := centered(mx, freq, cols)
	lambda := float64(m) * (1 - h2) / h2

	var ztz mat.SymDense
	ztz.SymOuterK(1, z.T())
	for i := 0; i < u; i++ {
		ztz.SetSym(i, i, ztz.At(i, i)+lambda)
	}

	spd, err := linalg.NewSPDSolver(&ztz)
	if err != nil {
		if errors.Is(err, linalg.ErrSingular) {
			return nil, solver.ErrSingularSystem
		}
		return nil, err
	}

	mu := stat.Mean(y, nil)
	yc := make([]float64, n)
	for i, v := range y {
		yc[i] = v - mu
	}

	var rhs mat.VecDense
	rhs.MulVec(z.T(), mat.NewVecDense(n, yc))
	rhsRaw := make([]float64, u)
	for i := range rhsRaw {
		rhsRaw[i] = rhs.AtVec(i)
	}

	alpha, err := spd.SolveVec(rhsRaw)
	if err != nil {
		return nil, err
	}

	// diag((ZᵀZ+λmI)⁻¹) via a solve against the identity; feeds the
	// standard errors.
	ones := make([]float64, u)
	for i := range ones {
		ones[i] = 1
	}
	inv, err := spd.Solve(mat.NewDiagDense(u, ones))
	if err != nil {
		return nil, err
	}

	var gv mat.VecDense
	gv.MulVec(z, mat.NewVecDense(u, alpha))
	gebv := make([]float64, n)
	for i := range gebv {
		gebv[i] = gv.AtVec(i)
	}

	var vp float64
	if n > 1 {
		vp = stat.Variance(y, nil)
	}
	varG := h2 * vp
	varE := (1 - h2) * vp

	res := &Result{
		Effects:          effects(m, cols, alpha, inv, freq, varE, vp, n),
		GEBV:             gebv,
		Mean:             mu,
		Accuracy:         fitCorrelation(gebv, yc),
		GeneticVariance:  varG,
		ResidualVariance: varE,
		MarkerVariance:   varG / float64(m),
		Lambda:           lambda,
		NIndividuals:     n,
		NMarkers:         m,
		freq:             freq,
		cols:             cols,
		alpha:            alpha,
	}
	for _, e := range res.Effects {
		if !e.Excluded && e.PValue < significanceLevel {
			res.NSignificant++
		}
	}
	return res, nil
}

// centered builds Z = X - 2p over the given columns, with missing calls
// mean imputed to a centered zero.
func centered(mx *genotype.Matrix, freq []float64, cols []int) *mat.Dense {
	n := mx.Individuals()
	z := mat.NewDense(n, len(cols), nil)
	for i := 0; i < n; i++ {
		for c, j := range cols {
			x, ok := mx.Dosage(i, j)
			if !ok {
				continue
			}
			z.Set(i, c, x-genotype.Ploidy*freq[j])
		}
	}
	return z
}

func effects(m int, cols []int, alpha []float64, inv *mat.Dense, freq []float64, varE, varP float64, n int) []MarkerEffect {
	out := make([]MarkerEffect, m)
	for j := range out {
		out[j] = MarkerEffect{Index: j, PValue: 1, Excluded: true}
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
	for c, j := range cols {
		a := alpha[c]
		se := math.Sqrt(math.Abs(inv.At(c, c)) * varE)
		t := a / math.Max(se, 1e-10)
		p := freq[j]

		out[j] = MarkerEffect{
			Index:  j,
			Effect: a,
			SE:     se,
			TStat:  t,
			PValue: 2 * (1 - tDist.CDF(math.Abs(t))),
			PVE:    genotype.Ploidy * p * (1 - p) * a * a / math.Max(varP, 1e-10),
		}
	}
	return out
}

func fitCorrelation(gebv, yc []float64) float64 {
	if stat.StdDev(gebv, nil) == 0 || stat.StdDev(yc, nil) == 0 {
		return 0
	}
	r := stat.Correlation(gebv, yc, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}
