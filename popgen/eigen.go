package popgen

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/breedkit/gblup/grm"
)

// Spectrum holds the leading eigenpairs of a relationship matrix, the
// principal components of population structure.
type Spectrum struct {
	// Values are the top-k eigenvalues in descending order.
	Values []float64 `json:"values"`

	// Components holds the matching eigenvectors, one slice of length n
	// per component.
	Components [][]float64 `json:"components"`

	// Explained is each component's share of total variance (trace of G);
	// Cumulative is its running sum.
	Explained  []float64 `json:"explained"`
	Cumulative []float64 `json:"cumulative"`
}

// Eigenspectrum decomposes G and returns its top k eigenpairs. k is capped
// at the matrix order.
func Eigenspectrum(ctx context.Context, g *grm.Matrix, k int) (*Spectrum, error) {
	if k < 1 {
		return nil, ErrBadComponents
	}
	n := g.N()
	if k > n {
		k = n
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var es mat.EigenSym
	if !es.Factorize(g.Sym(), true) {
		return nil, ErrEigenFailed
	}

	vals := es.Values(nil) // ascending
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	var total float64
	for _, v := range vals {
		total += v
	}

	sp := &Spectrum{
		Values:     make([]float64, k),
		Components: make([][]float64, k),
		Explained:  make([]float64, k),
		Cumulative: make([]float64, k),
	}

	var cum float64
	for c := 0; c < k; c++ {
		src := n - 1 - c // largest first
		sp.Values[c] = vals[src]

		comp := make([]float64, n)
		for i := 0; i < n; i++ {
			comp[i] = vecs.At(i, src)
		}
		sp.Components[c] = comp

		if total > 0 {
			sp.Explained[c] = vals[src] / total
		}
		cum += sp.Explained[c]
		sp.Cumulative[c] = cum
	}
	return sp, nil
}
