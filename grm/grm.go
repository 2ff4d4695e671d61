// Package grm builds genomic relationship matrices from dosage matrices
// using VanRaden Method 1 and derives population summaries from them.
package grm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// symmetryTolerance bounds |G_ij - G_ji| for caller-supplied matrices.
const symmetryTolerance = 1e-8

// Matrix is a genomic relationship matrix plus build metadata. Immutable
// after construction.
type Matrix struct {
	sym         *mat.SymDense
	n           int
	markersUsed int
	scale       float64
	meanDiag    float64
	meanOffDiag float64
}

// N returns the number of individuals.
func (g *Matrix) N() int { return g.n }

// MarkersUsed returns how many variance-bearing markers the matrix was
// built from, or zero for caller-supplied matrices.
func (g *Matrix) MarkersUsed() int { return g.markersUsed }

// Scale returns the VanRaden denominator k = 2·Σ p_j(1-p_j), or zero for
// caller-supplied matrices.
func (g *Matrix) Scale() float64 { return g.scale }

// MeanDiagonal returns the mean of G_ii. Close to 1 for an unrelated,
// randomly mated reference population.
func (g *Matrix) MeanDiagonal() float64 { return g.meanDiag }

// MeanOffDiagonal returns the mean of G_ij, i != j. Zero when n == 1.
func (g *Matrix) MeanOffDiagonal() float64 { return g.meanOffDiag }

// At returns G_ij.
func (g *Matrix) At(i, j int) float64 { return g.sym.At(i, j) }

// Sym returns the underlying symmetric matrix. Callers must not mutate it.
func (g *Matrix) Sym() *mat.SymDense { return g.sym }

// Rows materializes the matrix as row-major [][]float64 for the wire.
func (g *Matrix) Rows() [][]float64 {
	rows := make([][]float64, g.n)
	for i := 0; i < g.n; i++ {
		rows[i] = make([]float64, g.n)
		for j := 0; j < g.n; j++ {
			rows[i][j] = g.sym.At(i, j)
		}
	}
	return rows
}

// FromDense wraps a caller-supplied relationship matrix, validating that it
// is square and symmetric within tolerance. Build metadata (markers used,
// scale) is unknown and reported as zero.
func FromDense(raw [][]float64) (*Matrix, error) {
	n := len(raw)
	if n == 0 {
		return nil, &DimensionError{Rows: 0, Cols: 0}
	}
	for _, row := range raw {
		if len(row) != n {
			return nil, &DimensionError{Rows: n, Cols: len(row)}
		}
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if math.Abs(raw[i][j]-raw[j][i]) > symmetryTolerance {
				return nil, ErrNotSymmetric
			}
			sym.SetSym(i, j, raw[i][j])
		}
	}

	g := &Matrix{sym: sym, n: n}
	g.meanDiag, g.meanOffDiag = diagStats(sym)
	return g, nil
}

func diagStats(sym *mat.SymDense) (meanDiag, meanOffDiag float64) {
	n := sym.SymmetricDim()
	for i := 0; i < n; i++ {
		meanDiag += sym.At(i, i)
	}
	meanDiag /= float64(n)

	if n < 2 {
		return meanDiag, 0
	}
	var off float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			off += sym.At(i, j)
		}
	}
	meanOffDiag = 2 * off / float64(n*(n-1))
	return meanDiag, meanOffDiag
}
