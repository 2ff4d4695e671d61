// Package linalg provides the shared dense linear-algebra kernel behind the
// mixed-model solvers: a symmetric solve with factorization fallback and the
// cached state reused by the breeding-value and reliability paths.
package linalg

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when a system cannot be solved by any of the
// factorization fallbacks.
var ErrSingular = errors.New("linalg: matrix is singular")

// Method identifies which factorization served a solver.
type Method string

const (
	MethodCholesky    Method = "cholesky"
	MethodLU          Method = "lu"
	MethodRegularized Method = "regularized"
)

// regularizationScale sizes the diagonal shift of the last-resort retry,
// relative to the mean diagonal of the input.
const regularizationScale = 1e-8

// SPDSolver solves M x = b for a symmetric M that is expected, but not
// required, to be positive definite. Factorization is attempted in order:
// Cholesky, then pivoted LU, then Cholesky on M + εI with
// ε = 1e-8·trace(M)/n. The chain is part of a single construction attempt,
// not a retry policy.
type SPDSolver struct {
	n       int
	method  Method
	epsilon float64
	chol    mat.Cholesky
	lu      mat.LU
}

// NewSPDSolver factorizes m. Returns ErrSingular when every fallback fails.
func NewSPDSolver(m *mat.SymDense) (*SPDSolver, error) {
	n := m.SymmetricDim()
	if n == 0 {
		return nil, ErrSingular
	}

	s := &SPDSolver{n: n}

	if s.chol.Factorize(m) {
		s.method = MethodCholesky
		return s, nil
	}

	s.lu.Factorize(m)
	if s.lu.Cond() <= mat.ConditionTolerance {
		s.method = MethodLU
		return s, nil
	}

	eps := regularizationScale * mat.Trace(m) / float64(n)
	if eps <= 0 || math.IsNaN(eps) {
		eps = regularizationScale
	}

	reg := mat.NewSymDense(n, nil)
	reg.CopySym(m)
	for i := 0; i < n; i++ {
		reg.SetSym(i, i, reg.At(i, i)+eps)
	}
	if s.chol.Factorize(reg) {
		s.method = MethodRegularized
		s.epsilon = eps
		return s, nil
	}

	return nil, ErrSingular
}

// Dim returns the order of the factorized system.
func (s *SPDSolver) Dim() int { return s.n }

// Method returns which factorization served.
func (s *SPDSolver) Method() Method { return s.method }

// Epsilon returns the diagonal shift applied by the regularized fallback,
// zero otherwise.
func (s *SPDSolver) Epsilon() float64 { return s.epsilon }

// SolveVec solves M x = b for a single right-hand side.
func (s *SPDSolver) SolveVec(b []float64) ([]float64, error) {
	if len(b) != s.n {
		return nil, fmt.Errorf("linalg: rhs length %d, want %d", len(b), s.n)
	}

	var x mat.VecDense
	var err error
	if s.method == MethodLU {
		err = s.lu.SolveVecTo(&x, false, mat.NewVecDense(s.n, b))
	} else {
		err = s.chol.SolveVecTo(&x, mat.NewVecDense(s.n, b))
	}
	if err != nil {
		// A Condition error still carries a usable solution.
		if _, ok := err.(mat.Condition); !ok {
			return nil, fmt.Errorf("linalg: solve: %w", err)
		}
	}

	out := make([]float64, s.n)
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out, nil
}

// Solve solves M X = B for a matrix right-hand side.
func (s *SPDSolver) Solve(b mat.Matrix) (*mat.Dense, error) {
	if r, _ := b.Dims(); r != s.n {
		return nil, fmt.Errorf("linalg: rhs rows %d, want %d", r, s.n)
	}

	var x mat.Dense
	var err error
	if s.method == MethodLU {
		err = s.lu.SolveTo(&x, false, b)
	} else {
		err = s.chol.SolveTo(&x, b)
	}
	if err != nil {
		if _, ok := err.(mat.Condition); !ok {
			return nil, fmt.Errorf("linalg: solve: %w", err)
		}
	}
	return &x, nil
}
