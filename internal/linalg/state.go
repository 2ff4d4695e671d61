package linalg

import (
	"gonum.org/v1/gonum/mat"
)

// SolverState caches A = (G+λI)⁻¹G and its diagonal for one (G, λ) pair.
// The breeding-value path consumes A through Apply, the reliability path
// reads DiagA; both must see the same factorization, which is why the state
// is built once per solve.
//
// (G+λI)⁻¹ and G commute, so A also equals G(G+λI)⁻¹.
type SolverState struct {
	n      int
	lambda float64
	method Method
	a      *mat.Dense
	diag   []float64
}

// NewSolverState factorizes V = G + λI and solves V A = G.
func NewSolverState(g *mat.SymDense, lambda float64) (*SolverState, error) {
	n := g.SymmetricDim()

	v := mat.NewSymDense(n, nil)
	v.CopySym(g)
	for i := 0; i < n; i++ {
		v.SetSym(i, i, v.At(i, i)+lambda)
	}

	solver, err := NewSPDSolver(v)
	if err != nil {
		return nil, err
	}

	a, err := solver.Solve(g)
	if err != nil {
		return nil, err
	}

	diag := make([]float64, n)
	for i := range diag {
		diag[i] = a.At(i, i)
	}

	return &SolverState{
		n:      n,
		lambda: lambda,
		method: solver.Method(),
		a:      a,
		diag:   diag,
	}, nil
}

// Dim returns the order of the system.
func (st *SolverState) Dim() int { return st.n }

// Lambda returns the variance ratio the state was built with.
func (st *SolverState) Lambda() float64 { return st.lambda }

// Method returns the factorization that served the underlying solve.
func (st *SolverState) Method() Method { return st.method }

// DiagA returns the cached diagonal of A. Callers must not mutate it.
func (st *SolverState) DiagA() []float64 { return st.diag }

// Apply computes A·v.
func (st *SolverState) Apply(v []float64) []float64 {
	var out mat.VecDense
	out.MulVec(st.a, mat.NewVecDense(st.n, v))

	res := make([]float64, st.n)
	for i := range res {
		res[i] = out.AtVec(i)
	}
	return res
}
