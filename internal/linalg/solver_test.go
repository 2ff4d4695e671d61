package linalg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewSPDSolver(t *testing.T) {
	m := mat.NewSymDense(2, []float64{
		4, 1,
		1, 3,
	})

	s, err := NewSPDSolver(m)
	require.NoError(t, err)
	assert.Equal(t, MethodCholesky, s.Method())
	assert.Equal(t, 2, s.Dim())
	assert.Equal(t, 0.0, s.Epsilon())

	x, err := s.SolveVec([]float64{1, 2})
	require.NoError(t, err)
	assert.InDelta(t, 1.0/11.0, x[0], 1e-12)
	assert.InDelta(t, 7.0/11.0, x[1], 1e-12)
}

func TestSPDSolver_MatrixRHS(t *testing.T) {
	m := mat.NewSymDense(2, []float64{
		4, 1,
		1, 3,
	})

	s, err := NewSPDSolver(m)
	require.NoError(t, err)

	// Solving against the identity yields the inverse.
	eye := mat.NewDiagDense(2, []float64{1, 1})
	inv, err := s.Solve(eye)
	require.NoError(t, err)

	assert.InDelta(t, 3.0/11.0, inv.At(0, 0), 1e-12)
	assert.InDelta(t, -1.0/11.0, inv.At(0, 1), 1e-12)
	assert.InDelta(t, -1.0/11.0, inv.At(1, 0), 1e-12)
	assert.InDelta(t, 4.0/11.0, inv.At(1, 1), 1e-12)
}

func TestNewSPDSolver_LUFallback(t *testing.T) {
	// Symmetric indefinite: eigenvalues ±1, Cholesky must refuse.
	m := mat.NewSymDense(2, []float64{
		0, 1,
		1, 0,
	})

	s, err := NewSPDSolver(m)
	require.NoError(t, err)
	assert.Equal(t, MethodLU, s.Method())

	x, err := s.SolveVec([]float64{1, 2})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, x[0], 1e-12)
	assert.InDelta(t, 1.0, x[1], 1e-12)
}

func TestNewSPDSolver_Regularized(t *testing.T) {
	// Rank one: Cholesky and LU both fail, the εI shift does not.
	m := mat.NewSymDense(2, []float64{
		1, 1,
		1, 1,
	})

	s, err := NewSPDSolver(m)
	require.NoError(t, err)
	assert.Equal(t, MethodRegularized, s.Method())
	assert.InDelta(t, 1e-8, s.Epsilon(), 1e-12)

	x, err := s.SolveVec([]float64{2, 2})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, x[0], 1e-6)
	assert.InDelta(t, 1.0, x[1], 1e-6)
}

func TestNewSPDSolver_CholeskyLUAgreement(t *testing.T) {
	spd := mat.NewSymDense(3, []float64{
		4, 1, 0.5,
		1, 3, 0.25,
		0.5, 0.25, 2,
	})
	b := []float64{1, -2, 0.5}

	chol, err := NewSPDSolver(spd)
	require.NoError(t, err)
	require.Equal(t, MethodCholesky, chol.Method())

	// Force the LU path on the same system.
	lu := &SPDSolver{n: 3, method: MethodLU}
	lu.lu.Factorize(spd)

	xc, err := chol.SolveVec(b)
	require.NoError(t, err)
	xl, err := lu.SolveVec(b)
	require.NoError(t, err)

	for i := range xc {
		assert.InDelta(t, xc[i], xl[i], 1e-9)
	}
}

func TestNewSPDSolver_NonFinite(t *testing.T) {
	m := mat.NewSymDense(2, []float64{
		math.NaN(), 0,
		0, 1,
	})

	_, err := NewSPDSolver(m)
	assert.ErrorIs(t, err, ErrSingular)
}

func TestSPDSolver_DimensionMismatch(t *testing.T) {
	m := mat.NewSymDense(2, []float64{
		2, 0,
		0, 2,
	})

	s, err := NewSPDSolver(m)
	require.NoError(t, err)

	_, err = s.SolveVec([]float64{1, 2, 3})
	assert.Error(t, err)

	_, err = s.Solve(mat.NewDense(3, 1, []float64{1, 2, 3}))
	assert.Error(t, err)
}
