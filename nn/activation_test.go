package nn

import (
	"bytes"
	"errors"
	"log"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

func TestSigmoidBasics(t *testing.T) {
	assert.Equal(t, 0.5, Sigmoid(0))

	prev := Sigmoid(-30)
	for z := -29.5; z <= 30; z += 0.5 {
		s := Sigmoid(z)
		assert.Greater(t, s, prev, "sigmoid must be strictly increasing at z=%g", z)
		assert.Greater(t, s, 0.0)
		assert.Less(t, s, 1.0)
		prev = s
	}
}

func TestSigmoidExtremes(t *testing.T) {
	for _, z := range []float64{-1e6, -800, -MaxExpArg, MaxExpArg, 800, 1e6} {
		s := Sigmoid(z)
		assert.False(t, math.IsNaN(s) || math.IsInf(s, 0), "sigmoid(%g) = %g", z, s)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
		p := SigmoidPrime(z)
		assert.False(t, math.IsNaN(p) || math.IsInf(p, 0), "sigmoid'(%g) = %g", z, p)
	}
}

func TestSigmoidPrime(t *testing.T) {
	for _, z := range []float64{-10, -3, -0.5, 0, 0.25, 2, 7} {
		s := Sigmoid(z)
		assert.InDelta(t, s*(1-s), SigmoidPrime(z), 1e-15)

		numeric := fd.Derivative(Sigmoid, z, &fd.Settings{Formula: fd.Central})
		assert.InDelta(t, numeric, SigmoidPrime(z), 1e-6, "z=%g", z)
	}
}

func testLayer(t *testing.T) *Layer {
	t.Helper()
	l, err := LayerFromParams(
		mat.NewDense(2, 2, []float64{1, 2, 3, 4}),
		mat.NewVecDense(2, []float64{0, 0}),
	)
	require.NoError(t, err)
	l.number = 1
	return l
}

func TestGuardClampsAndReports(t *testing.T) {
	var buf bytes.Buffer
	l := testLayer(t)
	l.guard = &guard{policy: ClampOverflow, logger: log.New(&buf, "", 0)}

	z := mat.NewVecDense(3, []float64{-1000, 0.5, math.Inf(1)})
	require.NoError(t, l.guard.check(l, z))

	assert.Equal(t, -MaxExpArg, z.AtVec(0))
	assert.Equal(t, 0.5, z.AtVec(1))
	assert.Equal(t, MaxExpArg, z.AtVec(2))
	assert.Contains(t, buf.String(), "OVERFLOW ERROR in layer 1")
	assert.Contains(t, buf.String(), "-1000")
	assert.Contains(t, buf.String(), "w =")
	assert.Contains(t, buf.String(), "b =")
}

func TestGuardFails(t *testing.T) {
	var buf bytes.Buffer
	l := testLayer(t)
	l.guard = &guard{policy: FailOnOverflow, logger: log.New(&buf, "", 0)}

	err := l.guard.check(l, mat.NewVecDense(2, []float64{0, -1000}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNumericOverflow))

	var oe *OverflowError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, 1, oe.Layer)
	assert.Equal(t, 1, oe.Index)
	assert.Equal(t, -1000.0, oe.Value)
	assert.True(t, mat.Equal(l.w, oe.Weights))
	assert.True(t, mat.Equal(l.b, oe.Biases))
	assert.NotEmpty(t, buf.String())
}

func TestGuardNaNAlwaysFails(t *testing.T) {
	l := testLayer(t)
	l.guard = &guard{policy: ClampOverflow, logger: log.New(&bytes.Buffer{}, "", 0)}

	err := l.guard.check(l, mat.NewVecDense(1, []float64{math.NaN()}))
	assert.ErrorIs(t, err, ErrNumericOverflow)
}

func TestOverflowPolicyLookup(t *testing.T) {
	for name, p := range OverflowPolicyLookup {
		assert.Equal(t, name, p.String())
	}
}
