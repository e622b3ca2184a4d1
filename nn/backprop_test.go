package nn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

func smallNetwork(t *testing.T, topology ...int) *Network {
	t.Helper()
	net, err := NewNetwork(topology, WithSeed(5), WithLogger(quiet))
	require.NoError(t, err)
	return net
}

func TestBackpropShapes(t *testing.T) {
	net := smallNetwork(t, 4, 5, 3, 2)
	g, err := net.Backprop(Example{Input: []float64{0.1, 0.2, 0.3, 0.4}, Expected: []float64{0, 1}})
	require.NoError(t, err)

	require.Len(t, g.Weights, 3)
	require.Len(t, g.Biases, 3)
	for i := range g.Weights {
		in, out := net.Layer(i + 1).Dims()
		r, c := g.Weights[i].Dims()
		assert.Equal(t, out, r)
		assert.Equal(t, in, c)
		assert.Equal(t, out, g.Biases[i].Len())
	}
}

func TestBackpropShapeErrors(t *testing.T) {
	net := smallNetwork(t, 2, 3, 1)
	_, err := net.Backprop(Example{Input: []float64{1}, Expected: []float64{1}})
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = net.Backprop(Example{Input: []float64{1, 2}, Expected: []float64{1, 0}})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

// Perturbing a single weight by ±ε must move the cost as the analytic
// gradient predicts.
func TestBackpropFiniteDifference(t *testing.T) {
	net := smallNetwork(t, 2, 3, 1)
	ex := Example{Input: []float64{0.7, -0.3}, Expected: []float64{1}}

	g, err := net.Backprop(ex)
	require.NoError(t, err)

	for n := 1; n <= net.NumLayers(); n++ {
		l := net.Layer(n)
		rows, cols := l.w.Dims()
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				orig := l.w.At(r, c)
				numeric := fd.Derivative(func(v float64) float64 {
					l.w.Set(r, c, v)
					cost, err := net.Cost(ex)
					require.NoError(t, err)
					return cost
				}, orig, &fd.Settings{Formula: fd.Central, Step: 1e-5})
				l.w.Set(r, c, orig)
				assert.InDelta(t, numeric, g.Weights[n-1].At(r, c), 1e-4, "layer %d w[%d,%d]", n, r, c)
			}
		}
	}
}

func TestBackpropReadOnly(t *testing.T) {
	net := smallNetwork(t, 3, 4, 2)
	before := []*mat.Dense{net.Layer(1).Weights(), net.Layer(2).Weights()}

	_, err := net.Backprop(Example{Input: []float64{1, 0, 1}, Expected: []float64{1, 0}})
	require.NoError(t, err)

	assert.True(t, mat.Equal(before[0], net.Layer(1).w))
	assert.True(t, mat.Equal(before[1], net.Layer(2).w))
}

func TestBackpropOutputLayerByHand(t *testing.T) {
	// Single layer: δ = (a − y) ⊙ σ'(z), ∇W = δ xᵀ, ∇b = δ.
	l, err := LayerFromParams(mat.NewDense(1, 2, []float64{0.5, -1}), mat.NewVecDense(1, []float64{0.1}))
	require.NoError(t, err)
	net, err := FromLayers([]*Layer{l}, WithLogger(quiet))
	require.NoError(t, err)

	x := []float64{2, 1}
	z := 0.5*2 - 1*1 + 0.1
	delta := (Sigmoid(z) - 0) * SigmoidPrime(z)

	g, err := net.Backprop(Example{Input: x, Expected: []float64{0}})
	require.NoError(t, err)
	assert.InDelta(t, delta, g.Biases[0].AtVec(0), 1e-15)
	assert.InDelta(t, delta*2, g.Weights[0].At(0, 0), 1e-15)
	assert.InDelta(t, delta*1, g.Weights[0].At(0, 1), 1e-15)
}

func TestGradientsAddScale(t *testing.T) {
	net := smallNetwork(t, 2, 2, 1)
	a := NewGradients(net)
	b := NewGradients(net)
	b.Weights[0].Set(1, 1, 4)
	b.Biases[1].SetVec(0, 2)

	a.Add(b)
	a.Add(b)
	a.Scale(0.25)
	assert.Equal(t, 2.0, a.Weights[0].At(1, 1))
	assert.Equal(t, 1.0, a.Biases[1].AtVec(0))
	assert.Equal(t, 0.0, a.Weights[1].At(0, 0))
}

func TestCheckGradients(t *testing.T) {
	net := smallNetwork(t, 3, 4, 2)
	ex := Example{Input: []float64{0.2, 0.9, 0.4}, Expected: []float64{0, 1}}
	before := net.Layer(1).Weights()

	diff, err := CheckGradients(net, ex, 1e-6)
	require.NoError(t, err)
	assert.Less(t, diff, 1e-6)
	assert.True(t, mat.Equal(before, net.Layer(1).w))
}

func TestCheckGradientsReportsMismatch(t *testing.T) {
	net := smallNetwork(t, 2, 2, 1)
	ex := Example{Input: []float64{0.5, 0.5}, Expected: []float64{1}}

	_, err := CheckGradients(net, ex, -1)
	var ge *GradientCheckError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, 1, ge.Layer)
}
