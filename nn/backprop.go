package nn

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Gradients holds one weight gradient and one bias gradient per layer, in
// layer order.
type Gradients struct {
	Weights []*mat.Dense
	Biases  []*mat.VecDense
}

// NewGradients returns zero gradients shaped like net.
func NewGradients(net *Network) *Gradients {
	g := &Gradients{
		Weights: make([]*mat.Dense, len(net.layers)),
		Biases:  make([]*mat.VecDense, len(net.layers)),
	}
	for i, l := range net.layers {
		in, out := l.Dims()
		g.Weights[i] = mat.NewDense(out, in, nil)
		g.Biases[i] = mat.NewVecDense(out, nil)
	}
	return g
}

// Add accumulates o into g. Both must have been shaped by the same network.
func (g *Gradients) Add(o *Gradients) {
	for i := range g.Weights {
		floats.Add(g.Weights[i].RawMatrix().Data, o.Weights[i].RawMatrix().Data)
		floats.Add(g.Biases[i].RawVector().Data, o.Biases[i].RawVector().Data)
	}
}

// Scale multiplies every gradient by s.
func (g *Gradients) Scale(s float64) {
	for i := range g.Weights {
		floats.Scale(s, g.Weights[i].RawMatrix().Data)
		floats.Scale(s, g.Biases[i].RawVector().Data)
	}
}

// Backprop returns the gradient of the quadratic cost ½‖expected − output‖²
// with respect to every weight and bias, for a single example. It only reads
// the network parameters.
func (net *Network) Backprop(ex Example) (*Gradients, error) {
	if len(ex.Input) != net.inputSize {
		return nil, &ShapeError{What: "inputs", Got: len(ex.Input), Want: net.inputSize}
	}
	if len(ex.Expected) != net.OutputSize() {
		return nil, &ShapeError{What: "expected outputs", Got: len(ex.Expected), Want: net.OutputSize()}
	}

	// Weighted inputs z[l] exist for every real layer; activations a[l] also
	// include the input vector at a[0].
	L := len(net.layers)
	z := make([]*mat.VecDense, L)
	a := make([]*mat.VecDense, L+1)
	a[0] = vectorOf(ex.Input)
	for i, l := range net.layers {
		var err error
		z[i], a[i+1], err = l.forward(a[i])
		if err != nil {
			return nil, err
		}
	}

	// Output error, then walk backwards using the later layer's weights.
	d := make([]*mat.VecDense, L)
	expected := mat.NewVecDense(len(ex.Expected), ex.Expected)
	d[L-1] = multiply(costPrime(expected, a[L]), sigmoidPrimeVec(z[L-1]))
	for i := L - 2; i >= 0; i-- {
		d[i] = multiply(transposedProduct(net.layers[i+1].w, d[i+1]), sigmoidPrimeVec(z[i]))
	}

	g := &Gradients{
		Weights: make([]*mat.Dense, L),
		Biases:  make([]*mat.VecDense, L),
	}
	for i := range net.layers {
		g.Weights[i] = outer(d[i], a[i])
		g.Biases[i] = d[i]
	}
	return g, nil
}

// costPrime is the derivative of the quadratic cost with respect to the output.
func costPrime(expected, output mat.Vector) *mat.VecDense {
	return subtract(output, expected)
}
