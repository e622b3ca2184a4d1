package nn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Layer is one affine-plus-sigmoid stage of a Network. Each row of the
// weight matrix holds the incoming weights of one node.
type Layer struct {
	w *mat.Dense
	b *mat.VecDense

	// number is the position of the layer in the topology; the input
	// layer is 0 and has no Layer.
	number int
	guard  *guard
}

// NewLayer creates a layer mapping in inputs to out outputs. Weights are drawn
// from N(0, 1/in) and biases from N(0, 1).
func NewLayer(in, out int, src rand.Source) (*Layer, error) {
	if in < 1 || out < 1 {
		return nil, fmt.Errorf("%w: layer widths must be positive, got %d -> %d", ErrInvalidConfiguration, in, out)
	}
	return &Layer{
		w:     mat.NewDense(out, in, randomArray(out*in, 1/math.Sqrt(float64(in)), src)),
		b:     mat.NewVecDense(out, randomArray(out, 1, src)),
		guard: defaultGuard(),
	}, nil
}

// LayerFromParams builds a layer from existing parameters. Both are copied.
func LayerFromParams(w mat.Matrix, b mat.Vector) (*Layer, error) {
	if w == nil || b == nil {
		return nil, fmt.Errorf("%w: nil layer parameters", ErrInvalidConfiguration)
	}
	rows, _ := w.Dims()
	if rows != b.Len() {
		return nil, &ShapeError{What: "bias vector", Got: b.Len(), Want: rows}
	}
	return &Layer{
		w:     mat.DenseCopyOf(w),
		b:     mat.VecDenseCopyOf(b),
		guard: defaultGuard(),
	}, nil
}

// Dims returns the input and output widths of the layer.
func (l *Layer) Dims() (in, out int) {
	out, in = l.w.Dims()
	return in, out
}

// Weights returns a copy of the weight matrix.
func (l *Layer) Weights() *mat.Dense { return mat.DenseCopyOf(l.w) }

// Biases returns a copy of the bias vector.
func (l *Layer) Biases() *mat.VecDense { return mat.VecDenseCopyOf(l.b) }

// Calculate returns sigmoid(W·x + b). x must have the layer's input width.
func (l *Layer) Calculate(x mat.Vector) (*mat.VecDense, error) {
	_, a, err := l.forward(x)
	return a, err
}

// forward returns the weighted sum z and the activation a for x.
func (l *Layer) forward(x mat.Vector) (z, a *mat.VecDense, err error) {
	in, out := l.Dims()
	if x.Len() != in {
		return nil, nil, &ShapeError{What: "inputs", Got: x.Len(), Want: in, Layer: l.number}
	}
	z = mat.NewVecDense(out, nil)
	z.MulVec(l.w, x)
	z.AddVec(z, l.b)
	if err := l.guard.check(l, z); err != nil {
		return nil, nil, err
	}
	return z, sigmoidVec(z), nil
}

// applyUpdate performs W ← W − η(∇W + decay·W) and b ← b − η∇b in place.
func (l *Layer) applyUpdate(gw *mat.Dense, gb *mat.VecDense, eta, decay float64) {
	var step mat.Dense
	step.Scale(decay, l.w)
	step.Add(&step, gw)
	step.Scale(eta, &step)
	l.w.Sub(l.w, &step)
	l.b.AddScaledVec(l.b, -eta, gb)
}
