package nn

import (
	"fmt"
	"log"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Example is a training pair: an input vector and its one-hot expected output.
type Example struct {
	Input    []float64
	Expected []float64
}

// LabeledExample is an evaluation pair: an input vector and its class index.
type LabeledExample struct {
	Input []float64
	Class int
}

// Network is a feedforward network of sigmoid layers. It holds only the real
// layers; the input layer is represented by its width.
type Network struct {
	inputSize int
	layers    []*Layer
	guard     *guard
}

type options struct {
	src    rand.Source
	logger *log.Logger
	policy OverflowPolicy
}

// Option configures a Network.
type Option func(*options)

// WithSeed seeds the source used for parameter initialisation.
func WithSeed(seed int64) Option {
	return func(o *options) { o.src = rand.NewSource(uint64(seed)) }
}

// WithSource sets the source used for parameter initialisation.
func WithSource(src rand.Source) Option {
	return func(o *options) { o.src = src }
}

// WithLogger sets where numeric overflow reports are written.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithOverflowPolicy selects between clamping and failing on overflow.
func WithOverflowPolicy(p OverflowPolicy) Option {
	return func(o *options) { o.policy = p }
}

func buildOptions(opts []Option) options {
	o := options{logger: log.Default(), policy: ClampOverflow}
	for _, opt := range opts {
		opt(&o)
	}
	if o.src == nil {
		o.src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	return o
}

// NewNetwork creates a network with freshly randomised parameters. topology
// lists the layer widths, input width first, e.g. [784, 30, 10].
func NewNetwork(topology []int, opts ...Option) (*Network, error) {
	if len(topology) < 2 {
		return nil, fmt.Errorf("%w: topology needs at least 2 layers, got %d", ErrInvalidConfiguration, len(topology))
	}
	o := buildOptions(opts)
	layers := make([]*Layer, len(topology)-1)
	for i := range layers {
		l, err := NewLayer(topology[i], topology[i+1], o.src)
		if err != nil {
			return nil, fmt.Errorf("creating layer %d: %w", i+1, err)
		}
		layers[i] = l
	}
	return assemble(topology[0], layers, o), nil
}

// FromLayers rebuilds a network from trained layers. The layer widths must chain.
func FromLayers(layers []*Layer, opts ...Option) (*Network, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrInvalidConfiguration)
	}
	for i, l := range layers {
		if l == nil {
			return nil, fmt.Errorf("%w: layer %d is nil", ErrInvalidConfiguration, i+1)
		}
		if i == 0 {
			continue
		}
		_, prevOut := layers[i-1].Dims()
		in, _ := l.Dims()
		if in != prevOut {
			return nil, &ShapeError{What: "layer inputs", Got: in, Want: prevOut, Layer: i + 1}
		}
	}
	inputSize, _ := layers[0].Dims()
	owned := make([]*Layer, len(layers))
	for i, l := range layers {
		owned[i] = &Layer{w: mat.DenseCopyOf(l.w), b: mat.VecDenseCopyOf(l.b)}
	}
	return assemble(inputSize, owned, buildOptions(opts)), nil
}

func assemble(inputSize int, layers []*Layer, o options) *Network {
	g := &guard{policy: o.policy, logger: o.logger}
	for i, l := range layers {
		l.number = i + 1
		l.guard = g
	}
	return &Network{inputSize: inputSize, layers: layers, guard: g}
}

// NumLayers is the number of real layers, i.e. len(topology) - 1.
func (net *Network) NumLayers() int { return len(net.layers) }

// InputSize is the width the network expects its input to have.
func (net *Network) InputSize() int { return net.inputSize }

// OutputSize is the width of the final layer.
func (net *Network) OutputSize() int {
	_, out := net.layers[len(net.layers)-1].Dims()
	return out
}

// Topology returns the layer widths, input width first.
func (net *Network) Topology() []int {
	t := []int{net.inputSize}
	for _, l := range net.layers {
		_, out := l.Dims()
		t = append(t, out)
	}
	return t
}

// Layer returns layer n, numbered as in the topology: 1 is the first layer
// after the inputs and NumLayers() is the output layer.
func (net *Network) Layer(n int) *Layer {
	if n < 1 || n > len(net.layers) {
		panic(fmt.Sprintf("nn: layer %d out of range [1, %d]", n, len(net.layers)))
	}
	return net.layers[n-1]
}

// Feedforward computes the output of the network for input.
func (net *Network) Feedforward(input []float64) ([]float64, error) {
	if len(input) != net.inputSize {
		return nil, &ShapeError{What: "inputs", Got: len(input), Want: net.inputSize}
	}
	out, err := net.FeedforwardVec(vectorOf(input))
	if err != nil {
		return nil, err
	}
	return sliceOf(out), nil
}

// FeedforwardVec is Feedforward for gonum vectors.
func (net *Network) FeedforwardVec(input mat.Vector) (*mat.VecDense, error) {
	if input.Len() != net.inputSize {
		return nil, &ShapeError{What: "inputs", Got: input.Len(), Want: net.inputSize}
	}
	x := input
	var a *mat.VecDense
	for _, l := range net.layers {
		var err error
		a, err = l.Calculate(x)
		if err != nil {
			return nil, err
		}
		x = a
	}
	return a, nil
}

// Predict returns the index of the largest output component.
func (net *Network) Predict(input []float64) (int, error) {
	out, err := net.Feedforward(input)
	if err != nil {
		return 0, err
	}
	return floats.MaxIdx(out), nil
}

// Evaluate returns the percentage of examples, in [0, 100], whose labelled
// class has the largest output. A class tied for the largest output counts
// as correct.
func (net *Network) Evaluate(data []LabeledExample) (float64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: nothing to evaluate", ErrInvalidConfiguration)
	}
	var correct int
	for i, ex := range data {
		out, err := net.Feedforward(ex.Input)
		if err != nil {
			return 0, fmt.Errorf("evaluating example %d: %w", i, err)
		}
		if ex.Class < 0 || ex.Class >= len(out) {
			return 0, fmt.Errorf("evaluating example %d: %w: class %d outside [0, %d)",
				i, ErrInvalidConfiguration, ex.Class, len(out))
		}
		if out[ex.Class] == floats.Max(out) {
			correct++
		}
	}
	return 100 * float64(correct) / float64(len(data)), nil
}

// Cost is the quadratic cost ½‖expected − output‖² for one example.
func (net *Network) Cost(ex Example) (float64, error) {
	out, err := net.Feedforward(ex.Input)
	if err != nil {
		return 0, err
	}
	if len(ex.Expected) != len(out) {
		return 0, &ShapeError{What: "expected outputs", Got: len(ex.Expected), Want: len(out)}
	}
	floats.Sub(out, ex.Expected)
	n := floats.Norm(out, 2)
	return 0.5 * n * n, nil
}
