package nn

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrShapeMismatch        = errors.New("shape mismatch")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrNotFound             = errors.New("network not found")
	ErrCorruptData          = errors.New("corrupt network data")
	ErrNumericOverflow      = errors.New("numeric overflow")
)

// ShapeError reports a vector or matrix whose length does not fit where it was used.
type ShapeError struct {
	What  string
	Got   int
	Want  int
	Layer int // topology layer number, 0 if not tied to a layer
}

func (e *ShapeError) Error() string {
	if e.Layer > 0 {
		return fmt.Sprintf("layer %d: incorrect size of %s: got %d, expected %d", e.Layer, e.What, e.Got, e.Want)
	}
	return fmt.Sprintf("incorrect size of %s: got %d, expected %d", e.What, e.Got, e.Want)
}

func (e *ShapeError) Is(target error) bool { return target == ErrShapeMismatch }

// OverflowError is returned when a weighted sum leaves the range of the
// activation and the network is configured to fail instead of clamp.
type OverflowError struct {
	Layer   int
	Index   int
	Value   float64
	Weights *mat.Dense
	Biases  *mat.VecDense
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("layer %d: weighted sum z[%d] = %g overflows the activation", e.Layer, e.Index, e.Value)
}

func (e *OverflowError) Is(target error) bool { return target == ErrNumericOverflow }

// GradientCheckError is returned by CheckGradients when the analytic and
// numeric gradients disagree.
type GradientCheckError struct {
	Layer    int
	Param    string
	Row, Col int
	Analytic float64
	Numeric  float64
}

func (e *GradientCheckError) Error() string {
	return fmt.Sprintf("layer %d: %s[%d,%d] analytic gradient %g differs from numeric %g",
		e.Layer, e.Param, e.Row, e.Col, e.Analytic, e.Numeric)
}
