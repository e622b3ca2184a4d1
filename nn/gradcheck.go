package nn

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
)

// CheckGradients compares the gradients from Backprop with central finite
// differences of Cost, for every weight and bias of net. It returns the
// largest absolute difference seen, and a *GradientCheckError for the first
// parameter whose difference exceeds tol. net is left unchanged.
func CheckGradients(net *Network, ex Example, tol float64) (float64, error) {
	analytic, err := net.Backprop(ex)
	if err != nil {
		return 0, err
	}

	// Cost evaluations inside fd cannot return errors; the first one is kept.
	var costErr error
	settings := &fd.Settings{Formula: fd.Central, Step: 1e-6}

	var worst float64
	for i, l := range net.layers {
		numW := numericGradient(l.w.RawMatrix().Data, net, ex, settings, &costErr)
		numB := numericGradient(l.b.RawVector().Data, net, ex, settings, &costErr)
		if costErr != nil {
			return worst, costErr
		}

		_, cols := l.w.Dims()
		for k, n := range numW {
			a := analytic.Weights[i].At(k/cols, k%cols)
			if d := math.Abs(a - n); d > worst {
				worst = d
			}
			if math.Abs(a-n) > tol {
				return worst, &GradientCheckError{Layer: i + 1, Param: "w", Row: k / cols, Col: k % cols, Analytic: a, Numeric: n}
			}
		}
		for k, n := range numB {
			a := analytic.Biases[i].AtVec(k)
			if d := math.Abs(a - n); d > worst {
				worst = d
			}
			if math.Abs(a-n) > tol {
				return worst, &GradientCheckError{Layer: i + 1, Param: "b", Row: k, Analytic: a, Numeric: n}
			}
		}
	}
	return worst, nil
}

// numericGradient differentiates the cost with respect to every element of
// params, which must be the live storage of one of net's parameters. params
// holds its original values again on return.
func numericGradient(params []float64, net *Network, ex Example, settings *fd.Settings, costErr *error) []float64 {
	orig := append([]float64(nil), params...)
	cost := func(x []float64) float64 {
		copy(params, x)
		c, err := net.Cost(ex)
		if err != nil && *costErr == nil {
			*costErr = err
		}
		return c
	}
	grad := fd.Gradient(nil, cost, orig, settings)
	copy(params, orig)
	return grad
}
