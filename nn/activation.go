package nn

import (
	"log"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MaxExpArg is the largest x for which math.Exp(x) is finite.
var MaxExpArg = math.Log(math.MaxFloat64)

// OverflowPolicy selects what a layer does with a weighted sum the sigmoid
// cannot take as is.
type OverflowPolicy int

const (
	// ClampOverflow reports the offending value and clamps it into
	// [-MaxExpArg, MaxExpArg].
	ClampOverflow OverflowPolicy = iota
	// FailOnOverflow reports the offending value and returns an *OverflowError.
	FailOnOverflow
)

func (p OverflowPolicy) String() string {
	switch p {
	case ClampOverflow:
		return "clamp"
	case FailOnOverflow:
		return "fail"
	}
	return "unknown"
}

// OverflowPolicyLookup maps configuration names to policies.
var OverflowPolicyLookup = map[string]OverflowPolicy{
	"clamp": ClampOverflow,
	"fail":  FailOnOverflow,
}

// Sigmoid is the logistic function 1 / (1 + e^-z).
func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1.0 + e)
}

// SigmoidPrime is the derivative of Sigmoid, computed from the weighted sum z.
func SigmoidPrime(z float64) float64 {
	s := Sigmoid(z)
	return s * (1 - s)
}

// overflows reports whether e^-z is not representable or z is not finite.
func overflows(z float64) bool {
	return math.IsNaN(z) || math.IsInf(z, 0) || z < -MaxExpArg
}

// guard checks the weighted sums of one layer before the activation runs.
type guard struct {
	policy OverflowPolicy
	logger *log.Logger
}

func defaultGuard() *guard {
	return &guard{policy: ClampOverflow, logger: log.Default()}
}

// check reports and then clamps or rejects every overflowing component of z
// in place. NaN cannot be clamped and always fails.
func (g *guard) check(l *Layer, z *mat.VecDense) error {
	for i := 0; i < z.Len(); i++ {
		v := z.AtVec(i)
		if !overflows(v) {
			continue
		}
		g.report(l, i, v)
		if g.policy == FailOnOverflow || math.IsNaN(v) {
			return &OverflowError{
				Layer:   l.number,
				Index:   i,
				Value:   v,
				Weights: l.Weights(),
				Biases:  l.Biases(),
			}
		}
		z.SetVec(i, math.Max(-MaxExpArg, math.Min(MaxExpArg, v)))
	}
	return nil
}

func (g *guard) report(l *Layer, i int, v float64) {
	g.logger.Printf("OVERFLOW ERROR in layer %d: z[%d] = %g (policy %s)", l.number, i, v, g.policy)
	g.logger.Printf("b =\n%v", mat.Formatted(l.b, mat.Squeeze()))
	g.logger.Printf("w =\n%v", mat.Formatted(l.w, mat.Squeeze(), mat.Excerpt(4)))
}

func sigmoidVec(z *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(z.Len(), nil)
	for i := 0; i < z.Len(); i++ {
		out.SetVec(i, Sigmoid(z.AtVec(i)))
	}
	return out
}

func sigmoidPrimeVec(z *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(z.Len(), nil)
	for i := 0; i < z.Len(); i++ {
		out.SetVec(i, SigmoidPrime(z.AtVec(i)))
	}
	return out
}
