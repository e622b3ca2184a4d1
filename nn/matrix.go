package nn

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// randomArray draws size values from N(0, sigma²).
func randomArray(size int, sigma float64, src rand.Source) []float64 {
	dist := distuv.Normal{
		Mu:    0,
		Sigma: sigma,
		Src:   src,
	}

	data := make([]float64, size)
	for i := 0; i < size; i++ {
		data[i] = dist.Rand()
	}
	return data
}

func multiply(u, v mat.Vector) *mat.VecDense {
	o := mat.NewVecDense(u.Len(), nil)
	o.MulElemVec(u, v)
	return o
}

func subtract(u, v mat.Vector) *mat.VecDense {
	o := mat.NewVecDense(u.Len(), nil)
	o.SubVec(u, v)
	return o
}

// outer returns the rank-one matrix u·vᵀ.
func outer(u, v mat.Vector) *mat.Dense {
	o := mat.NewDense(u.Len(), v.Len(), nil)
	o.Outer(1, u, v)
	return o
}

// transposedProduct returns mᵀ·v.
func transposedProduct(m mat.Matrix, v mat.Vector) *mat.VecDense {
	_, c := m.Dims()
	o := mat.NewVecDense(c, nil)
	o.MulVec(m.T(), v)
	return o
}

func vectorOf(x []float64) *mat.VecDense {
	return mat.NewVecDense(len(x), append([]float64(nil), x...))
}

func sliceOf(v mat.Vector) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
