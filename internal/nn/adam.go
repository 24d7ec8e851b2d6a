package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam implements the Adam optimizer with bias-corrected moment estimates.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	t int
	m [][]float64
	v [][]float64
}

// NewAdam creates an optimizer with the usual beta and epsilon defaults
func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

// Steps returns the number of updates applied so far
func (a *Adam) Steps() int {
	return a.t
}

// Step updates params in place from grads; both slices share one order.
func (a *Adam) Step(params, grads []*mat.Dense) {
	if a.m == nil {
		a.m = make([][]float64, len(params))
		a.v = make([][]float64, len(params))
		for i, p := range params {
			n := len(p.RawMatrix().Data)
			a.m[i] = make([]float64, n)
			a.v[i] = make([]float64, n)
		}
	}

	a.t++
	correct1 := 1 - math.Pow(a.Beta1, float64(a.t))
	correct2 := 1 - math.Pow(a.Beta2, float64(a.t))

	for i, p := range params {
		w := p.RawMatrix().Data
		g := grads[i].RawMatrix().Data
		m, v := a.m[i], a.v[i]
		for j := range w {
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g[j]
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g[j]*g[j]
			mHat := m[j] / correct1
			vHat := v[j] / correct2
			w[j] -= a.LearningRate * mHat / (math.Sqrt(vHat) + a.Epsilon)
		}
	}
}
