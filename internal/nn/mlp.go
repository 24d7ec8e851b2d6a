package nn

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when inputs or restored parameters do not
// fit the network architecture.
var ErrShapeMismatch = errors.New("shape mismatch")

// QNet is a three layer feed-forward value network:
//
//	input -> Hidden1 (relu) -> Hidden2 (linear) -> output (linear)
//
// Each output is the estimated value of one action.
type QNet struct {
	InputSize  int
	Hidden1    int
	Hidden2    int
	OutputSize int

	// W[i] is in x out, B[i] is 1 x out
	W [3]*mat.Dense
	B [3]*mat.Dense
}

// NewQNet creates a network with uniform(-1/sqrt(fan_in), 1/sqrt(fan_in))
// initialization for weights and biases
func NewQNet(inputSize, hidden1, hidden2, outputSize int, rng *rand.Rand) *QNet {
	q := &QNet{
		InputSize:  inputSize,
		Hidden1:    hidden1,
		Hidden2:    hidden2,
		OutputSize: outputSize,
	}
	sizes := q.layerSizes()
	for i := range q.W {
		in, out := sizes[i], sizes[i+1]
		bound := 1 / math.Sqrt(float64(in))
		q.W[i] = mat.NewDense(in, out, uniform(in*out, bound, rng))
		q.B[i] = mat.NewDense(1, out, uniform(out, bound, rng))
	}
	return q
}

func (q *QNet) layerSizes() [4]int {
	return [4]int{q.InputSize, q.Hidden1, q.Hidden2, q.OutputSize}
}

func uniform(n int, bound float64, rng *rand.Rand) []float64 {
	data := make([]float64, n)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * bound
	}
	return data
}

// Params returns the trainable matrices in a fixed order
func (q *QNet) Params() []*mat.Dense {
	return []*mat.Dense{q.W[0], q.B[0], q.W[1], q.B[1], q.W[2], q.B[2]}
}

// NumParams returns the total number of weights (including biases)
func (q *QNet) NumParams() int {
	n := 0
	for _, p := range q.Params() {
		r, c := p.Dims()
		n += r * c
	}
	return n
}

// Clone returns a deep copy of the network
func (q *QNet) Clone() *QNet {
	c := &QNet{
		InputSize:  q.InputSize,
		Hidden1:    q.Hidden1,
		Hidden2:    q.Hidden2,
		OutputSize: q.OutputSize,
	}
	for i := range q.W {
		c.W[i] = mat.DenseCopyOf(q.W[i])
		c.B[i] = mat.DenseCopyOf(q.B[i])
	}
	return c
}

// activations holds the intermediate values of a forward pass
type activations struct {
	x  *mat.Dense // batch x input
	z1 *mat.Dense // pre-activation of the first hidden layer
	a1 *mat.Dense
	h2 *mat.Dense
	q  *mat.Dense
}

// Forward evaluates a batch (one state per row) and returns batch x output values
func (q *QNet) Forward(x *mat.Dense) (*mat.Dense, error) {
	act, err := q.forward(x)
	if err != nil {
		return nil, err
	}
	return act.q, nil
}

func (q *QNet) forward(x *mat.Dense) (*activations, error) {
	rows, cols := x.Dims()
	if cols != q.InputSize {
		return nil, fmt.Errorf("%w: input has %d columns, network expects %d", ErrShapeMismatch, cols, q.InputSize)
	}

	act := &activations{x: x}
	act.z1 = affine(x, q.W[0], q.B[0], rows)
	act.a1 = mat.NewDense(rows, q.Hidden1, nil)
	act.a1.Apply(func(_, _ int, v float64) float64 { return relu(v) }, act.z1)
	act.h2 = affine(act.a1, q.W[1], q.B[1], rows)
	act.q = affine(act.h2, q.W[2], q.B[2], rows)
	return act, nil
}

// affine computes x*w + b with b broadcast over the rows
func affine(x, w, b *mat.Dense, rows int) *mat.Dense {
	_, out := w.Dims()
	y := mat.NewDense(rows, out, nil)
	y.Mul(x, w)
	bias := b.RawRowView(0)
	for i := 0; i < rows; i++ {
		floats.Add(y.RawRowView(i), bias)
	}
	return y
}

// Predict evaluates a single state
func (q *QNet) Predict(state []float64) ([]float64, error) {
	x, err := Batch([][]float64{state})
	if err != nil {
		return nil, err
	}
	out, err := q.Forward(x)
	if err != nil {
		return nil, err
	}
	result := make([]float64, q.OutputSize)
	copy(result, out.RawRowView(0))
	return result, nil
}

// Act returns the index of the highest valued action for state
func (q *QNet) Act(state []float64) (int, error) {
	values, err := q.Predict(state)
	if err != nil {
		return 0, err
	}
	return Argmax(values), nil
}

// gradients backpropagates dOut, the loss gradient with respect to the
// network output. The order matches Params.
func (q *QNet) gradients(act *activations, dOut *mat.Dense) []*mat.Dense {
	grads := make([]*mat.Dense, 6)
	rows, _ := dOut.Dims()

	// output layer
	grads[4] = mat.NewDense(q.Hidden2, q.OutputSize, nil)
	grads[4].Mul(act.h2.T(), dOut)
	grads[5] = colSum(dOut)

	// second hidden layer has no activation
	dH2 := mat.NewDense(rows, q.Hidden2, nil)
	dH2.Mul(dOut, q.W[2].T())
	grads[2] = mat.NewDense(q.Hidden1, q.Hidden2, nil)
	grads[2].Mul(act.a1.T(), dH2)
	grads[3] = colSum(dH2)

	// first hidden layer, through relu
	dA1 := mat.NewDense(rows, q.Hidden1, nil)
	dA1.Mul(dH2, q.W[1].T())
	dA1.Apply(func(i, j int, v float64) float64 {
		if act.z1.At(i, j) > 0 {
			return v
		}
		return 0
	}, dA1)
	grads[0] = mat.NewDense(q.InputSize, q.Hidden1, nil)
	grads[0].Mul(act.x.T(), dA1)
	grads[1] = colSum(dA1)

	return grads
}

func colSum(m *mat.Dense) *mat.Dense {
	rows, cols := m.Dims()
	sum := mat.NewDense(1, cols, nil)
	dst := sum.RawRowView(0)
	for i := 0; i < rows; i++ {
		floats.Add(dst, m.RawRowView(i))
	}
	return sum
}

// Batch stacks states into a matrix with one state per row. A single state
// becomes a batch of one.
func Batch(states [][]float64) (*mat.Dense, error) {
	if len(states) == 0 || len(states[0]) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrShapeMismatch)
	}
	cols := len(states[0])
	data := make([]float64, 0, len(states)*cols)
	for i, s := range states {
		if len(s) != cols {
			return nil, fmt.Errorf("%w: row %d has %d values, expected %d", ErrShapeMismatch, i, len(s), cols)
		}
		data = append(data, s...)
	}
	return mat.NewDense(len(states), cols, data), nil
}

func relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Argmax returns the index of the largest value, the first one on ties
func Argmax(vals []float64) int {
	maxIdx := 0
	maxVal := vals[0]
	for i := 1; i < len(vals); i++ {
		if vals[i] > maxVal {
			maxVal = vals[i]
			maxIdx = i
		}
	}
	return maxIdx
}
