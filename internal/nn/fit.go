package nn

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// TargetFunc builds the regression target for a batch from the network's
// current prediction. It must return a new matrix of the same shape.
type TargetFunc func(pred *mat.Dense) (*mat.Dense, error)

// Fit runs one optimization step on the mean squared error between the
// prediction for x and the target built from it. Returns the loss before the
// update.
func (q *QNet) Fit(x *mat.Dense, target TargetFunc, opt *Adam) (float64, error) {
	act, err := q.forward(x)
	if err != nil {
		return 0, err
	}

	t, err := target(act.q)
	if err != nil {
		return 0, err
	}
	rows, cols := act.q.Dims()
	if tr, tc := t.Dims(); tr != rows || tc != cols {
		return 0, fmt.Errorf("%w: target is %dx%d, prediction is %dx%d", ErrShapeMismatch, tr, tc, rows, cols)
	}

	diff := mat.NewDense(rows, cols, nil)
	diff.Sub(act.q, t)
	n := float64(rows * cols)
	raw := diff.RawMatrix().Data
	loss := floats.Dot(raw, raw) / n

	// d(mean((q - t)^2)) / dq
	diff.Scale(2/n, diff)
	opt.Step(q.Params(), q.gradients(act, diff))
	return loss, nil
}
