package nn

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func newTestNet(seed uint64) *QNet {
	return NewQNet(4, 6, 5, 3, rand.New(rand.NewSource(seed)))
}

func TestForwardShapes(t *testing.T) {
	q := newTestNet(1)

	tests := []struct {
		name string
		rows int
	}{
		{"single", 1},
		{"batch", 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := q.Forward(mat.NewDense(tt.rows, 4, nil))
			if err != nil {
				t.Fatalf("Forward: %v", err)
			}
			if r, c := out.Dims(); r != tt.rows || c != 3 {
				t.Fatalf("output is %dx%d, expected %dx3", r, c, tt.rows)
			}
		})
	}

	if _, err := q.Forward(mat.NewDense(2, 5, nil)); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("wrong width: err = %v, expected ErrShapeMismatch", err)
	}
}

func TestPredictMatchesBatchRow(t *testing.T) {
	q := newTestNet(2)
	states := [][]float64{
		{1, 0, 0, 1},
		{0, 1, 1, 0},
		{0.5, 0.5, 0, 1},
	}
	x, err := Batch(states)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	out, err := q.Forward(x)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	for i, s := range states {
		single, err := q.Predict(s)
		if err != nil {
			t.Fatalf("Predict: %v", err)
		}
		for j, v := range single {
			if math.Abs(v-out.At(i, j)) > 1e-12 {
				t.Fatalf("row %d col %d: predict %v, batch %v", i, j, v, out.At(i, j))
			}
		}
	}
}

func TestBatchRejectsRagged(t *testing.T) {
	if _, err := Batch(nil); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("empty batch: err = %v", err)
	}
	if _, err := Batch([][]float64{{1, 2}, {3}}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("ragged batch: err = %v", err)
	}
}

func TestArgmax(t *testing.T) {
	tests := []struct {
		vals []float64
		want int
	}{
		{[]float64{1, 2, 3}, 2},
		{[]float64{3, 2, 1}, 0},
		{[]float64{1, 5, 5}, 1},
		{[]float64{-2, -1, -3}, 1},
	}
	for _, tt := range tests {
		if got := Argmax(tt.vals); got != tt.want {
			t.Errorf("Argmax(%v) = %d, expected %d", tt.vals, got, tt.want)
		}
	}
}

func mseLoss(q *QNet, x, target *mat.Dense) float64 {
	out, _ := q.Forward(x)
	rows, cols := out.Dims()
	var sum float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d := out.At(i, j) - target.At(i, j)
			sum += d * d
		}
	}
	return sum / float64(rows*cols)
}

func TestGradientsMatchFiniteDifference(t *testing.T) {
	q := newTestNet(3)
	rng := rand.New(rand.NewSource(4))
	x := mat.NewDense(5, 4, uniform(20, 1, rng))
	target := mat.NewDense(5, 3, uniform(15, 1, rng))

	act, err := q.forward(x)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	rows, cols := act.q.Dims()
	dOut := mat.NewDense(rows, cols, nil)
	dOut.Sub(act.q, target)
	dOut.Scale(2/float64(rows*cols), dOut)
	grads := q.gradients(act, dOut)

	const h = 1e-6
	for pi, p := range q.Params() {
		data := p.RawMatrix().Data
		for j := range data {
			orig := data[j]
			data[j] = orig + h
			plus := mseLoss(q, x, target)
			data[j] = orig - h
			minus := mseLoss(q, x, target)
			data[j] = orig

			numeric := (plus - minus) / (2 * h)
			analytic := grads[pi].RawMatrix().Data[j]
			if math.Abs(numeric-analytic) > 1e-5 {
				t.Fatalf("param %d entry %d: analytic %v, numeric %v", pi, j, analytic, numeric)
			}
		}
	}
}

func TestFitReducesLoss(t *testing.T) {
	q := newTestNet(5)
	x := mat.NewDense(2, 4, []float64{
		1, 0, 0, 1,
		0, 1, 1, 0,
	})
	want := mat.NewDense(2, 3, []float64{
		10, 0, -10,
		-1, 2, 0,
	})
	target := func(pred *mat.Dense) (*mat.Dense, error) {
		return mat.DenseCopyOf(want), nil
	}

	opt := NewAdam(0.01)
	first, err := q.Fit(x, target, opt)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	var last float64
	for i := 0; i < 300; i++ {
		last, err = q.Fit(x, target, opt)
		if err != nil {
			t.Fatalf("Fit: %v", err)
		}
	}
	if last >= first/2 {
		t.Fatalf("loss did not drop: first %v, last %v", first, last)
	}
	if opt.Steps() != 301 {
		t.Fatalf("Steps() = %d, expected 301", opt.Steps())
	}
}

func TestFitRejectsBadTarget(t *testing.T) {
	q := newTestNet(6)
	x := mat.NewDense(2, 4, nil)
	target := func(pred *mat.Dense) (*mat.Dense, error) {
		return mat.NewDense(1, 3, nil), nil
	}
	if _, err := q.Fit(x, target, NewAdam(0.001)); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("err = %v, expected ErrShapeMismatch", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	q := newTestNet(7)
	c := q.Clone()
	q.W[0].Set(0, 0, 42)
	if c.W[0].At(0, 0) == 42 {
		t.Fatal("clone shares weights with the original")
	}
	if c.NumParams() != q.NumParams() {
		t.Fatalf("NumParams: clone %d, original %d", c.NumParams(), q.NumParams())
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	q := newTestNet(8)
	path := filepath.Join(t.TempDir(), "best_model", "model.gob")
	if err := q.Save(path, Meta{Games: 12, Record: 7}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored := newTestNet(9)
	meta, err := restored.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if meta.Games != 12 || meta.Record != 7 {
		t.Fatalf("meta = %+v", meta)
	}

	state := []float64{0.3, 1, 0, 0.7}
	want, _ := q.Predict(state)
	got, _ := restored.Predict(state)
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("output %d: restored %v, saved %v", i, got[i], want[i])
		}
	}
}

func TestCheckpointArchitectureMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gob")
	if err := newTestNet(1).Save(path, Meta{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	other := NewQNet(4, 8, 5, 3, rand.New(rand.NewSource(1)))
	if _, err := other.Load(path); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("err = %v, expected ErrShapeMismatch", err)
	}
}
