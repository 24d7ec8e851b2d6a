package agent

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"snakedqn/internal/nn"
)

// Trainer performs one-step Q-learning updates on the online network. The
// bootstrap values come from the same network, there is no frozen target copy.
type Trainer struct {
	net   *nn.QNet
	opt   *nn.Adam
	gamma float64
}

// NewTrainer creates a trainer that optimizes net with Adam
func NewTrainer(net *nn.QNet, learningRate, gamma float64) *Trainer {
	return &Trainer{
		net:   net,
		opt:   nn.NewAdam(learningRate),
		gamma: gamma,
	}
}

// Step runs one optimization step over batch and returns the loss.
// An empty batch is a no-op.
func (t *Trainer) Step(batch []Transition) (float64, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	states := make([][]float64, len(batch))
	next := make([][]float64, len(batch))
	for i, tr := range batch {
		if int(tr.Action) < 0 || int(tr.Action) >= t.net.OutputSize {
			return 0, fmt.Errorf("%w: action %d out of range", nn.ErrShapeMismatch, tr.Action)
		}
		states[i] = tr.State
		next[i] = tr.NextState
	}
	x, err := nn.Batch(states)
	if err != nil {
		return 0, fmt.Errorf("failed to batch states: %w", err)
	}
	nx, err := nn.Batch(next)
	if err != nil {
		return 0, fmt.Errorf("failed to batch next states: %w", err)
	}
	nextQ, err := t.net.Forward(nx)
	if err != nil {
		return 0, err
	}

	return t.net.Fit(x, t.targets(batch, nextQ), t.opt)
}

// targets builds the regression target for batch: each row keeps the
// prediction except at the taken action, which becomes
// reward + gamma*max(nextQ row), or just the reward for terminal rows.
func (t *Trainer) targets(batch []Transition, nextQ *mat.Dense) nn.TargetFunc {
	return func(pred *mat.Dense) (*mat.Dense, error) {
		tgt := mat.DenseCopyOf(pred)
		for i, tr := range batch {
			qNew := tr.Reward
			if !tr.Done {
				qNew += t.gamma * floats.Max(nextQ.RawRowView(i))
			}
			tgt.Set(i, int(tr.Action), qNew)
		}
		return tgt, nil
	}
}

// Updates returns the number of optimizer steps taken so far
func (t *Trainer) Updates() int {
	return t.opt.Steps()
}

// StepOne trains on a single transition as a batch of one
func (t *Trainer) StepOne(tr Transition) (float64, error) {
	return t.Step([]Transition{tr})
}
