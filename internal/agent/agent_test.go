package agent

import (
	"errors"
	"math"
	"testing"

	"golang.org/x/exp/rand"

	"snakedqn/internal/config"
	"snakedqn/internal/env"
	"snakedqn/internal/nn"
)

func fill(m *Memory, n int) {
	for i := 0; i < n; i++ {
		m.Remember(Transition{Reward: float64(i)})
	}
}

func TestMemoryEvictsOldest(t *testing.T) {
	m := NewMemory(5, rand.New(rand.NewSource(1)))
	fill(m, 8)

	if m.Len() != 5 || m.Cap() != 5 {
		t.Fatalf("Len() = %d, Cap() = %d, expected 5 and 5", m.Len(), m.Cap())
	}
	for i, tr := range m.Transitions() {
		if want := float64(i + 3); tr.Reward != want {
			t.Fatalf("transition %d has reward %v, expected %v", i, tr.Reward, want)
		}
	}
}

func TestMemorySample(t *testing.T) {
	tests := []struct {
		name   string
		stored int
		n      int
		want   int
	}{
		{"subset", 10, 4, 4},
		{"exact", 10, 10, 10},
		{"underfull", 3, 1000, 3},
		{"empty", 0, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMemory(100, rand.New(rand.NewSource(2)))
			fill(m, tt.stored)

			batch := m.Sample(tt.n)
			if len(batch) != tt.want {
				t.Fatalf("Sample(%d) returned %d, expected %d", tt.n, len(batch), tt.want)
			}
			seen := make(map[float64]bool)
			for _, tr := range batch {
				if seen[tr.Reward] {
					t.Fatalf("duplicate transition %v", tr.Reward)
				}
				if tr.Reward < 0 || tr.Reward >= float64(tt.stored) {
					t.Fatalf("transition %v was never stored", tr.Reward)
				}
				seen[tr.Reward] = true
			}
		})
	}
}

func TestPolicyEpsilon(t *testing.T) {
	p := NewPolicy(80, 200, rand.New(rand.NewSource(3)))
	tests := []struct {
		games int
		want  int
	}{
		{0, 80},
		{30, 50},
		{80, 0},
		{500, 0},
	}
	for _, tt := range tests {
		if got := p.Epsilon(tt.games); got != tt.want {
			t.Errorf("Epsilon(%d) = %d, expected %d", tt.games, got, tt.want)
		}
	}
}

func TestPolicyGreedyAfterExploration(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	net := nn.NewQNet(env.StateSize, 8, 8, env.NumActions, rng)
	p := NewPolicy(80, 200, rng)
	state := []float64{0, 1, 0, 1, 0, 0, 0, 0, 1, 1, 0}

	best, err := net.Act(state)
	if err != nil {
		t.Fatalf("Act: %v", err)
	}
	for i := 0; i < 200; i++ {
		action, explored, err := p.Select(net, state, 80)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if explored || int(action) != best {
			t.Fatalf("draw %d: action %v (explored=%v), expected greedy %d", i, action, explored, best)
		}
	}
}

func TestPolicyExploresEarly(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	net := nn.NewQNet(env.StateSize, 8, 8, env.NumActions, rng)
	// a range of 1 makes every draw fall below epsilon
	p := NewPolicy(80, 1, rng)
	state := make([]float64, env.StateSize)

	counts := make(map[env.Action]int)
	for i := 0; i < 300; i++ {
		action, explored, err := p.Select(net, state, 0)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if !explored {
			t.Fatal("expected a random action")
		}
		counts[action]++
	}
	if len(counts) != env.NumActions {
		t.Fatalf("random actions covered %v, expected all %d", counts, env.NumActions)
	}
}

func TestTrainerTerminalTarget(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	net := nn.NewQNet(4, 8, 8, 3, rng)
	trainer := NewTrainer(net, 0.01, 0.9)
	tr := Transition{
		State:     []float64{1, 0, 1, 0},
		Action:    env.ActionRight,
		Reward:    -10,
		NextState: []float64{0, 1, 0, 1},
		Done:      true,
	}

	first, err := trainer.StepOne(tr)
	if err != nil {
		t.Fatalf("StepOne: %v", err)
	}
	var last float64
	for i := 0; i < 1000; i++ {
		if last, err = trainer.StepOne(tr); err != nil {
			t.Fatalf("StepOne: %v", err)
		}
	}
	if last >= first {
		t.Fatalf("loss did not drop: first %v, last %v", first, last)
	}

	q, _ := net.Predict(tr.State)
	if math.Abs(q[env.ActionRight]-tr.Reward) > 0.5 {
		t.Fatalf("Q(right) = %v, expected close to the terminal reward %v", q[env.ActionRight], tr.Reward)
	}
}

func TestTrainerBatch(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	net := nn.NewQNet(4, 8, 8, 3, rng)
	trainer := NewTrainer(net, 0.001, 0.9)
	batch := []Transition{
		{State: []float64{1, 0, 0, 0}, Action: env.ActionStraight, Reward: 0.1, NextState: []float64{0, 1, 0, 0}},
		{State: []float64{0, 1, 0, 0}, Action: env.ActionLeft, Reward: 10, NextState: []float64{0, 0, 1, 0}},
		{State: []float64{0, 0, 1, 0}, Action: env.ActionRight, Reward: -10, NextState: []float64{0, 0, 0, 1}, Done: true},
	}
	loss, err := trainer.Step(batch)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if loss <= 0 || math.IsNaN(loss) {
		t.Fatalf("loss = %v", loss)
	}
	if trainer.Updates() != 1 {
		t.Fatalf("Updates() = %d, expected 1", trainer.Updates())
	}

	if loss, err := trainer.Step(nil); err != nil || loss != 0 {
		t.Fatalf("Step(nil) = %v, %v", loss, err)
	}
	if trainer.Updates() != 1 {
		t.Fatalf("empty batch took an optimizer step")
	}
}

// expectedTarget is the Q-learning target of tr under net, computed one
// state at a time.
func expectedTarget(t *testing.T, net *nn.QNet, gamma float64, tr Transition) float64 {
	t.Helper()
	if tr.Done {
		return tr.Reward
	}
	next, err := net.Predict(tr.NextState)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	best := next[0]
	for _, v := range next[1:] {
		best = math.Max(best, v)
	}
	return tr.Reward + gamma*best
}

func TestTrainerTargets(t *testing.T) {
	const tol = 1e-9
	tests := []struct {
		name  string
		gamma float64
		batch []Transition
	}{
		{
			name:  "mixed",
			gamma: 0.9,
			batch: []Transition{
				{State: []float64{1, 0, 0, 1}, Action: env.ActionLeft, Reward: 0, NextState: []float64{0, 1, 1, 0}},
				{State: []float64{0, 1, 0, 0}, Action: env.ActionRight, Reward: 10, NextState: []float64{1, 1, 0, 0}},
				{State: []float64{0, 0, 1, 1}, Action: env.ActionStraight, Reward: -10, NextState: []float64{0, 0, 0, 1}, Done: true},
			},
		},
		{
			name:  "all terminal",
			gamma: 0.9,
			batch: []Transition{
				{State: []float64{1, 1, 0, 0}, Action: env.ActionRight, Reward: -10, NextState: []float64{0, 1, 0, 0}, Done: true},
				{State: []float64{0, 1, 1, 0}, Action: env.ActionLeft, Reward: -10, NextState: []float64{1, 0, 0, 0}, Done: true},
			},
		},
		{
			name:  "no discount",
			gamma: 0,
			batch: []Transition{
				{State: []float64{0, 0, 0, 1}, Action: env.ActionStraight, Reward: 10, NextState: []float64{1, 0, 1, 0}},
			},
		},
		{
			name:  "single step",
			gamma: 0.5,
			batch: []Transition{
				{State: []float64{1, 0, 1, 0}, Action: env.ActionLeft, Reward: 0, NextState: []float64{0, 1, 0, 1}},
			},
		},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net := nn.NewQNet(4, 8, 8, 3, rand.New(rand.NewSource(uint64(20+i))))
			trainer := NewTrainer(net, 0.01, tt.gamma)

			states := make([][]float64, len(tt.batch))
			next := make([][]float64, len(tt.batch))
			for j, tr := range tt.batch {
				states[j] = tr.State
				next[j] = tr.NextState
			}
			x, err := nn.Batch(states)
			if err != nil {
				t.Fatalf("Batch: %v", err)
			}
			nx, err := nn.Batch(next)
			if err != nil {
				t.Fatalf("Batch: %v", err)
			}
			pred, err := net.Forward(x)
			if err != nil {
				t.Fatalf("Forward: %v", err)
			}
			nextQ, err := net.Forward(nx)
			if err != nil {
				t.Fatalf("Forward: %v", err)
			}

			tgt, err := trainer.targets(tt.batch, nextQ)(pred)
			if err != nil {
				t.Fatalf("targets: %v", err)
			}
			var wantLoss float64
			for j, tr := range tt.batch {
				q, err := net.Predict(tr.State)
				if err != nil {
					t.Fatalf("Predict: %v", err)
				}
				qNew := expectedTarget(t, net, tt.gamma, tr)
				for a := 0; a < env.NumActions; a++ {
					want := q[a]
					if a == int(tr.Action) {
						want = qNew
					}
					if got := tgt.At(j, a); math.Abs(got-want) > tol {
						t.Fatalf("row %d action %d: target %v, expected %v", j, a, got, want)
					}
				}
				d := q[tr.Action] - qNew
				wantLoss += d * d
			}
			wantLoss /= float64(len(tt.batch) * env.NumActions)

			loss, err := trainer.Step(tt.batch)
			if err != nil {
				t.Fatalf("Step: %v", err)
			}
			if math.Abs(loss-wantLoss) > tol*math.Max(1, wantLoss) {
				t.Fatalf("loss = %v, expected %v", loss, wantLoss)
			}
		})
	}
}

func TestTrainerRejectsBadAction(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	trainer := NewTrainer(nn.NewQNet(4, 4, 4, 3, rng), 0.001, 0.9)
	_, err := trainer.StepOne(Transition{
		State:     []float64{0, 0, 0, 0},
		Action:    env.Action(5),
		NextState: []float64{0, 0, 0, 0},
	})
	if !errors.Is(err, nn.ErrShapeMismatch) {
		t.Fatalf("err = %v, expected ErrShapeMismatch", err)
	}
}

func TestAgentGameLifecycle(t *testing.T) {
	cfg := config.Default()
	cfg.NN.Hidden1, cfg.NN.Hidden2 = 16, 8
	cfg.Agent.MaxMemory = 50
	cfg.Agent.BatchSize = 10
	a := New(cfg, rand.New(rand.NewSource(9)))

	g := env.NewGame(cfg.Env, 11)
	for i := 0; i < 20; i++ {
		state := env.Encode(g)
		action, err := a.Act(state)
		if err != nil {
			t.Fatalf("Act: %v", err)
		}
		res := g.PlayStep(action)
		if _, err := a.Observe(Transition{
			State:     state,
			Action:    action,
			Reward:    res.Reward,
			NextState: env.Encode(g),
			Done:      res.Done,
		}); err != nil {
			t.Fatalf("Observe: %v", err)
		}
		if res.Done {
			g.Reset()
		}
	}
	if a.Memory.Len() != 20 {
		t.Fatalf("memory holds %d, expected 20", a.Memory.Len())
	}
	if _, err := a.EndGame(); err != nil {
		t.Fatalf("EndGame: %v", err)
	}
	// one update per observed step plus the batch at game end
	if a.Trainer.Updates() != 21 {
		t.Fatalf("trainer took %d updates, expected 21", a.Trainer.Updates())
	}
	if a.Games != 1 || a.Epsilon() != 79 {
		t.Fatalf("after one game: games=%d epsilon=%d", a.Games, a.Epsilon())
	}
}
