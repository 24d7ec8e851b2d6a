package agent

import (
	"golang.org/x/exp/rand"

	"snakedqn/internal/config"
	"snakedqn/internal/env"
	"snakedqn/internal/nn"
)

// Agent ties the network, replay memory, trainer and policy together and
// tracks training progress.
type Agent struct {
	Net     *nn.QNet
	Memory  *Memory
	Trainer *Trainer
	Policy  *Policy

	Games     int
	Record    int
	BatchSize int

	// Explored counts random actions taken in the current game
	Explored int
}

// New creates an agent with a freshly initialized network
func New(cfg *config.Config, rng *rand.Rand) *Agent {
	net := nn.NewQNet(cfg.NN.Input, cfg.NN.Hidden1, cfg.NN.Hidden2, cfg.NN.Output, rng)
	return &Agent{
		Net:       net,
		Memory:    NewMemory(cfg.Agent.MaxMemory, rng),
		Trainer:   NewTrainer(net, cfg.Agent.LearningRate, cfg.Agent.Gamma),
		Policy:    NewPolicy(cfg.Agent.ExploreGames, cfg.Agent.ExploreRange, rng),
		BatchSize: cfg.Agent.BatchSize,
	}
}

// Restore loads network weights and progress from a checkpoint
func (a *Agent) Restore(path string) error {
	meta, err := a.Net.Load(path)
	if err != nil {
		return err
	}
	a.Games = meta.Games
	a.Record = meta.Record
	return nil
}

// Epsilon returns the current exploration threshold
func (a *Agent) Epsilon() int {
	return a.Policy.Epsilon(a.Games)
}

// Act selects an action for the encoded state
func (a *Agent) Act(state []float64) (env.Action, error) {
	action, explored, err := a.Policy.Select(a.Net, state, a.Games)
	if explored {
		a.Explored++
	}
	return action, err
}

// Observe trains on t immediately and stores it in replay memory
func (a *Agent) Observe(t Transition) (float64, error) {
	loss, err := a.Trainer.StepOne(t)
	a.Memory.Remember(t)
	return loss, err
}

// EndGame counts the finished game and trains on a batch from memory
func (a *Agent) EndGame() (float64, error) {
	a.Games++
	a.Explored = 0
	return a.Trainer.Step(a.Memory.Sample(a.BatchSize))
}
