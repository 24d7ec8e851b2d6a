package agent

import (
	"golang.org/x/exp/rand"

	"snakedqn/internal/env"
	"snakedqn/internal/nn"
)

// Policy is the epsilon-greedy action selector. Exploration decays linearly
// with the number of finished games and stops after ExploreGames.
type Policy struct {
	ExploreGames int
	ExploreRange int
	rng          *rand.Rand
}

// NewPolicy creates a policy. A random draw in [0, exploreRange) below the
// current epsilon triggers a random action.
func NewPolicy(exploreGames, exploreRange int, rng *rand.Rand) *Policy {
	return &Policy{
		ExploreGames: exploreGames,
		ExploreRange: exploreRange,
		rng:          rng,
	}
}

// Epsilon returns the exploration threshold after nGames finished games
func (p *Policy) Epsilon(nGames int) int {
	eps := p.ExploreGames - nGames
	if eps < 0 {
		return 0
	}
	return eps
}

// Select picks an action for state. It reports whether the action was random.
func (p *Policy) Select(net *nn.QNet, state []float64, nGames int) (env.Action, bool, error) {
	if eps := p.Epsilon(nGames); eps > 0 && p.rng.Intn(p.ExploreRange) < eps {
		return env.Action(p.rng.Intn(env.NumActions)), true, nil
	}
	best, err := net.Act(state)
	if err != nil {
		return env.ActionStraight, false, err
	}
	return env.Action(best), false, nil
}
