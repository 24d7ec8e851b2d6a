package env

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"snakedqn/internal/config"
)

// Replay stores a deterministic action trace for playback
type Replay struct {
	Seed       uint64           `json:"seed"`
	Actions    []Action         `json:"actions"`
	FinalStats EpisodeStats     `json:"final_stats"`
	Config     config.EnvConfig `json:"config"`
}

// NewReplay creates a new replay recorder
func NewReplay(seed uint64, cfg config.EnvConfig) *Replay {
	return &Replay{
		Seed:    seed,
		Actions: make([]Action, 0, 256),
		Config:  cfg,
	}
}

// Record adds an action to the replay
func (r *Replay) Record(action Action) {
	r.Actions = append(r.Actions, action)
}

// SetFinalStats sets the final episode statistics
func (r *Replay) SetFinalStats(stats EpisodeStats) {
	r.FinalStats = stats
}

// Save writes the replay to a file, creating its directory
func (r *Replay) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create replay dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadReplay loads a replay from a file
func LoadReplay(path string) (*Replay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Replay
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode replay %s: %w", path, err)
	}
	return &r, nil
}

// Playback recreates the game at the start of the recorded episode
func (r *Replay) Playback() *Game {
	return NewGame(r.Config, r.Seed)
}

// PlaybackStep runs the replay up to step n and reports whether the
// episode ended within those steps
func (r *Replay) PlaybackStep(g *Game, step int) bool {
	if step > len(r.Actions) {
		step = len(r.Actions)
	}
	for i := 0; i < step; i++ {
		if res := g.PlayStep(r.Actions[i]); res.Done {
			return true
		}
	}
	return false
}
