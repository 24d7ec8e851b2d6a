// Package train runs the online DQN training loop.
package train

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"

	"snakedqn/internal/agent"
	"snakedqn/internal/config"
	"snakedqn/internal/env"
	"snakedqn/internal/logging"
	"snakedqn/internal/nn"
	"snakedqn/internal/render"
	"snakedqn/internal/status"
	"snakedqn/internal/store"
)

// Options are the optional collaborators of a session. Nil fields are skipped.
type Options struct {
	// MaxGames stops the session after this many games; 0 runs until the
	// context is canceled or the renderer asks to quit.
	MaxGames int
	Resume   bool

	Out      io.Writer
	Renderer render.Renderer
	Logger   *logging.Logger
	Store    *store.Store
	Status   *status.Server
}

// Summary describes a finished session
type Summary struct {
	RunID      string
	Games      int
	TotalGames int
	Record     int
	MeanScore  float64
	Updates    int
	Elapsed    time.Duration
}

// Session owns the game, the agent and the artifacts of one training run
type Session struct {
	RunID string

	cfg   *config.Config
	opts  Options
	agent *agent.Agent
	game  *env.Game

	games      int
	totalScore int
	resumed    bool
}

// NewSession creates a session. With Resume set, the checkpoint is restored
// when present and a missing one starts a fresh run.
func NewSession(cfg *config.Config, opts Options) (*Session, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Renderer == nil {
		opts.Renderer = render.None{}
	}

	rng := rand.New(rand.NewSource(uint64(cfg.Seed)))
	a := agent.New(cfg, rng)

	s := &Session{
		RunID: uuid.NewString(),
		cfg:   cfg,
		opts:  opts,
		agent: a,
	}

	if opts.Resume {
		err := a.Restore(cfg.CheckpointPath())
		switch {
		case err == nil:
			s.resumed = true
			fmt.Fprintf(opts.Out, "Resumed from %s (games=%d, record=%d)\n", cfg.CheckpointPath(), a.Games, a.Record)
		case errors.Is(err, os.ErrNotExist):
			fmt.Fprintf(os.Stderr, "Warning: no checkpoint at %s, starting fresh\n", cfg.CheckpointPath())
		default:
			return nil, fmt.Errorf("failed to resume: %w", err)
		}
	}

	s.game = env.NewGame(cfg.Env, s.episodeSeed())
	s.game.Presenter = opts.Renderer
	return s, nil
}

// Agent returns the trained agent
func (s *Session) Agent() *agent.Agent {
	return s.agent
}

func (s *Session) episodeSeed() uint64 {
	return uint64(s.cfg.Seed + int64(s.agent.Games))
}

// Run plays and trains until MaxGames is reached, ctx is canceled or the
// renderer asks to quit. Stopping early is not an error.
func (s *Session) Run(ctx context.Context) (Summary, error) {
	start := time.Now()

	if s.opts.Store != nil {
		err := s.opts.Store.StartRun(ctx, store.Run{
			ID:        s.RunID,
			StartedAt: start,
			Seed:      s.cfg.Seed,
			Resumed:   s.resumed,
			Games:     s.agent.Games,
			Record:    s.agent.Record,
		})
		if err != nil {
			return Summary{}, err
		}
	}
	if s.opts.Status != nil {
		s.opts.Status.SetServing(true)
		defer s.opts.Status.SetServing(false)
	}

	err := s.loop(ctx)

	if s.opts.Store != nil {
		if ferr := s.opts.Store.FinishRun(context.Background(), s.RunID, s.agent.Games, s.agent.Record); ferr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to finish run: %v\n", ferr)
		}
	}

	sum := Summary{
		RunID:      s.RunID,
		Games:      s.games,
		TotalGames: s.agent.Games,
		Record:     s.agent.Record,
		Updates:    s.agent.Trainer.Updates(),
		Elapsed:    time.Since(start),
	}
	if s.games > 0 {
		sum.MeanScore = float64(s.totalScore) / float64(s.games)
	}
	return sum, err
}

func (s *Session) loop(ctx context.Context) error {
	replay := env.NewReplay(s.game.Seed, s.cfg.Env)

	for {
		if ctx.Err() != nil || s.opts.Renderer.ShouldQuit() {
			return nil
		}

		state := env.Encode(s.game)
		action, err := s.agent.Act(state)
		if err != nil {
			return fmt.Errorf("failed to select action: %w", err)
		}
		replay.Record(action)

		res := s.game.PlayStep(action)
		if _, err := s.agent.Observe(agent.Transition{
			State:     state,
			Action:    action,
			Reward:    res.Reward,
			NextState: env.Encode(s.game),
			Done:      res.Done,
		}); err != nil {
			return fmt.Errorf("failed to train on step: %w", err)
		}

		if !res.Done {
			continue
		}

		if err := s.finishGame(ctx, replay); err != nil {
			return err
		}
		if s.opts.MaxGames > 0 && s.games >= s.opts.MaxGames {
			return nil
		}

		s.game.Reseed(s.episodeSeed())
		s.game.Reset()
		replay = env.NewReplay(s.game.Seed, s.cfg.Env)
	}
}

// finishGame runs the batch update and writes the per-game artifacts
func (s *Session) finishGame(ctx context.Context, replay *env.Replay) error {
	stats := s.game.Stats()
	replay.SetFinalStats(stats)
	epsilon := s.agent.Epsilon()
	explored := s.agent.Explored

	loss, err := s.agent.EndGame()
	if err != nil {
		return fmt.Errorf("failed to train on memory: %w", err)
	}
	s.games++
	s.totalScore += stats.Score

	if stats.Score > s.agent.Record {
		s.agent.Record = stats.Score
		s.saveRecord(replay)
	}

	logging.PrintEpisode(s.opts.Out, s.agent.Games, stats.Score, s.agent.Record)

	rec := logging.NewEpisodeRecord(s.agent.Games, s.agent.Record, stats)
	rec.Epsilon = epsilon
	rec.Explored = explored
	rec.Loss = loss
	rec.MeanScore = float64(s.totalScore) / float64(s.games)

	if s.opts.Logger != nil {
		if err := s.opts.Logger.LogEpisode(rec); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to log episode: %v\n", err)
		}
	}
	if s.opts.Store != nil {
		if err := s.opts.Store.AddEpisode(ctx, s.RunID, rec); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to store episode: %v\n", err)
		}
	}
	return nil
}

func (s *Session) saveRecord(replay *env.Replay) {
	meta := nn.Meta{
		Games:   s.agent.Games,
		Record:  s.agent.Record,
		SavedAt: time.Now(),
	}
	if err := s.agent.Net.Save(s.cfg.CheckpointPath(), meta); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save checkpoint: %v\n", err)
	}
	if s.cfg.Logging.ReplayPath == "" {
		return
	}
	if err := replay.Save(s.cfg.Logging.ReplayPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save replay: %v\n", err)
	}
}
