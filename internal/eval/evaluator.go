package eval

import (
	"context"
	"runtime"
	"sync"

	"snakedqn/internal/config"
	"snakedqn/internal/env"
	"snakedqn/internal/nn"
)

// Evaluator plays greedy episodes with a trained network
type Evaluator struct {
	cfg     *config.Config
	net     *nn.QNet
	workers int
}

// NewEvaluator creates a new evaluator
func NewEvaluator(cfg *config.Config, net *nn.QNet) *Evaluator {
	workers := cfg.Eval.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Evaluator{
		cfg:     cfg,
		net:     net,
		workers: workers,
	}
}

// Play runs a single greedy episode on seed. When replay is non-nil every
// action is recorded into it. Episodes stop after Eval.MaxFrames ticks.
func (e *Evaluator) Play(net *nn.QNet, seed uint64, replay *env.Replay) (env.EpisodeStats, error) {
	game := env.NewGame(e.cfg.Env, seed)

	for frames := 0; e.cfg.Eval.MaxFrames <= 0 || frames < e.cfg.Eval.MaxFrames; frames++ {
		best, err := net.Act(env.Encode(game))
		if err != nil {
			return env.EpisodeStats{}, err
		}
		action := env.Action(best)
		if replay != nil {
			replay.Record(action)
		}
		if res := game.PlayStep(action); res.Done {
			break
		}
	}

	stats := game.Stats()
	if replay != nil {
		replay.SetFinalStats(stats)
	}
	return stats, nil
}

// EvaluateWithReplay plays one greedy episode and returns its action trace
func (e *Evaluator) EvaluateWithReplay(seed uint64) (*env.Replay, env.EpisodeStats, error) {
	replay := env.NewReplay(seed, e.cfg.Env)
	stats, err := e.Play(e.net, seed, replay)
	return replay, stats, err
}

// RunBenchmark plays one episode per seed on a pool of workers, each with
// its own copy of the network. Results are returned in seed order.
func (e *Evaluator) RunBenchmark(ctx context.Context, seeds []int64) (env.AggregatedStats, []env.EpisodeStats, error) {
	episodes := make([]env.EpisodeStats, len(seeds))
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			net := e.net.Clone()
			for i := range jobs {
				stats, err := e.Play(net, uint64(seeds[i]), nil)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				episodes[i] = stats
			}
		}()
	}

feed:
	for i := range seeds {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return env.AggregatedStats{}, nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return env.AggregatedStats{}, nil, err
	}
	return env.Aggregate(episodes), episodes, nil
}
