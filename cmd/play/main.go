package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"

	"snakedqn/internal/config"
	"snakedqn/internal/env"
	"snakedqn/internal/eval"
	"snakedqn/internal/logging"
	"snakedqn/internal/nn"
	"snakedqn/internal/render"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	configPath string
	checkpoint string
	seed       uint64
	replayPath string
	renderMode string
	fps        int
	replayOut  string
)

var rootCmd = &cobra.Command{
	Use:   "play",
	Short: "Watch a trained network play, or play back a recorded game",
	Long: `Watch a trained network play one greedy game, or play back a recorded game.

With --replay the recorded actions are re-applied to a game with the same
seed, reproducing the recorded episode exactly.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Render.Mode = renderMode
		cfg.Render.FPS = fps

		renderer, err := render.New(cfg.Render, cfg.Env)
		if err != nil {
			return fmt.Errorf("failed to create renderer: %w", err)
		}
		defer renderer.Close()

		var game *env.Game
		if replayPath != "" {
			game, err = playReplay(replayPath, renderer)
		} else {
			game, err = playGreedy(cfg, renderer)
		}
		if err != nil {
			return err
		}

		stats := game.Stats()
		out := cmd.OutOrStdout()
		fmt.Fprintln(out)
		fmt.Fprintln(out, "═══════════════════════════════════")
		fmt.Fprintf(out, "  Game Over! Death: %s\n", stats.Death)
		fmt.Fprintf(out, "  Score: %d, Frames: %d, Length: %d\n", stats.Score, stats.Frames, stats.Length)
		fmt.Fprintf(out, "  Reward: %.2f, Cycles: %d\n", stats.Reward, stats.Cycles)
		fmt.Fprintln(out, "═══════════════════════════════════")
		return nil
	},
}

func playReplay(path string, renderer render.Renderer) (*env.Game, error) {
	replay, err := env.LoadReplay(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load replay: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Replay of seed %d (%d actions, recorded score %d)\n",
		replay.Seed, len(replay.Actions), replay.FinalStats.Score)

	game := replay.Playback()
	game.Presenter = renderer
	for i := range replay.Actions {
		if renderer.ShouldQuit() {
			break
		}
		if res := game.PlayStep(replay.Actions[i]); res.Done {
			break
		}
	}
	return game, nil
}

func playGreedy(cfg *config.Config, renderer render.Renderer) (*env.Game, error) {
	net, err := loadNet(cfg)
	if err != nil {
		return nil, err
	}

	game := env.NewGame(cfg.Env, seed)
	game.Presenter = renderer
	for !renderer.ShouldQuit() {
		best, err := net.Act(env.Encode(game))
		if err != nil {
			return nil, err
		}
		if res := game.PlayStep(env.Action(best)); res.Done {
			break
		}
	}
	return game, nil
}

func loadNet(cfg *config.Config) (*nn.QNet, error) {
	path := checkpoint
	if path == "" {
		path = cfg.CheckpointPath()
	}
	net := nn.NewQNet(cfg.NN.Input, cfg.NN.Hidden1, cfg.NN.Hidden2, cfg.NN.Output, rand.New(rand.NewSource(1)))
	meta, err := net.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Loaded %s (games=%d, record=%d, saved %s)\n",
		path, meta.Games, meta.Record, meta.SavedAt.Format("2006-01-02 15:04:05"))
	return net, nil
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Play the checkpoint greedily over the configured seed suite",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		net, err := loadNet(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		evaluator := eval.NewEvaluator(cfg, net)
		agg, episodes, err := evaluator.RunBenchmark(ctx, cfg.Eval.Seeds)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if replayOut != "" && len(cfg.Eval.Seeds) > 0 {
			replay, stats, err := evaluator.EvaluateWithReplay(uint64(cfg.Eval.Seeds[0]))
			if err != nil {
				return err
			}
			if err := replay.Save(replayOut); err != nil {
				return fmt.Errorf("failed to save replay: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Replay of seed %d (score %d) written to %s\n", replay.Seed, stats.Score, replayOut)
		}
		for _, ep := range episodes {
			fmt.Fprintf(out, "  seed %6d | score %3d | frames %5d | death %s\n", ep.Seed, ep.Score, ep.Frames, ep.Death)
		}
		logging.PrintAggregate(out, "Eval", agg)
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/dqn.yaml", "path to config file (empty for defaults)")
	rootCmd.PersistentFlags().StringVar(&checkpoint, "checkpoint", "", "checkpoint path (default: from config)")
	rootCmd.Flags().Uint64Var(&seed, "seed", 12345, "random seed for the game")
	rootCmd.Flags().StringVar(&replayPath, "replay", "", "play back a recorded game instead of the network")
	rootCmd.Flags().StringVar(&renderMode, "render", "term", "presentation: none, term or window")
	rootCmd.Flags().IntVar(&fps, "fps", 10, "frames per second")

	evalCmd.Flags().StringVar(&replayOut, "replay-out", "", "write the replay of the first seed to this path")
	rootCmd.AddCommand(evalCmd)
}
