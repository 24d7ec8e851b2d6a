package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"snakedqn/internal/config"
	"snakedqn/internal/logging"
	"snakedqn/internal/render"
	"snakedqn/internal/status"
	"snakedqn/internal/store"
	"snakedqn/internal/train"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	configPath string
	resume     bool
	games      int
	renderMode string
	statusAddr string
)

var rootCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a snake agent with deep Q-learning",
	Long: `Train a snake agent with deep Q-learning.

Every finished game prints one line:

  Game: <n> - Score: <score> - Record: <record>

The network is saved whenever a game sets a new record. Training runs until
interrupted unless --games is given.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("render") {
			cfg.Render.Mode = renderMode
		}
		if cmd.Flags().Changed("status-addr") {
			cfg.Status.Addr = statusAddr
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		renderer, err := render.New(cfg.Render, cfg.Env)
		if err != nil {
			return fmt.Errorf("failed to create renderer: %w", err)
		}
		defer renderer.Close()

		logger, err := logging.NewLogger(cfg.Logging.CSVPath, cfg.Logging.JSONPath)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		if err := logger.Init(resume); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer logger.Close()

		history, err := store.Open(cfg.Logging.DBPath)
		if err != nil {
			return err
		}
		defer history.Close()

		opts := train.Options{
			MaxGames: games,
			Resume:   resume,
			Out:      cmd.OutOrStdout(),
			Renderer: renderer,
			Logger:   logger,
			Store:    history,
		}
		if cfg.Status.Addr != "" {
			srv, err := status.Start(cfg.Status.Addr)
			if err != nil {
				return err
			}
			defer srv.Stop()
			opts.Status = srv
			fmt.Fprintf(os.Stderr, "Health status on %s (service %s)\n", srv.Addr(), status.Service)
		}

		session, err := train.NewSession(cfg, opts)
		if err != nil {
			return err
		}
		a := session.Agent()
		fmt.Fprintf(os.Stderr, "Run %s | seed %d | grid %dx%d | memory %d | batch %d\n",
			session.RunID, cfg.Seed, cfg.Env.Width, cfg.Env.Height, a.Memory.Cap(), a.BatchSize)

		sum, err := session.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Stopped after %d games (%d updates) in %v | record %d | mean score %.2f\n",
			sum.Games, sum.Updates, sum.Elapsed.Round(time.Millisecond), sum.Record, sum.MeanScore)
		return nil
	},
}

var (
	reportRun   string
	reportOut   string
	reportJSONL bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export the episodes of a training run to an xlsx workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		out := reportOut
		if out == "" {
			out = cfg.Logging.ReportPath
		}

		if reportJSONL {
			episodes, err := logging.ReadJSONL(cfg.Logging.JSONPath)
			if err != nil {
				return err
			}
			if err := logging.ExportXLSX(out, cfg.Logging.JSONPath, episodes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d episodes of %s to %s\n", len(episodes), cfg.Logging.JSONPath, out)
			return nil
		}

		history, err := store.Open(cfg.Logging.DBPath)
		if err != nil {
			return err
		}
		defer history.Close()

		ctx := cmd.Context()
		var run store.Run
		if reportRun == "" {
			run, err = history.LatestRun(ctx)
		} else {
			run, err = history.Run(ctx, reportRun)
		}
		if errors.Is(err, store.ErrRunNotFound) {
			return fmt.Errorf("no training run found in %s", cfg.Logging.DBPath)
		}
		if err != nil {
			return err
		}

		episodes, err := history.Episodes(ctx, run.ID)
		if err != nil {
			return err
		}
		if err := logging.ExportXLSX(out, run.ID, episodes); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d episodes of run %s to %s\n", len(episodes), run.ID, out)
		return nil
	},
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/dqn.yaml", "path to config file (empty for defaults)")
	rootCmd.Flags().BoolVar(&resume, "resume", false, "continue from the saved checkpoint")
	rootCmd.Flags().IntVarP(&games, "games", "n", 0, "stop after this many games (0 = until interrupted)")
	rootCmd.Flags().StringVar(&renderMode, "render", "none", "presentation: none, term or window")
	rootCmd.Flags().StringVar(&statusAddr, "status-addr", "", "serve gRPC health checks on this address")

	reportCmd.Flags().StringVar(&reportRun, "run", "", "run id (default: latest run)")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "output path (default: logging.report_path)")
	reportCmd.Flags().BoolVar(&reportJSONL, "jsonl", false, "export the JSONL episode log instead of the run history")
	rootCmd.AddCommand(reportCmd)
}
