package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate for configurations the trainer cannot run.
var ErrInvalid = errors.New("invalid config")

// Config is the root configuration structure
type Config struct {
	Seed       int64            `yaml:"seed"`
	Env        EnvConfig        `yaml:"env"`
	Agent      AgentConfig      `yaml:"agent"`
	NN         NNConfig         `yaml:"nn"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Logging    LogConfig        `yaml:"logging"`
	Render     RenderConfig     `yaml:"render"`
	Eval       EvalConfig       `yaml:"eval"`
	Status     StatusConfig     `yaml:"status"`
}

// EnvConfig defines the grid and the reward shaping knobs
type EnvConfig struct {
	Width        int `yaml:"width"`  // pixels
	Height       int `yaml:"height"` // pixels
	BlockSize    int `yaml:"block_size"`
	CycleWindow  int `yaml:"cycle_window"`
	CycleRepeats int `yaml:"cycle_repeats"`
	StallFactor  int `yaml:"stall_factor"`
	FoodRetries  int `yaml:"food_retries"` // 0 means unbounded rejection sampling
}

// AgentConfig defines replay memory, optimizer and exploration parameters
type AgentConfig struct {
	MaxMemory    int     `yaml:"max_memory"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	Gamma        float64 `yaml:"gamma"`
	ExploreGames int     `yaml:"explore_games"`
	ExploreRange int     `yaml:"explore_range"`
}

// NNConfig defines the value network architecture
type NNConfig struct {
	Input   int `yaml:"input"`
	Hidden1 int `yaml:"hidden1"`
	Hidden2 int `yaml:"hidden2"`
	Output  int `yaml:"output"`
}

// CheckpointConfig defines where the best parameters are written
type CheckpointConfig struct {
	Dir  string `yaml:"dir"`
	File string `yaml:"file"`
}

// LogConfig defines logging parameters
type LogConfig struct {
	CSVPath    string `yaml:"csv_path"`
	JSONPath   string `yaml:"json_path"`
	DBPath     string `yaml:"db_path"`
	ReportPath string `yaml:"report_path"`
	ReplayPath string `yaml:"replay_path"`
}

// RenderConfig selects the presentation collaborator
type RenderConfig struct {
	Mode string `yaml:"mode"` // none|term|window
	FPS  int    `yaml:"fps"`
}

// EvalConfig defines greedy evaluation parameters
type EvalConfig struct {
	Workers   int     `yaml:"workers"`
	Seeds     []int64 `yaml:"seeds"`
	MaxFrames int     `yaml:"max_frames"`
}

// StatusConfig configures the optional health endpoint
type StatusConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a config with every field set to its default
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a YAML config file and returns a Config
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Seed == 0 {
		cfg.Seed = 1337
	}
	if cfg.Env.Width == 0 {
		cfg.Env.Width = 640
	}
	if cfg.Env.Height == 0 {
		cfg.Env.Height = 480
	}
	if cfg.Env.BlockSize == 0 {
		cfg.Env.BlockSize = 20
	}
	if cfg.Env.CycleWindow == 0 {
		cfg.Env.CycleWindow = 20
	}
	if cfg.Env.CycleRepeats == 0 {
		cfg.Env.CycleRepeats = 5
	}
	if cfg.Env.StallFactor == 0 {
		cfg.Env.StallFactor = 100
	}
	if cfg.Agent.MaxMemory == 0 {
		cfg.Agent.MaxMemory = 100_000
	}
	if cfg.Agent.BatchSize == 0 {
		cfg.Agent.BatchSize = 1000
	}
	if cfg.Agent.LearningRate == 0 {
		cfg.Agent.LearningRate = 0.001
	}
	if cfg.Agent.Gamma == 0 {
		cfg.Agent.Gamma = 0.9
	}
	if cfg.Agent.ExploreGames == 0 {
		cfg.Agent.ExploreGames = 80
	}
	if cfg.Agent.ExploreRange == 0 {
		cfg.Agent.ExploreRange = 200
	}
	if cfg.NN.Input == 0 {
		cfg.NN.Input = 11
	}
	if cfg.NN.Hidden1 == 0 {
		cfg.NN.Hidden1 = 256
	}
	if cfg.NN.Hidden2 == 0 {
		cfg.NN.Hidden2 = 128
	}
	if cfg.NN.Output == 0 {
		cfg.NN.Output = 3
	}
	if cfg.Checkpoint.Dir == "" {
		cfg.Checkpoint.Dir = "best_model"
	}
	if cfg.Checkpoint.File == "" {
		cfg.Checkpoint.File = "model.gob"
	}
	if cfg.Logging.CSVPath == "" {
		cfg.Logging.CSVPath = "runs/episodes.csv"
	}
	if cfg.Logging.JSONPath == "" {
		cfg.Logging.JSONPath = "runs/episodes.jsonl"
	}
	if cfg.Logging.DBPath == "" {
		cfg.Logging.DBPath = "runs/history.db"
	}
	if cfg.Logging.ReportPath == "" {
		cfg.Logging.ReportPath = "runs/report.xlsx"
	}
	if cfg.Logging.ReplayPath == "" {
		cfg.Logging.ReplayPath = "best_model/replay.json"
	}
	if cfg.Render.Mode == "" {
		cfg.Render.Mode = "none"
	}
	if cfg.Render.FPS == 0 {
		cfg.Render.FPS = 60
	}
	if cfg.Eval.MaxFrames == 0 {
		cfg.Eval.MaxFrames = 100_000
	}
	if len(cfg.Eval.Seeds) == 0 {
		cfg.Eval.Seeds = []int64{2000, 2001, 2002, 2003, 2004, 2005, 2006, 2007, 2008, 2009}
	}
}

// Validate checks the sizes the environment and network depend on
func (c *Config) Validate() error {
	e := c.Env
	if e.BlockSize <= 0 || e.Width%e.BlockSize != 0 || e.Height%e.BlockSize != 0 {
		return fmt.Errorf("%w: grid %dx%d is not aligned to block %d", ErrInvalid, e.Width, e.Height, e.BlockSize)
	}
	// 3-segment start snake extends two blocks left of center
	if e.Width/e.BlockSize < 4 || e.Height/e.BlockSize < 1 {
		return fmt.Errorf("%w: grid %dx%d too small", ErrInvalid, e.Width, e.Height)
	}
	if e.CycleWindow < 1 || e.CycleRepeats < 1 {
		return fmt.Errorf("%w: cycle window %d, repeats %d", ErrInvalid, e.CycleWindow, e.CycleRepeats)
	}
	if c.NN.Input != 11 || c.NN.Output != 3 {
		return fmt.Errorf("%w: network must map 11 features to 3 actions, got %d -> %d", ErrInvalid, c.NN.Input, c.NN.Output)
	}
	if c.NN.Hidden1 <= 0 || c.NN.Hidden2 <= 0 {
		return fmt.Errorf("%w: hidden sizes must be positive", ErrInvalid)
	}
	if c.Agent.MaxMemory <= 0 || c.Agent.BatchSize <= 0 {
		return fmt.Errorf("%w: memory %d, batch %d", ErrInvalid, c.Agent.MaxMemory, c.Agent.BatchSize)
	}
	if c.Agent.ExploreRange <= 0 || c.Agent.ExploreGames < 0 {
		return fmt.Errorf("%w: explore games %d, range %d", ErrInvalid, c.Agent.ExploreGames, c.Agent.ExploreRange)
	}
	switch c.Render.Mode {
	case "none", "term", "window":
	default:
		return fmt.Errorf("%w: unknown render mode %q", ErrInvalid, c.Render.Mode)
	}
	return nil
}

// CheckpointPath returns the full path of the parameter blob
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.Checkpoint.Dir, c.Checkpoint.File)
}
