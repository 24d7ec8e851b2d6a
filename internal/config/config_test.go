package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Env.Width != 640 || cfg.Env.Height != 480 || cfg.Env.BlockSize != 20 {
		t.Fatalf("unexpected grid %dx%d/%d", cfg.Env.Width, cfg.Env.Height, cfg.Env.BlockSize)
	}
	if cfg.Agent.MaxMemory != 100_000 || cfg.Agent.BatchSize != 1000 {
		t.Fatalf("unexpected memory %d batch %d", cfg.Agent.MaxMemory, cfg.Agent.BatchSize)
	}
	if cfg.Agent.Gamma != 0.9 || cfg.Agent.LearningRate != 0.001 {
		t.Fatalf("unexpected gamma %v lr %v", cfg.Agent.Gamma, cfg.Agent.LearningRate)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if got := cfg.CheckpointPath(); got != filepath.Join("best_model", "model.gob") {
		t.Fatalf("CheckpointPath() = %q", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
seed: 7
env:
  width: 200
  height: 100
agent:
  batch_size: 64
render:
  mode: term
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Seed != 7 || cfg.Env.Width != 200 || cfg.Env.Height != 100 {
		t.Fatalf("overrides not applied: %+v", cfg.Env)
	}
	if cfg.Agent.BatchSize != 64 || cfg.Agent.MaxMemory != 100_000 {
		t.Fatalf("agent = %+v", cfg.Agent)
	}
	if cfg.Render.Mode != "term" {
		t.Fatalf("render mode = %q", cfg.Render.Mode)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unaligned grid", body: "env:\n  width: 630\n"},
		{name: "grid too small", body: "env:\n  width: 60\n  height: 60\n"},
		{name: "wrong input size", body: "nn:\n  input: 8\n"},
		{name: "unknown render", body: "render:\n  mode: opengl\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Load() error = %v, expected ErrInvalid", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
