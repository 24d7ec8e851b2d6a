// Package render draws the game for a human watching training or playback.
// Rendering never affects game logic; a headless renderer skips pacing.
package render

import (
	"errors"
	"fmt"
	"os"

	"snakedqn/internal/config"
	"snakedqn/internal/env"
)

// ErrWindowUnavailable is returned when a window cannot be opened, for
// example in a binary built without the raylib tag.
var ErrWindowUnavailable = errors.New("window renderer unavailable")

// Renderer is refreshed once per live tick and can ask the caller to stop
type Renderer interface {
	env.Presenter
	// ShouldQuit reports whether the viewer asked to stop
	ShouldQuit() bool
	Close() error
}

// New creates the renderer selected by cfg.Mode
func New(cfg config.RenderConfig, ec config.EnvConfig) (Renderer, error) {
	switch cfg.Mode {
	case "", "none":
		return None{}, nil
	case "term":
		return NewTerminal(os.Stdout, ec.Width, ec.Height, ec.BlockSize, cfg.FPS), nil
	case "window":
		return newWindow(cfg, ec)
	default:
		return nil, fmt.Errorf("unknown render mode %q", cfg.Mode)
	}
}

// None is the headless renderer
type None struct{}

func (None) Present(*env.Game) {}

func (None) ShouldQuit() bool { return false }

func (None) Close() error { return nil }
