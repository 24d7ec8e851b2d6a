//go:build !raylib

package render

import (
	"fmt"

	"snakedqn/internal/config"
)

func newWindow(config.RenderConfig, config.EnvConfig) (Renderer, error) {
	return nil, fmt.Errorf("%w: rebuild with -tags raylib", ErrWindowUnavailable)
}
