//go:build raylib

package render

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"snakedqn/internal/config"
	"snakedqn/internal/env"
)

var (
	snakeHead = rl.Color{R: 0, G: 100, B: 255, A: 255}
	snakeBody = rl.Color{R: 0, G: 0, B: 255, A: 255}
)

// Window draws the game in a raylib window paced by SetTargetFPS
type Window struct {
	block int32
	quit  bool
}

func newWindow(cfg config.RenderConfig, ec config.EnvConfig) (Renderer, error) {
	rl.InitWindow(int32(ec.Width), int32(ec.Height), "Snake DQN")
	if !rl.IsWindowReady() {
		return nil, ErrWindowUnavailable
	}
	rl.SetTargetFPS(int32(cfg.FPS))
	return &Window{block: int32(ec.BlockSize)}, nil
}

// Present draws one frame. Closing the window or pressing Q requests a quit.
func (w *Window) Present(g *env.Game) {
	if rl.WindowShouldClose() || rl.IsKeyPressed(rl.KeyQ) {
		w.quit = true
		return
	}

	rl.BeginDrawing()
	rl.ClearBackground(rl.Black)

	for i, p := range g.Snake {
		color := snakeBody
		if i == 0 {
			color = snakeHead
		}
		rl.DrawRectangle(int32(p.X), int32(p.Y), w.block, w.block, color)
		rl.DrawRectangleLines(int32(p.X), int32(p.Y), w.block, w.block, rl.DarkGray)
	}
	rl.DrawRectangle(int32(g.Food.X), int32(g.Food.Y), w.block, w.block, rl.Red)
	rl.DrawText(fmt.Sprintf("Score: %d", g.Score), 4, 4, 20, rl.White)

	rl.EndDrawing()
}

func (w *Window) ShouldQuit() bool { return w.quit }

func (w *Window) Close() error {
	rl.CloseWindow()
	return nil
}
