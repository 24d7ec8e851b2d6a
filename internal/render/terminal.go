package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"snakedqn/internal/env"
)

const clearScreen = "\033[H\033[2J"

// Terminal draws the board as text, one character cell per block
type Terminal struct {
	out    io.Writer
	cols   int
	rows   int
	block  int
	delay  time.Duration
	frames int
}

// NewTerminal creates a terminal renderer paced at fps frames per second.
// fps <= 0 disables pacing.
func NewTerminal(out io.Writer, width, height, block, fps int) *Terminal {
	t := &Terminal{
		out:   out,
		cols:  width / block,
		rows:  height / block,
		block: block,
	}
	if fps > 0 {
		t.delay = time.Second / time.Duration(fps)
	}
	return t
}

// Present draws the current game state
func (t *Terminal) Present(g *env.Game) {
	fmt.Fprint(t.out, clearScreen+t.Frame(g))
	t.frames++
	if t.delay > 0 {
		time.Sleep(t.delay)
	}
}

// Frame returns the board as text without any terminal control codes
func (t *Terminal) Frame(g *env.Game) string {
	grid := make([][]rune, t.rows)
	for y := range grid {
		grid[y] = []rune(strings.Repeat("·", t.cols))
	}

	put := func(p env.Point, r rune) {
		x, y := p.X/t.block, p.Y/t.block
		if x >= 0 && x < t.cols && y >= 0 && y < t.rows {
			grid[y][x] = r
		}
	}
	put(g.Food, '●')
	for i := len(g.Snake) - 1; i > 0; i-- {
		put(g.Snake[i], '█')
	}
	put(g.Head(), directionHead(g.Dir))

	var b strings.Builder
	b.WriteString("┌" + strings.Repeat("─", t.cols) + "┐\n")
	for _, row := range grid {
		b.WriteString("│" + string(row) + "│\n")
	}
	b.WriteString("└" + strings.Repeat("─", t.cols) + "┘\n")
	fmt.Fprintf(&b, "Score: %d | Length: %d | Frame: %d\n", g.Score, len(g.Snake), g.Frame)
	return b.String()
}

// Frames returns how many frames were drawn
func (t *Terminal) Frames() int {
	return t.frames
}

func (t *Terminal) ShouldQuit() bool { return false }

func (t *Terminal) Close() error { return nil }

func directionHead(dir env.Direction) rune {
	switch dir {
	case env.DirUp:
		return '▲'
	case env.DirRight:
		return '▶'
	case env.DirDown:
		return '▼'
	case env.DirLeft:
		return '◀'
	}
	return 'O'
}
