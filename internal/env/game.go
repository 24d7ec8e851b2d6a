package env

import (
	"math"

	"golang.org/x/exp/rand"

	"snakedqn/internal/config"
)

// Direction represents the snake's heading. Values follow the clockwise
// order RIGHT -> DOWN -> LEFT -> UP so relative turns are index arithmetic.
type Direction int

const (
	DirRight Direction = iota
	DirDown
	DirLeft
	DirUp
)

func (d Direction) String() string {
	switch d {
	case DirRight:
		return "right"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirUp:
		return "up"
	default:
		return "unknown"
	}
}

// Turn returns the heading after applying a relative action
func (d Direction) Turn(a Action) Direction {
	switch a {
	case ActionRight:
		return (d + 1) % 4
	case ActionLeft:
		return (d + 3) % 4
	default:
		return d
	}
}

// Action represents a relative action. The order matches the one-hot move
// vector [straight, right, left].
type Action int

const (
	ActionStraight Action = iota
	ActionRight
	ActionLeft
)

// NumActions is the size of the one-hot move vector
const NumActions = 3

func (a Action) String() string {
	switch a {
	case ActionStraight:
		return "straight"
	case ActionRight:
		return "right"
	case ActionLeft:
		return "left"
	default:
		return "unknown"
	}
}

// OneHot returns the move vector for the action
func (a Action) OneHot() [NumActions]float64 {
	var v [NumActions]float64
	v[a] = 1
	return v
}

// ActionFromOneHot decodes a move vector. Callers are expected to pass a
// one-hot vector of length 3; anything else decodes to its argmax, with
// ties resolved to the lowest index.
func ActionFromOneHot(v []float64) Action {
	best := 0
	for i := 1; i < len(v) && i < NumActions; i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return Action(best)
}

// Point represents a pixel coordinate aligned to the block size
type Point struct {
	X, Y int
}

// StepResult is what PlayStep reports back to the agent
type StepResult struct {
	Reward float64
	Done   bool
	Score  int
}

// Presenter is refreshed once per non-terminal tick. It must not mutate the game.
type Presenter interface {
	Present(g *Game)
}

const (
	rewardDeath    = -10
	rewardFood     = 10
	rewardCloser   = 0.1
	rewardFarther  = -0.1
	penaltyCycling = 2
)

// Game represents the snake game environment
type Game struct {
	Width       int
	Height      int
	Block       int
	StallFactor int
	FoodRetries int

	// State
	Snake       []Point // head is at index 0
	Dir         Direction
	Food        Point
	Score       int
	Frame       int
	Cycle       *CycleWindow
	Death       DeathReason
	TotalReward float64
	Cycles      int
	Seed        uint64

	Presenter Presenter

	rng *rand.Rand
}

// NewGame creates a new game seeded with seed and resets it
func NewGame(cfg config.EnvConfig, seed uint64) *Game {
	g := &Game{
		Width:       cfg.Width,
		Height:      cfg.Height,
		Block:       cfg.BlockSize,
		StallFactor: cfg.StallFactor,
		FoodRetries: cfg.FoodRetries,
		Cycle:       NewCycleWindow(cfg.CycleWindow, cfg.CycleRepeats),
	}
	g.Reseed(seed)
	g.Reset()
	return g
}

// Reseed replaces the food placement RNG. Takes effect for the next Reset.
func (g *Game) Reseed(seed uint64) {
	g.Seed = seed
	g.rng = rand.New(rand.NewSource(seed))
}

// Reset initializes the game to starting state
func (g *Game) Reset() {
	g.Dir = DirRight
	head := Point{
		X: (g.Width / 2) / g.Block * g.Block,
		Y: (g.Height / 2) / g.Block * g.Block,
	}
	g.Snake = []Point{
		head,
		{X: head.X - g.Block, Y: head.Y},
		{X: head.X - 2*g.Block, Y: head.Y},
	}
	g.Score = 0
	g.Frame = 0
	g.Death = DeathNone
	g.TotalReward = 0
	g.Cycles = 0
	g.Cycle.Clear()
	g.placeFood()
}

// Head returns the snake's head position
func (g *Game) Head() Point {
	return g.Snake[0]
}

// PlayStep advances the game by one tick with the given action
func (g *Game) PlayStep(action Action) StepResult {
	g.Frame++
	before := g.distanceToFood()

	g.Dir = g.Dir.Turn(action)
	head := g.Neighbor(g.Head(), g.Dir)
	g.Snake = append(g.Snake, Point{})
	copy(g.Snake[1:], g.Snake)
	g.Snake[0] = head

	g.Cycle.Push(head)

	if death := g.checkDeath(); death != DeathNone {
		g.Death = death
		g.TotalReward += rewardDeath
		return StepResult{Reward: rewardDeath, Done: true, Score: g.Score}
	}

	var reward float64
	done := false
	if head == g.Food {
		g.Score++
		reward = rewardFood
		if !g.placeFood() {
			g.Death = DeathBoardFull
			done = true
		}
	} else {
		g.Snake = g.Snake[:len(g.Snake)-1]
		if g.distanceToFood() < before {
			reward = rewardCloser
		} else {
			reward = rewardFarther
		}
		if g.Cycle.Detect() {
			reward -= penaltyCycling
			g.Cycles++
		}
	}
	g.TotalReward += reward

	if g.Presenter != nil {
		g.Presenter.Present(g)
	}
	return StepResult{Reward: reward, Done: done, Score: g.Score}
}

// checkDeath classifies a terminal tick; the new head is already at index 0
func (g *Game) checkDeath() DeathReason {
	head := g.Head()
	if g.outOfBounds(head) {
		return DeathWall
	}
	if g.hitsBody(head) {
		return DeathSelf
	}
	if g.Frame > g.StallFactor*len(g.Snake) {
		return DeathStall
	}
	return DeathNone
}

// IsCollision reports whether p lies outside the grid or on a body segment
// other than the head. It does not mutate state, so callers can probe cells.
func (g *Game) IsCollision(p Point) bool {
	return g.outOfBounds(p) || g.hitsBody(p)
}

// HeadCollides is IsCollision applied to the current head
func (g *Game) HeadCollides() bool {
	return g.IsCollision(g.Head())
}

func (g *Game) outOfBounds(p Point) bool {
	return p.X < 0 || p.X > g.Width-g.Block || p.Y < 0 || p.Y > g.Height-g.Block
}

func (g *Game) hitsBody(p Point) bool {
	for i := 1; i < len(g.Snake); i++ {
		if g.Snake[i] == p {
			return true
		}
	}
	return false
}

// Neighbor returns the point one block away from p in direction dir
func (g *Game) Neighbor(p Point, dir Direction) Point {
	switch dir {
	case DirUp:
		return Point{X: p.X, Y: p.Y - g.Block}
	case DirRight:
		return Point{X: p.X + g.Block, Y: p.Y}
	case DirDown:
		return Point{X: p.X, Y: p.Y + g.Block}
	case DirLeft:
		return Point{X: p.X - g.Block, Y: p.Y}
	}
	return p
}

// Cells returns the number of blocks on the grid
func (g *Game) Cells() int {
	return (g.Width / g.Block) * (g.Height / g.Block)
}

// placeFood puts food on a random free cell. Rejection sampling is used
// first; FoodRetries > 0 caps it, after which free cells are scanned.
// Returns false when the snake covers the whole grid.
func (g *Game) placeFood() bool {
	if len(g.Snake) >= g.Cells() {
		return false
	}

	cols, rows := g.Width/g.Block, g.Height/g.Block
	for attempt := 0; g.FoodRetries == 0 || attempt < g.FoodRetries; attempt++ {
		p := Point{X: g.rng.Intn(cols) * g.Block, Y: g.rng.Intn(rows) * g.Block}
		if !g.occupied(p) {
			g.Food = p
			return true
		}
	}

	var free []Point
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			p := Point{X: x * g.Block, Y: y * g.Block}
			if !g.occupied(p) {
				free = append(free, p)
			}
		}
	}
	if len(free) == 0 {
		return false
	}
	g.Food = free[g.rng.Intn(len(free))]
	return true
}

func (g *Game) occupied(p Point) bool {
	for _, s := range g.Snake {
		if s == p {
			return true
		}
	}
	return false
}

// distanceToFood returns the Euclidean distance from head to food
func (g *Game) distanceToFood() float64 {
	head := g.Head()
	dx := float64(head.X - g.Food.X)
	dy := float64(head.Y - g.Food.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Stats returns the statistics of the current episode
func (g *Game) Stats() EpisodeStats {
	return EpisodeStats{
		Score:  g.Score,
		Frames: g.Frame,
		Reward: g.TotalReward,
		Cycles: g.Cycles,
		Length: len(g.Snake),
		Death:  g.Death,
		Seed:   g.Seed,
	}
}
