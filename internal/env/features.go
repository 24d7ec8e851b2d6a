package env

// StateSize is the length of the encoded observation
const StateSize = 11

// Encode builds the observation vector for the current game state:
//
//	[0:3]  danger straight / right / left of the current heading
//	[3:7]  heading one-hot: left, right, up, down
//	[7:11] food strictly left / right / above / below the head
//
// The returned slice is freshly allocated and safe to keep.
func Encode(g *Game) []float64 {
	head := g.Head()
	state := make([]float64, StateSize)

	state[0] = boolToFloat(g.IsCollision(g.Neighbor(head, g.Dir)))
	state[1] = boolToFloat(g.IsCollision(g.Neighbor(head, g.Dir.Turn(ActionRight))))
	state[2] = boolToFloat(g.IsCollision(g.Neighbor(head, g.Dir.Turn(ActionLeft))))

	state[3] = boolToFloat(g.Dir == DirLeft)
	state[4] = boolToFloat(g.Dir == DirRight)
	state[5] = boolToFloat(g.Dir == DirUp)
	state[6] = boolToFloat(g.Dir == DirDown)

	state[7] = boolToFloat(g.Food.X < head.X)
	state[8] = boolToFloat(g.Food.X > head.X)
	state[9] = boolToFloat(g.Food.Y < head.Y)
	state[10] = boolToFloat(g.Food.Y > head.Y)

	return state
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
