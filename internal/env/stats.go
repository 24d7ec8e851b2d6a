package env

import "math"

// DeathReason indicates how the episode ended
type DeathReason int

const (
	DeathNone      DeathReason = iota
	DeathWall                  // left the grid
	DeathSelf                  // hit own body
	DeathStall                 // frame counter exceeded the stall guard
	DeathBoardFull             // no free cell left for food
)

func (d DeathReason) String() string {
	switch d {
	case DeathNone:
		return "none"
	case DeathWall:
		return "wall"
	case DeathSelf:
		return "self"
	case DeathStall:
		return "stall"
	case DeathBoardFull:
		return "board_full"
	default:
		return "unknown"
	}
}

// EpisodeStats captures all metrics from a single episode
type EpisodeStats struct {
	Score  int         `json:"score"`
	Frames int         `json:"frames"`
	Reward float64     `json:"reward"`
	Cycles int         `json:"cycles"`
	Length int         `json:"length"`
	Death  DeathReason `json:"death"`
	Seed   uint64      `json:"seed"`
}

// AggregatedStats holds statistics across multiple episodes
type AggregatedStats struct {
	ScoreMean   float64
	ScoreStd    float64
	ScoreMax    int
	FramesMean  float64
	RewardMean  float64
	DeathCounts map[DeathReason]int
	NumEpisodes int
}

// Aggregate computes statistics from multiple episode stats
func Aggregate(episodes []EpisodeStats) AggregatedStats {
	n := len(episodes)
	if n == 0 {
		return AggregatedStats{DeathCounts: make(map[DeathReason]int)}
	}

	agg := AggregatedStats{
		DeathCounts: make(map[DeathReason]int),
		NumEpisodes: n,
	}

	var scoreSum, framesSum, rewardSum float64
	for _, ep := range episodes {
		scoreSum += float64(ep.Score)
		framesSum += float64(ep.Frames)
		rewardSum += ep.Reward
		if ep.Score > agg.ScoreMax {
			agg.ScoreMax = ep.Score
		}
		agg.DeathCounts[ep.Death]++
	}

	nf := float64(n)
	agg.ScoreMean = scoreSum / nf
	agg.FramesMean = framesSum / nf
	agg.RewardMean = rewardSum / nf

	var variance float64
	for _, ep := range episodes {
		diff := float64(ep.Score) - agg.ScoreMean
		variance += diff * diff
	}
	agg.ScoreStd = math.Sqrt(variance / nf)

	return agg
}
