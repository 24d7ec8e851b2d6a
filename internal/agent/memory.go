package agent

import (
	"golang.org/x/exp/rand"

	"snakedqn/internal/env"
)

// Transition is one observed step of the environment
type Transition struct {
	State     []float64
	Action    env.Action
	Reward    float64
	NextState []float64
	Done      bool
}

// Memory is a fixed capacity ring buffer of transitions. When full, each
// Remember overwrites the oldest entry.
type Memory struct {
	buffer   []Transition
	capacity int
	position int
	size     int
	rng      *rand.Rand
}

// NewMemory creates an empty memory holding at most capacity transitions
func NewMemory(capacity int, rng *rand.Rand) *Memory {
	return &Memory{
		buffer:   make([]Transition, capacity),
		capacity: capacity,
		rng:      rng,
	}
}

// Remember stores t, evicting the oldest transition when full
func (m *Memory) Remember(t Transition) {
	m.buffer[m.position] = t
	m.position = (m.position + 1) % m.capacity
	if m.size < m.capacity {
		m.size++
	}
}

// Len returns the number of stored transitions
func (m *Memory) Len() int {
	return m.size
}

// Cap returns the capacity
func (m *Memory) Cap() int {
	return m.capacity
}

// Transitions returns the stored transitions from oldest to newest
func (m *Memory) Transitions() []Transition {
	out := make([]Transition, 0, m.size)
	start := 0
	if m.size == m.capacity {
		start = m.position
	}
	for i := 0; i < m.size; i++ {
		out = append(out, m.buffer[(start+i)%m.capacity])
	}
	return out
}

// Sample returns n transitions drawn uniformly without replacement. If the
// memory holds n or fewer, everything is returned.
func (m *Memory) Sample(n int) []Transition {
	if m.size <= n {
		return m.Transitions()
	}

	batch := make([]Transition, 0, n)
	picked := make(map[int]bool, n)
	for len(batch) < n {
		idx := m.rng.Intn(m.size)
		if picked[idx] {
			continue
		}
		picked[idx] = true
		batch = append(batch, m.buffer[idx])
	}
	return batch
}
