package env

// CycleWindow is a fixed-length history of head positions. Once full, each
// push overwrites the oldest entry.
type CycleWindow struct {
	buf     []Point
	next    int
	size    int
	repeats int
}

// NewCycleWindow creates a window of the given capacity that reports a cycle
// when any position appears at least repeats times.
func NewCycleWindow(capacity, repeats int) *CycleWindow {
	return &CycleWindow{
		buf:     make([]Point, capacity),
		repeats: repeats,
	}
}

// Push records a head position
func (c *CycleWindow) Push(p Point) {
	c.buf[c.next] = p
	c.next = (c.next + 1) % len(c.buf)
	if c.size < len(c.buf) {
		c.size++
	}
}

// Len returns the number of recorded positions
func (c *CycleWindow) Len() int {
	return c.size
}

// Clear empties the window
func (c *CycleWindow) Clear() {
	c.next = 0
	c.size = 0
}

// Detect reports whether a position recurs often enough to count as a
// cycle. A detection clears the window.
func (c *CycleWindow) Detect() bool {
	counts := make(map[Point]int, c.size)
	for i := 0; i < c.size; i++ {
		p := c.buf[i]
		counts[p]++
		if counts[p] >= c.repeats {
			c.Clear()
			return true
		}
	}
	return false
}
