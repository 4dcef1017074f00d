package testutil

import (
	"strconv"
	"sync"
)

// SequenceClock is a graph clock whose reading is set by the test.
//
// Tests move it through short tokens such as "a", "b", "c". Millis reads a
// token as a base36 number, so "c" is two milliseconds after "a".
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequenceClock struct {
	mu    sync.Mutex
	state string
}

// NewSequenceClock creates a clock reading start.
func NewSequenceClock(start string) *SequenceClock {
	return &SequenceClock{state: start}
}

// Now returns the current reading.
func (c *SequenceClock) Now() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Set moves the clock to state.
func (c *SequenceClock) Set(state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

// Millis parses state as a base36 number. Unparseable states count as zero.
func (c *SequenceClock) Millis(state string) int64 {
	ms, err := strconv.ParseInt(state, 36, 64)
	if err != nil {
		return 0
	}
	return ms
}
