package graph

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Clock produces the state tokens stamped on local writes.
//
// Now must never return a token smaller than one it returned before. Millis
// maps a token back to a millisecond reading so the graph can decide how long
// to hold a future tuple.
type Clock interface {
	Now() string
	Millis(state string) int64
}

// stateWidth is the number of base36 digits used for the millisecond part of
// a wall clock state. Nine digits last until the year 5188.
const stateWidth = 9

// WallClock stamps states as "<ms>.<id>" where <ms> is the wall clock in
// fixed-width base36 and <id> brands the instance. Several states within one
// millisecond get a ".<counter>" suffix that keeps them ordered.
//
// Thread-safety: WallClock is safe for concurrent use.
type WallClock struct {
	mu    sync.Mutex
	id    string
	last  int64
	index int64
	now   func() time.Time
}

// NewWallClock creates a wall clock branded with id.
func NewWallClock(id string) *WallClock {
	return &WallClock{id: id, now: time.Now}
}

// SetID rebrands the clock. The persistence layer calls this once the store
// id is known.
func (c *WallClock) SetID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
}

// Now returns the next state token.
func (c *WallClock) Now() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ms := c.now().UnixMilli()
	if ms <= c.last {
		// Same millisecond, or the wall clock stepped back.
		ms = c.last
		c.index++
	} else {
		c.last = ms
		c.index = 0
	}

	var b strings.Builder
	digits := strconv.FormatInt(ms, 36)
	if pad := stateWidth - len(digits); pad > 0 {
		b.WriteString(strings.Repeat("0", pad))
	}
	b.WriteString(digits)
	b.WriteByte('.')
	b.WriteString(c.id)
	if c.index > 0 {
		b.WriteByte('.')
		b.WriteString(counterSuffix(c.index))
	}
	return b.String()
}

// counterSuffix encodes n so that suffixes sort like the numbers they
// encode: the base36 digits are prefixed with their own count minus one.
func counterSuffix(n int64) string {
	digits := strconv.FormatInt(n, 36)
	return strconv.FormatInt(int64(len(digits)-1), 36) + digits
}

// Millis decodes the millisecond part of a wall clock state.
func (c *WallClock) Millis(state string) int64 {
	return MillisOf(state)
}

// MillisOf parses the base36 prefix of state up to the first dot. Tokens that
// do not parse count as zero.
func MillisOf(state string) int64 {
	head, _, _ := strings.Cut(state, ".")
	ms, err := strconv.ParseInt(head, 36, 64)
	if err != nil {
		return 0
	}
	return ms
}
