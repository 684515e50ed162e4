// Package testutils provides deterministic clocks, id sequences and scripted generators for BytEdge tests.
package testutils

import (
	"fmt"
	"sync"
	"time"
)

// BaseTime is the first instant a Clock returns.
var BaseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock returns incrementing timestamps, one second apart, starting at BaseTime.
type Clock struct {
	mu   sync.Mutex
	tick int64
}

// NewClock creates a Clock.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the next timestamp.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := BaseTime.Add(time.Duration(c.tick) * time.Second)
	c.tick++
	return t
}

// IDSequence produces session ids in the production "<agent>_<uuid>" shape with
// counter-based uuids: 00000001-0000-4000-8000-000000000001, 00000002-..., and so on.
type IDSequence struct {
	mu      sync.Mutex
	counter uint64
	// Repeat makes the next n calls reissue the previous id, to exercise collision handling.
	Repeat int
}

// NewIDSequence creates an IDSequence.
func NewIDSequence() *IDSequence {
	return &IDSequence{}
}

// Next returns the next session id for agentID.
func (s *IDSequence) Next(agentID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Repeat > 0 && s.counter > 0 {
		s.Repeat--
	} else {
		s.counter++
	}
	return fmt.Sprintf("%s_%08x-0000-4000-8000-%012x", agentID, s.counter, s.counter)
}
