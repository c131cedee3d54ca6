package testutil

import (
	"sync"
	"time"
)

// MockClock implements condition.Clock with controllable time.
// Time-based conditions built with it only move when the test advances it.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a new MockClock starting at the given time.
// If zero time is provided, uses current time.
func NewMockClock(start time.Time) *MockClock {
	if start.IsZero() {
		start = time.Now()
	}
	return &MockClock{now: start}
}

// Now returns the current mock time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock clock forward by the given duration.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set sets the mock clock to a specific time.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// ManualCondition is a condition whose satisfaction is set by the test.
// It latches finished on the first satisfied poll and counts polls.
type ManualCondition struct {
	ready    bool
	finished bool
	polls    int
}

// NewManualCondition returns an unsatisfied ManualCondition.
func NewManualCondition() *ManualCondition {
	return &ManualCondition{}
}

// Set controls what the next polls of IsSatisfied report.
func (c *ManualCondition) Set(ready bool) {
	c.ready = ready
}

// IsSatisfied reports the value last passed to Set.
func (c *ManualCondition) IsSatisfied() bool {
	c.polls++
	if c.ready {
		c.finished = true
	}
	return c.ready
}

// IsFinished reports whether IsSatisfied has ever returned true.
func (c *ManualCondition) IsFinished() bool {
	return c.finished
}

// Polls returns the number of IsSatisfied calls.
func (c *ManualCondition) Polls() int {
	return c.polls
}
