package condition

import "time"

// Condition decides when a suspended routine may resume.
//
// IsSatisfied may change internal state; in particular the first satisfying
// poll latches IsFinished. Once IsFinished reports true it must keep reporting
// true. Implementations are polled from a single goroutine.
type Condition interface {
	// IsSatisfied reports whether the awaited event has occurred.
	IsSatisfied() bool

	// IsFinished reports whether the condition has fired at least once.
	IsFinished() bool
}

// Clock provides the current time. It can be mocked for testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Option configures a time-based condition.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock makes a condition read time from c instead of the system clock.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// latch is the finished flag shared by the built-in conditions.
type latch struct {
	fired bool
}

func (l *latch) fire() bool {
	l.fired = true
	return true
}

// IsFinished reports whether the condition has fired.
func (l *latch) IsFinished() bool {
	return l.fired
}

type nextTick struct {
	latch
}

// NextTick returns a condition that is satisfied on its first poll.
// Routines that yield nil are suspended on a NextTick condition.
func NextTick() Condition {
	return &nextTick{}
}

func (n *nextTick) IsSatisfied() bool {
	return n.fire()
}

// FrameCondition is satisfied after it has been polled a fixed number of times.
type FrameCondition struct {
	latch
	remaining int
}

// Frames returns a condition satisfied on the n-th poll. Frames(1) behaves
// like NextTick; n <= 0 is satisfied immediately.
func Frames(n int) *FrameCondition {
	return &FrameCondition{remaining: n}
}

func (f *FrameCondition) IsSatisfied() bool {
	if f.fired {
		return true
	}
	f.remaining--
	if f.remaining <= 0 {
		f.remaining = 0
		return f.fire()
	}
	return false
}

// Remaining returns how many more polls are needed before the condition fires.
func (f *FrameCondition) Remaining() int {
	return f.remaining
}
