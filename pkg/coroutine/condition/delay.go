package condition

import "time"

// CallbackFlags modify how DelayWithCallback invokes its callback.
type CallbackFlags uint8

const (
	// NoFlags invokes the callback only on unsatisfied polls.
	NoFlags CallbackFlags = 0

	// RunOnEnd also invokes the callback once, with the full duration, on the
	// poll that satisfies the delay.
	RunOnEnd CallbackFlags = 1 << 0
)

// DelayCondition waits for a wall-clock duration measured from its creation.
//
// A zero or negative duration never elapses: the condition only ends when the
// owning routine is stopped.
type DelayCondition struct {
	latch
	clock    Clock
	start    time.Time
	duration time.Duration
	callback func(elapsed time.Duration)
	flags    CallbackFlags
}

// Delay returns a condition satisfied once d has elapsed.
func Delay(d time.Duration, opts ...Option) *DelayCondition {
	o := buildOptions(opts)
	return &DelayCondition{
		clock:    o.clock,
		start:    o.clock.Now(),
		duration: d,
	}
}

// DelayWithCallback behaves like Delay and calls fn with the elapsed time on
// every poll that does not satisfy the delay.
func DelayWithCallback(d time.Duration, fn func(elapsed time.Duration), flags CallbackFlags, opts ...Option) *DelayCondition {
	c := Delay(d, opts...)
	c.callback = fn
	c.flags = flags
	return c
}

func (c *DelayCondition) IsSatisfied() bool {
	if c.fired {
		return true
	}
	if c.duration <= 0 {
		return false
	}

	elapsed := c.clock.Now().Sub(c.start)
	if elapsed >= c.duration {
		if c.callback != nil && c.flags&RunOnEnd != 0 {
			c.callback(c.duration)
		}
		return c.fire()
	}

	if c.callback != nil {
		c.callback(elapsed)
	}
	return false
}

// Duration returns the configured delay.
func (c *DelayCondition) Duration() time.Duration {
	return c.duration
}

// Elapsed returns the time since the condition was created, capped at the
// delay once it has fired.
func (c *DelayCondition) Elapsed() time.Duration {
	if c.fired {
		return c.duration
	}
	return c.clock.Now().Sub(c.start)
}

// Remaining returns the time left before the delay elapses. It is zero once
// the condition has fired. Remaining does not poll the condition.
func (c *DelayCondition) Remaining() time.Duration {
	if c.fired {
		return 0
	}
	if c.duration <= 0 {
		return c.duration
	}
	left := c.duration - c.clock.Now().Sub(c.start)
	if left < 0 {
		return 0
	}
	return left
}
