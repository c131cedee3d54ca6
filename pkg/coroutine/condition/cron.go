package condition

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CronCondition waits for the next activation of a cron schedule after the
// moment it was created.
type CronCondition struct {
	latch
	clock Clock
	at    time.Time
}

// Cron parses expr and returns a condition satisfied at its next activation.
// Expressions accept an optional leading seconds field and descriptors such
// as "@every 5s" or "@hourly".
func Cron(expr string, opts ...Option) (*CronCondition, error) {
	if expr == "" {
		return nil, fmt.Errorf("cron expression cannot be empty")
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return Schedule(schedule, opts...), nil
}

// Schedule returns a condition satisfied at the next activation of s.
func Schedule(s cron.Schedule, opts ...Option) *CronCondition {
	o := buildOptions(opts)
	return &CronCondition{
		clock: o.clock,
		at:    s.Next(o.clock.Now()),
	}
}

func (c *CronCondition) IsSatisfied() bool {
	if c.fired {
		return true
	}
	// A schedule with no future activation returns the zero time.
	if c.at.IsZero() {
		return false
	}
	if !c.clock.Now().Before(c.at) {
		return c.fire()
	}
	return false
}

// At returns the activation time the condition waits for.
func (c *CronCondition) At() time.Time {
	return c.at
}
