// Package condition provides the wait conditions a routine yields to suspend
// itself until something happens.
//
// A Condition answers two questions when polled by the scheduler:
//
//   - IsSatisfied: has the awaited event occurred? The scheduler resumes the
//     routine on the first Tick where this is true.
//   - IsFinished: has the condition fired? This is a latch that never resets.
//     The scheduler removes a routine whose current condition is finished but
//     that was not handed a fresh condition.
//
// Built-in conditions:
//
//	condition.Delay(2*time.Second)                         // wall-clock delay
//	condition.DelayWithCallback(time.Second, fn, condition.RunOnEnd)
//	condition.Predicate(func() bool { return hp <= 0 })    // also Until
//	condition.NextTick()                                   // next Tick
//	condition.Frames(3)                                    // third poll
//	condition.Cron("*/5 * * * * *")                        // next cron activation
//	condition.All(a, b) / condition.Any(a, b)              // composition
//
// Polling is the only way a condition advances; there are no timers or
// goroutines behind any of them. Time-based conditions compare the clock on
// each poll, so the Tick cadence bounds their resolution.
//
// Zero-duration delays never fire. Delay(0) is the canonical "wait until
// stopped" condition.
//
// Custom conditions only need the two methods:
//
//	type flagSet struct{ flag *bool; done bool }
//
//	func (f *flagSet) IsSatisfied() bool {
//		if *f.flag {
//			f.done = true
//		}
//		return *f.flag
//	}
//
//	func (f *flagSet) IsFinished() bool { return f.done }
//
// Conditions are not safe for concurrent use. They are polled from the
// goroutine that drives the scheduler.
package condition
