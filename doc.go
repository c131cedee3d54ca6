/*
Package tickflow provides cooperative, step-driven routines for Go programs
that advance work in discrete ticks, such as game loops, simulations and
frame-based services.

A routine is a function that yields wait conditions. A scheduler resumes each
routine when the condition it is waiting on is satisfied, one step per Tick.

Coroutines (pkg/coroutine):
  - condition: Delay, DelayWithCallback, Predicate, Until, NextTick, Frames,
    All, Any and Cron wait conditions
  - routine: resumable bodies built on iter.Pull
  - scheduler: the routine registry with Start, Stop, Clear and Tick
  - loop: drives a scheduler on a ticker and serializes access to it
  - offload: worker pool whose futures are wait conditions
  - remote: Redis-backed conditions for cross-process signals and locks

Example usage:

	import (
		"github.com/vnykmshr/tickflow/pkg/coroutine/condition"
		"github.com/vnykmshr/tickflow/pkg/coroutine/scheduler"
	)

	s := scheduler.New()
	s.Start(func(yield func(condition.Condition) bool) {
		if !yield(condition.Delay(2 * time.Second)) {
			return
		}
		fmt.Println("two seconds later")
	})

	for s.Len() > 0 {
		s.Tick()
		time.Sleep(time.Second / 60)
	}
*/
package tickflow
