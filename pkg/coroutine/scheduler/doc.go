// Package scheduler runs cooperative routines that suspend on conditions and
// are advanced one step at a time by an external driver.
//
// A routine is a Go iterator function that yields the condition it waits for:
//
//	s := scheduler.New()
//	x := 0
//	s.Start(func(yield func(condition.Condition) bool) {
//		if !yield(condition.Predicate(func() bool { return x > 10 })) {
//			return
//		}
//		fmt.Println("x passed 10")
//	})
//	for i := 0; i < 12; i++ {
//		x++
//		s.Tick()
//	}
//
// Start runs the new routine immediately up to its first yield. Each Tick
// then resumes, in registration order, every routine whose condition is
// satisfied, and removes routines that completed during an earlier Tick or
// that are suspended on a condition which reports IsFinished. A completed
// routine therefore remains registered, and its id remains valid for
// Contains, until the Tick after the one in which it returned.
//
// Stop and Clear abandon routines: the suspended yield returns false, the
// body returns, and its deferred calls run before Stop or Clear returns.
//
// The scheduler is single-threaded. Drive it from one goroutine, directly or
// through package loop.
package scheduler
