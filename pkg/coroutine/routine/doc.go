// Package routine implements resumable routines on top of iter.Pull.
//
// A routine body is ordinary sequential Go code that suspends itself by
// yielding a condition:
//
//	body := func(yield func(condition.Condition) bool) {
//		fmt.Println("start")
//		if !yield(condition.Delay(time.Second)) {
//			return // stopped while waiting
//		}
//		fmt.Println("one second later")
//	}
//
//	r := routine.New(body) // nothing has run yet
//	r.Resume()             // prints "start", suspends on the delay
//
// Resume continues the body until it yields again or returns. Deciding when
// to call Resume is the scheduler's job; a Routine never resumes itself.
package routine
