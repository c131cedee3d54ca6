package routine

import (
	"iter"

	tferrors "github.com/vnykmshr/tickflow/pkg/common/errors"
	"github.com/vnykmshr/tickflow/pkg/coroutine/condition"
)

// Body is the code of a routine. It suspends by calling yield with the
// condition it waits for, and must return as soon as yield reports false.
// Yielding nil waits for the next resume opportunity.
type Body = iter.Seq[condition.Condition]

// Routine is a resumable execution of a Body.
//
// A Routine is not safe for concurrent use. Resume and Stop must not be
// called concurrently; they may be called from different goroutines in turn.
type Routine struct {
	next func() (condition.Condition, bool)
	stop func()

	current condition.Condition
	resumes int
	done    bool
	running bool

	// stopPending records a Stop issued from inside the body; it is applied
	// once the body suspends.
	stopPending bool
}

// New wraps body in a Routine. No body code runs until the first Resume.
func New(body Body) *Routine {
	next, stop := iter.Pull(body)
	return &Routine{
		next:    next,
		stop:    stop,
		current: condition.NextTick(),
	}
}

// Resume runs the body from its last suspension point until it yields again
// or returns. It returns ErrRoutineCompleted if the body already returned or
// the routine was stopped. A panic in the body propagates to the caller and
// leaves the routine completed.
func (r *Routine) Resume() error {
	if r.done {
		return tferrors.ErrRoutineCompleted
	}
	if r.running {
		return tferrors.ErrRoutineRunning
	}

	r.running = true
	panicking := true
	defer func() {
		r.running = false
		if panicking {
			r.finish()
		}
	}()

	c, ok := r.next()
	panicking = false
	r.resumes++

	if !ok {
		r.finish()
		return nil
	}
	if c == nil {
		c = condition.NextTick()
	}
	r.current = c

	if r.stopPending {
		r.finish()
	}
	return nil
}

// Condition returns the condition the routine is suspended on. Before the
// first Resume it is a NextTick condition. After completion it is the last
// condition the routine yielded and should not be relied on.
func (r *Routine) Condition() condition.Condition {
	return r.current
}

// Done reports whether the body has returned, panicked or been stopped.
func (r *Routine) Done() bool {
	return r.done
}

// Resumes returns how many times the routine has been resumed.
func (r *Routine) Resumes() int {
	return r.resumes
}

// Stop abandons the routine. A suspended body sees yield return false and
// unwinds before Stop returns, running its deferred calls. Calling Stop from
// inside the body takes effect when the body next suspends. Stop is a no-op
// on a completed routine.
func (r *Routine) Stop() {
	if r.done {
		return
	}
	if r.running {
		r.stopPending = true
		return
	}
	r.finish()
}

func (r *Routine) finish() {
	r.done = true
	r.stop()
}
