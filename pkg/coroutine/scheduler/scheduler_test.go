package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/vnykmshr/tickflow/internal/testutil"
	tferrors "github.com/vnykmshr/tickflow/pkg/common/errors"
	"github.com/vnykmshr/tickflow/pkg/coroutine/condition"
	"github.com/vnykmshr/tickflow/pkg/coroutine/routine"
)

// waitOn returns a body that suspends on each of cs in turn and counts how
// often it runs.
func waitOn(runs *int, cs ...condition.Condition) routine.Body {
	return func(yield func(condition.Condition) bool) {
		*runs++
		for _, c := range cs {
			if !yield(c) {
				return
			}
			*runs++
		}
	}
}

func newTestScheduler() *Scheduler {
	return NewWithConfig(Config{Name: "test", IDGenerator: SequentialIDs()})
}

func TestScheduler_StartRunsToFirstYield(t *testing.T) {
	s := newTestScheduler()
	defer s.Clear()

	var steps []string
	e, err := s.Start(func(yield func(condition.Condition) bool) {
		steps = append(steps, "before")
		if !yield(condition.Predicate(func() bool { return false })) {
			return
		}
		steps = append(steps, "after")
	})
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, len(steps), 1)
	testutil.AssertEqual(t, steps[0], "before")
	testutil.AssertEqual(t, e.Resumes(), 1)
	if !s.Contains(e.ID()) {
		t.Fatal("started routine should be registered")
	}
	if e.Done() {
		t.Fatal("suspended routine should not be done")
	}
}

func TestScheduler_StartNilBody(t *testing.T) {
	s := New()

	e, err := s.Start(nil)
	if e != nil {
		t.Error("nil body should not produce an entry")
	}
	if !tferrors.IsValidationError(err) {
		t.Fatalf("Start(nil) error = %v, want validation error", err)
	}
	testutil.AssertEqual(t, s.Len(), 0)
}

func TestScheduler_UniqueIDs(t *testing.T) {
	s := New()
	defer s.Clear()

	seen := make(map[ID]bool)
	for i := 0; i < 500; i++ {
		e, err := s.Start(func(yield func(condition.Condition) bool) {
			yield(condition.Delay(0))
		})
		testutil.AssertNoError(t, err)
		if seen[e.ID()] {
			t.Fatalf("duplicate id %s after %d starts", e.ID(), i)
		}
		seen[e.ID()] = true
	}
	testutil.AssertEqual(t, s.Len(), 500)
}

func TestScheduler_DuplicateGeneratedID(t *testing.T) {
	fixed := SequentialIDs()()
	s := NewWithConfig(Config{IDGenerator: func() ID { return fixed }})
	defer s.Clear()

	body := func(yield func(condition.Condition) bool) { yield(condition.Delay(0)) }
	_, err := s.Start(body)
	testutil.AssertNoError(t, err)

	if _, err := s.Start(body); err == nil {
		t.Fatal("expected error for an id that is already registered")
	}
	testutil.AssertEqual(t, s.Len(), 1)
}

func TestScheduler_StopUnknownID(t *testing.T) {
	s := newTestScheduler()
	defer s.Clear()

	runs := 0
	_, err := s.Start(waitOn(&runs, condition.Delay(0)))
	testutil.AssertNoError(t, err)

	if s.Stop(ID{0xff}) {
		t.Error("Stop of unknown id should report false")
	}
	if s.Stop(ID{}) {
		t.Error("Stop of zero id should report false")
	}
	testutil.AssertEqual(t, s.Len(), 1)
	testutil.AssertEqual(t, runs, 1)
}

func TestScheduler_StopUnknownIDKeepsRegistry(t *testing.T) {
	s := newTestScheduler()
	defer s.Clear()

	runs := 0
	for i := 0; i < 3; i++ {
		_, err := s.Start(waitOn(&runs, condition.Delay(0)))
		testutil.AssertNoError(t, err)
	}

	s.Stop(ID{0xff})
	testutil.AssertEqual(t, s.Len(), 3)
}

func TestScheduler_StopReleasesBody(t *testing.T) {
	s := newTestScheduler()

	cleaned := false
	resumedAfterStop := false
	e, err := s.Start(func(yield func(condition.Condition) bool) {
		defer func() { cleaned = true }()
		if !yield(condition.NextTick()) {
			return
		}
		resumedAfterStop = true
	})
	testutil.AssertNoError(t, err)

	if !s.Stop(e.ID()) {
		t.Fatal("Stop should report the routine as removed")
	}
	if !cleaned {
		t.Error("Stop should run the body's deferred calls")
	}
	if e.Active() || s.Contains(e.ID()) {
		t.Error("stopped routine should be unregistered")
	}

	testutil.TickN(t, s, 3)
	if resumedAfterStop {
		t.Error("stopped routine must never resume")
	}
	if s.Stop(e.ID()) {
		t.Error("second Stop should report false")
	}
}

func TestScheduler_DelaySemantics(t *testing.T) {
	clock := testutil.NewMockClock(time.Time{})
	s := newTestScheduler()
	defer s.Clear()

	runs := 0
	e, err := s.Start(waitOn(&runs,
		condition.Delay(100*time.Millisecond, condition.WithClock(clock)),
		condition.Predicate(func() bool { return false }),
	))
	testutil.AssertNoError(t, err)

	for i := 0; i < 5; i++ {
		clock.Advance(10 * time.Millisecond)
		testutil.AssertNoError(t, s.Tick())
	}
	testutil.AssertEqual(t, runs, 1)

	d, ok := TryGetCondition[*condition.DelayCondition](s, e.ID())
	if !ok {
		t.Fatal("routine should be suspended on the delay")
	}
	testutil.AssertEqual(t, d.Remaining(), 50*time.Millisecond)

	clock.Advance(50 * time.Millisecond)
	testutil.AssertNoError(t, s.Tick())
	testutil.AssertEqual(t, runs, 2)

	clock.Advance(time.Second)
	testutil.TickN(t, s, 5)
	testutil.AssertEqual(t, runs, 2)
}

func TestScheduler_ZeroDelayNeverFires(t *testing.T) {
	clock := testutil.NewMockClock(time.Time{})
	s := newTestScheduler()
	defer s.Clear()

	runs := 0
	e, err := s.Start(waitOn(&runs, condition.Delay(0, condition.WithClock(clock))))
	testutil.AssertNoError(t, err)

	for i := 0; i < 100; i++ {
		clock.Advance(time.Hour)
		testutil.AssertNoError(t, s.Tick())
	}

	testutil.AssertEqual(t, runs, 1)
	if !s.Contains(e.ID()) {
		t.Error("routine waiting on a zero delay should stay registered")
	}
}

func TestScheduler_PredicateSemantics(t *testing.T) {
	s := newTestScheduler()
	defer s.Clear()

	x := 0
	runs := 0
	never := 0
	_, err := s.Start(waitOn(&runs, condition.Predicate(func() bool { return x >= 3 })))
	testutil.AssertNoError(t, err)
	stuck, err := s.Start(waitOn(&never, condition.Predicate(func() bool { return false })))
	testutil.AssertNoError(t, err)

	for i := 0; i < 3; i++ {
		testutil.AssertNoError(t, s.Tick())
		testutil.AssertEqual(t, runs, 1)
		x++
	}

	testutil.AssertNoError(t, s.Tick())
	testutil.AssertEqual(t, runs, 2)

	testutil.TickN(t, s, 50)
	testutil.AssertEqual(t, never, 1)
	if !s.Contains(stuck.ID()) {
		t.Error("routine on an always-false predicate must never be reaped")
	}
}

func TestScheduler_ReapAfterFinish(t *testing.T) {
	t.Run("completes during Start", func(t *testing.T) {
		s := newTestScheduler()

		ran := false
		e, err := s.Start(func(yield func(condition.Condition) bool) {
			ran = true
		})
		testutil.AssertNoError(t, err)

		if !ran || !e.Done() {
			t.Fatal("body without yields should complete inside Start")
		}
		if !s.Contains(e.ID()) {
			t.Fatal("completed routine should stay registered until the next Tick")
		}

		testutil.AssertNoError(t, s.Tick())
		if s.Contains(e.ID()) {
			t.Error("first Tick after completion should reap the routine")
		}
	})

	t.Run("completes during Tick", func(t *testing.T) {
		s := newTestScheduler()

		runs := 0
		e, err := s.Start(waitOn(&runs, condition.NextTick()))
		testutil.AssertNoError(t, err)

		testutil.AssertNoError(t, s.Tick())
		testutil.AssertEqual(t, runs, 2)
		if !e.Done() {
			t.Fatal("routine should have completed")
		}
		if !s.Contains(e.ID()) {
			t.Fatal("routine must not be reaped by the Tick it completed in")
		}
		if _, ok := s.Condition(e.ID()); ok {
			t.Error("completed routine should not expose a condition")
		}

		testutil.AssertNoError(t, s.Tick())
		if s.Contains(e.ID()) {
			t.Error("routine should be reaped by the following Tick")
		}
		testutil.AssertEqual(t, runs, 2)
	})
}

func TestScheduler_SpentConditionIsReaped(t *testing.T) {
	s := newTestScheduler()
	defer s.Clear()

	c := testutil.NewManualCondition()
	runs := 0
	e, err := s.Start(waitOn(&runs, c, c, condition.NextTick()))
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, s.Tick())
	testutil.AssertEqual(t, runs, 1)

	c.Set(true)
	testutil.AssertNoError(t, s.Tick())
	testutil.AssertEqual(t, runs, 2)
	if s.Contains(e.ID()) {
		t.Error("routine suspended on a finished condition should be reaped")
	}
}

func TestScheduler_NoDoubleAdvance(t *testing.T) {
	s := newTestScheduler()
	defer s.Clear()

	resumes := 0
	e, err := s.Start(func(yield func(condition.Condition) bool) {
		for {
			resumes++
			if !yield(nil) {
				return
			}
		}
	})
	testutil.AssertNoError(t, err)

	for i := 1; i <= 10; i++ {
		testutil.AssertNoError(t, s.Tick())
		testutil.AssertEqual(t, resumes, i+1)
	}
	testutil.AssertEqual(t, e.Resumes(), 11)
}

func TestScheduler_TickOrder(t *testing.T) {
	s := newTestScheduler()
	defer s.Clear()

	var order []int
	var ids []ID
	for i := 0; i < 5; i++ {
		i := i
		e, err := s.Start(func(yield func(condition.Condition) bool) {
			for yield(nil) {
				order = append(order, i)
			}
		})
		testutil.AssertNoError(t, err)
		ids = append(ids, e.ID())
	}

	testutil.AssertNoError(t, s.Tick())
	for i, got := range order {
		testutil.AssertEqual(t, got, i)
	}

	got := s.IDs()
	testutil.AssertEqual(t, len(got), len(ids))
	for i := range ids {
		testutil.AssertEqual(t, got[i], ids[i])
	}
}

func TestScheduler_StartDuringTick(t *testing.T) {
	s := newTestScheduler()
	defer s.Clear()

	childRuns := 0
	var child *Entry
	_, err := s.Start(func(yield func(condition.Condition) bool) {
		if !yield(nil) {
			return
		}
		var err error
		child, err = s.Start(waitOn(&childRuns, condition.NextTick()))
		if err != nil {
			t.Errorf("Start from a routine: %v", err)
		}
		yield(condition.Delay(0))
	})
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, s.Tick())
	if child == nil {
		t.Fatal("child routine was not started")
	}
	// Start runs the child once; the Tick that started it must not resume it.
	testutil.AssertEqual(t, childRuns, 1)

	testutil.AssertNoError(t, s.Tick())
	testutil.AssertEqual(t, childRuns, 2)
}

func TestScheduler_StopDuringTick(t *testing.T) {
	s := newTestScheduler()
	defer s.Clear()

	var victim *Entry
	_, err := s.Start(func(yield func(condition.Condition) bool) {
		if !yield(nil) {
			return
		}
		s.Stop(victim.ID())
		yield(condition.Delay(0))
	})
	testutil.AssertNoError(t, err)

	victimRuns := 0
	victim, err = s.Start(waitOn(&victimRuns, condition.NextTick()))
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, s.Tick())
	testutil.AssertEqual(t, victimRuns, 1)
	if s.Contains(victim.ID()) {
		t.Error("routine stopped mid-tick should be unregistered")
	}
	testutil.AssertEqual(t, s.Len(), 1)
}

func TestScheduler_StopSelf(t *testing.T) {
	s := newTestScheduler()

	var self *Entry
	cleaned := false
	reached := false
	var err error
	self, err = s.Start(func(yield func(condition.Condition) bool) {
		defer func() { cleaned = true }()
		if !yield(nil) {
			return
		}
		s.Stop(self.ID())
		if !yield(nil) {
			return
		}
		reached = true
	})
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, s.Tick())
	if !cleaned {
		t.Error("self-stopped routine should unwind once it suspends")
	}
	if reached || s.Contains(self.ID()) {
		t.Error("self-stopped routine should be gone")
	}
}

func TestScheduler_ReentrantTick(t *testing.T) {
	s := newTestScheduler()
	defer s.Clear()

	var inner error
	_, err := s.Start(func(yield func(condition.Condition) bool) {
		if !yield(nil) {
			return
		}
		inner = s.Tick()
		yield(condition.Delay(0))
	})
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, s.Tick())
	if !errors.Is(inner, tferrors.ErrReentrantTick) {
		t.Fatalf("nested Tick = %v, want ErrReentrantTick", inner)
	}
	testutil.AssertEqual(t, s.Ticks(), uint64(1))

	// The guard is released after the outer Tick.
	testutil.AssertNoError(t, s.Tick())
}

func TestScheduler_Clear(t *testing.T) {
	s := newTestScheduler()

	// Clear on an empty scheduler is a no-op.
	s.Clear()
	testutil.AssertEqual(t, s.Len(), 0)

	runs := 0
	cleaned := 0
	for i := 0; i < 4; i++ {
		_, err := s.Start(func(yield func(condition.Condition) bool) {
			defer func() { cleaned++ }()
			for yield(nil) {
				runs++
			}
		})
		testutil.AssertNoError(t, err)
	}

	s.Clear()
	testutil.AssertEqual(t, s.Len(), 0)
	testutil.AssertEqual(t, cleaned, 4)
	testutil.AssertEqual(t, len(s.IDs()), 0)

	testutil.TickN(t, s, 3)
	testutil.AssertEqual(t, runs, 0)

	s.Clear()
	testutil.AssertEqual(t, s.Len(), 0)
}

func TestScheduler_TryGetCondition(t *testing.T) {
	s := newTestScheduler()
	defer s.Clear()

	delay := condition.Delay(time.Hour)
	runs := 0
	e, err := s.Start(waitOn(&runs, delay))
	testutil.AssertNoError(t, err)

	got, ok := TryGetCondition[*condition.DelayCondition](s, e.ID())
	if !ok || got != delay {
		t.Fatal("expected the delay the routine is suspended on")
	}
	testutil.AssertEqual(t, got.Duration(), time.Hour)

	if _, ok := TryGetCondition[*condition.PredicateCondition](s, e.ID()); ok {
		t.Error("type mismatch should report false")
	}
	if _, ok := TryGetCondition[condition.Condition](s, e.ID()); !ok {
		t.Error("interface type should match any condition")
	}
	if _, ok := TryGetCondition[*condition.DelayCondition](s, ID{0xff}); ok {
		t.Error("unknown id should report false")
	}

	done, err := s.Start(func(yield func(condition.Condition) bool) {})
	testutil.AssertNoError(t, err)
	if _, ok := TryGetCondition[condition.Condition](s, done.ID()); ok {
		t.Error("completed routine should report false")
	}
}

func TestScheduler_PanicPropagates(t *testing.T) {
	s := newTestScheduler()
	defer s.Clear()

	e, err := s.Start(func(yield func(condition.Condition) bool) {
		if !yield(nil) {
			return
		}
		panic("boom")
	})
	testutil.AssertNoError(t, err)

	func() {
		defer func() {
			if r := recover(); r != "boom" {
				t.Fatalf("recovered %v, want boom", r)
			}
		}()
		_ = s.Tick()
		t.Fatal("Tick should have panicked")
	}()

	if !e.Done() {
		t.Error("panicked routine should be done")
	}
	// The scheduler stays usable and reaps the dead routine.
	testutil.AssertNoError(t, s.Tick())
	if s.Contains(e.ID()) {
		t.Error("panicked routine should be reaped")
	}
}

func TestScheduler_RecoverPanics(t *testing.T) {
	var reported []ID
	s := NewWithConfig(Config{
		Name:          "recover",
		IDGenerator:   SequentialIDs(),
		RecoverPanics: true,
		OnError:       func(id ID, _ error) { reported = append(reported, id) },
	})
	defer s.Clear()

	bad, err := s.Start(func(yield func(condition.Condition) bool) {
		if !yield(nil) {
			return
		}
		panic("boom")
	})
	testutil.AssertNoError(t, err)

	runs := 0
	good, err := s.Start(waitOn(&runs, condition.NextTick(), condition.Delay(0)))
	testutil.AssertNoError(t, err)

	err = s.Tick()
	if !tferrors.IsRoutineFailure(err) {
		t.Fatalf("Tick error = %v, want routine failure", err)
	}
	var opErr *tferrors.OperationError
	if !errors.As(err, &opErr) || opErr.Operation != "Tick" {
		t.Errorf("expected an OperationError for Tick, got %v", err)
	}

	if s.Contains(bad.ID()) {
		t.Error("panicking routine should be removed")
	}
	testutil.AssertEqual(t, runs, 2)
	if !s.Contains(good.ID()) {
		t.Error("other routines should keep running")
	}
	testutil.AssertEqual(t, len(reported), 1)
	testutil.AssertEqual(t, reported[0], bad.ID())
}

func TestScheduler_RecoverPanicsInStart(t *testing.T) {
	s := NewWithConfig(Config{RecoverPanics: true})

	e, err := s.Start(func(yield func(condition.Condition) bool) {
		panic("early")
	})
	if !tferrors.IsRoutineFailure(err) {
		t.Fatalf("Start error = %v, want routine failure", err)
	}
	if e == nil || e.Active() {
		t.Fatal("Start should return the removed entry")
	}
	testutil.AssertEqual(t, s.Len(), 0)
}

func TestScheduler_RecoverPanicsInCondition(t *testing.T) {
	var reported []ID
	s := NewWithConfig(Config{
		IDGenerator:   SequentialIDs(),
		RecoverPanics: true,
		OnError:       func(id ID, _ error) { reported = append(reported, id) },
	})
	defer s.Clear()

	released := false
	bad, err := s.Start(func(yield func(condition.Condition) bool) {
		defer func() { released = true }()
		yield(condition.Predicate(func() bool { panic("boom") }))
	})
	testutil.AssertNoError(t, err)

	runs := 0
	good, err := s.Start(waitOn(&runs, condition.NextTick(), condition.Delay(0)))
	testutil.AssertNoError(t, err)

	err = s.Tick()
	if !tferrors.IsRoutineFailure(err) {
		t.Fatalf("Tick error = %v, want routine failure", err)
	}
	if s.Contains(bad.ID()) {
		t.Error("routine with a panicking condition should be removed")
	}
	if !released {
		t.Error("routine body should be released")
	}
	if !s.Contains(good.ID()) {
		t.Error("other routines should keep running")
	}
	testutil.AssertEqual(t, runs, 2)
	testutil.AssertEqual(t, len(reported), 1)
	testutil.AssertEqual(t, reported[0], bad.ID())

	// The failed routine is gone, so later ticks stay quiet.
	testutil.AssertNoError(t, s.Tick())
}

func TestScheduler_ConditionPanicPropagates(t *testing.T) {
	s := New()
	defer s.Clear()

	_, err := s.Start(func(yield func(condition.Condition) bool) {
		yield(condition.Predicate(func() bool { panic("boom") }))
	})
	testutil.AssertNoError(t, err)

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("panic in a condition should escape Tick without RecoverPanics")
			}
		}()
		_ = s.Tick()
	}()

	if s.ticking {
		t.Fatal("reentrancy guard should be reset after a panic")
	}
	testutil.AssertEqual(t, s.Len(), 1)
}

func TestScheduler_OnReap(t *testing.T) {
	var reaped []ID
	s := NewWithConfig(Config{
		IDGenerator: SequentialIDs(),
		OnReap:      func(id ID) { reaped = append(reaped, id) },
	})

	e, err := s.Start(func(yield func(condition.Condition) bool) {})
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, s.Tick())
	testutil.AssertEqual(t, len(reaped), 1)
	testutil.AssertEqual(t, reaped[0], e.ID())
}

func TestScheduler_EndToEnd(t *testing.T) {
	s := newTestScheduler()
	defer s.Clear()

	x := 5
	e, err := s.Start(func(yield func(condition.Condition) bool) {
		if !yield(condition.Predicate(func() bool { return x > 10 })) {
			return
		}
		if !yield(condition.Predicate(func() bool { return x > 20 })) {
			return
		}
	})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, e.Resumes(), 1)

	for ; x <= 10; x++ {
		testutil.AssertNoError(t, s.Tick())
		testutil.AssertEqual(t, e.Resumes(), 1)
	}

	x = 15
	testutil.AssertNoError(t, s.Tick())
	testutil.AssertEqual(t, e.Resumes(), 2)
	if _, ok := TryGetCondition[*condition.PredicateCondition](s, e.ID()); !ok {
		t.Fatal("routine should wait on the second predicate")
	}

	testutil.AssertNoError(t, s.Tick())
	testutil.AssertEqual(t, e.Resumes(), 2)

	x = 25
	testutil.AssertNoError(t, s.Tick())
	testutil.AssertEqual(t, e.Resumes(), 3)
	if !e.Done() || !s.Contains(e.ID()) {
		t.Fatal("routine should be complete but not yet reaped")
	}

	testutil.AssertNoError(t, s.Tick())
	if s.Contains(e.ID()) {
		t.Error("routine should be reaped on the following Tick")
	}
	testutil.AssertEqual(t, s.Len(), 0)
}

func TestEntry_Equal(t *testing.T) {
	s := newTestScheduler()
	defer s.Clear()

	body := func(yield func(condition.Condition) bool) { yield(condition.Delay(0)) }
	a, err := s.Start(body)
	testutil.AssertNoError(t, err)
	b, err := s.Start(body)
	testutil.AssertNoError(t, err)

	same, ok := s.Entry(a.ID())
	if !ok {
		t.Fatal("entry lookup failed")
	}
	if !a.Equal(same) {
		t.Error("entries with the same id should be equal")
	}
	if a.Equal(b) {
		t.Error("entries with different ids should differ")
	}
	if a.Equal(nil) {
		t.Error("entry should not equal nil")
	}
}

func TestSequentialIDs(t *testing.T) {
	next := SequentialIDs()
	testutil.AssertEqual(t, next().String(), "00000000-0000-0000-0000-000000000001")
	testutil.AssertEqual(t, next().String(), "00000000-0000-0000-0000-000000000002")
}
