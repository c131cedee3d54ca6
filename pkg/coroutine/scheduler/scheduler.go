package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/vnykmshr/tickflow/internal/logging"
	tferrors "github.com/vnykmshr/tickflow/pkg/common/errors"
	"github.com/vnykmshr/tickflow/pkg/coroutine/condition"
	"github.com/vnykmshr/tickflow/pkg/coroutine/routine"
	"github.com/vnykmshr/tickflow/pkg/metrics"
)

// ID identifies a registered routine.
type ID = uuid.UUID

// IDGenerator produces identifiers that are unique for the lifetime of the
// process.
type IDGenerator func() ID

// Entry pairs a routine with its identifier. Entries are owned by the
// Scheduler; callers keep them only as handles.
type Entry struct {
	id      ID
	routine *routine.Routine

	// doneAt is the tick number during which the routine completed. A
	// completed entry is reaped by the first Tick numbered after it.
	doneAt  uint64
	removed bool
}

// ID returns the entry's identifier.
func (e *Entry) ID() ID {
	return e.id
}

// Equal reports whether e and other refer to the same registration.
func (e *Entry) Equal(other *Entry) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.id == other.id
}

// Done reports whether the routine body has returned or was stopped.
func (e *Entry) Done() bool {
	return e.routine.Done()
}

// Active reports whether the entry is still registered.
func (e *Entry) Active() bool {
	return !e.removed
}

// Resumes returns how many times the routine has run, including the initial
// run performed by Start.
func (e *Entry) Resumes() int {
	return e.routine.Resumes()
}

// Config holds scheduler configuration.
type Config struct {
	// Name labels log records and metrics (default: "default").
	Name string

	// IDGenerator allocates routine ids (default: uuid.New).
	IDGenerator IDGenerator

	// RecoverPanics converts a panicking routine into a removed entry and a
	// returned error instead of letting the panic escape Start or Tick. Panics
	// raised while polling the routine's condition are treated the same way.
	RecoverPanics bool

	// Logger receives debug records for routine lifecycle events and error
	// records for recovered panics. Nil discards.
	Logger *slog.Logger

	// Metrics enables Prometheus instrumentation when non-nil.
	Metrics *metrics.Registry

	// OnReap is called after Tick removes a finished routine.
	OnReap func(id ID)

	// OnError is called for every recovered routine panic.
	OnError func(id ID, err error)
}

// Scheduler advances registered routines each time Tick is called.
//
// A Scheduler is not safe for concurrent use. All methods must be called from
// the goroutine that drives it; routine bodies run on that goroutine's
// behalf and may call Start, Stop and Clear, but not Tick.
type Scheduler struct {
	name          string
	newID         IDGenerator
	recoverPanics bool
	logger        *slog.Logger
	obs           observer
	onReap        func(ID)
	onError       func(ID, error)

	entries map[ID]*Entry
	order   []*Entry
	stale   int
	ticks   uint64
	ticking bool
}

// New creates a scheduler with default configuration.
func New() *Scheduler {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) *Scheduler {
	name := cfg.Name
	if name == "" {
		name = "default"
	}

	newID := cfg.IDGenerator
	if newID == nil {
		newID = uuid.New
	}

	var obs observer = noopObserver{}
	if cfg.Metrics != nil {
		obs = newMetricsObserver(cfg.Metrics, name)
	}

	return &Scheduler{
		name:          name,
		newID:         newID,
		recoverPanics: cfg.RecoverPanics,
		logger:        logging.OrDiscard(cfg.Logger).With("scheduler", name),
		obs:           obs,
		onReap:        cfg.OnReap,
		onError:       cfg.OnError,
		entries:       make(map[ID]*Entry),
	}
}

// Name returns the scheduler's name.
func (s *Scheduler) Name() string {
	return s.name
}

// Start registers body as a new routine and runs it until its first yield or
// until it returns, before Start returns. The routine is then resumed by Tick
// whenever the condition it yielded is satisfied.
//
// A nil body is rejected with a validation error. If the body panics and
// RecoverPanics is set, the entry is returned already removed together with
// an error wrapping ErrRoutinePanicked.
func (s *Scheduler) Start(body routine.Body) (*Entry, error) {
	if body == nil {
		return nil, tferrors.NewValidationError("scheduler", "body", nil, "cannot be nil").
			WithHint("pass a func(yield func(condition.Condition) bool)")
	}

	id := s.newID()
	if _, exists := s.entries[id]; exists {
		return nil, fmt.Errorf("routine id %s already registered, IDGenerator must return unique ids", id)
	}

	e := &Entry{id: id, routine: routine.New(body)}
	s.entries[id] = e
	s.order = append(s.order, e)
	s.obs.started()
	s.obs.active(len(s.entries))
	s.logger.Debug("routine started", "routine_id", id)

	if err := s.resume(e, "Start"); err != nil {
		return e, err
	}
	if e.routine.Done() {
		e.doneAt = s.ticks
	}
	return e, nil
}

// Stop removes the routine registered under id and releases its suspended
// body. It reports whether a routine was removed; unknown ids are ignored.
func (s *Scheduler) Stop(id ID) bool {
	e, ok := s.entries[id]
	if !ok {
		return false
	}
	s.remove(e)
	s.obs.stopped(1)
	s.logger.Debug("routine stopped", "routine_id", id)
	return true
}

// Clear removes every registered routine.
func (s *Scheduler) Clear() {
	entries := s.order
	s.order = nil
	s.stale = 0
	s.entries = make(map[ID]*Entry)

	n := 0
	for _, e := range entries {
		if e.removed {
			continue
		}
		e.removed = true
		e.routine.Stop()
		n++
	}
	if n > 0 {
		s.obs.stopped(n)
		s.logger.Debug("scheduler cleared", "routines", n)
	}
	s.obs.active(len(s.entries))
}

// Tick performs one scheduling pass over the routines registered when it
// starts, in registration order:
//
//  1. every routine whose condition is satisfied is resumed once;
//  2. every routine that completed before this Tick, or whose condition
//     reports finished, is removed.
//
// Routines started during a Tick are first visited by the next Tick. Tick
// returns ErrReentrantTick if called from inside a routine or condition, and
// the joined errors of routines that panicked when RecoverPanics is set.
func (s *Scheduler) Tick() error {
	if s.ticking {
		return tferrors.ErrReentrantTick
	}
	s.ticking = true
	start := time.Now()
	defer func() {
		s.ticking = false
		s.compact()
	}()

	s.ticks++
	tick := s.ticks
	snapshot := s.live()

	var errs []error
	resumed := 0
	for _, e := range snapshot {
		if e.removed || e.routine.Done() {
			continue
		}
		satisfied, err := s.poll(e)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		// Conditions may stop entries while being polled.
		if !satisfied || e.removed {
			continue
		}
		if err := s.resume(e, "Tick"); err != nil {
			errs = append(errs, err)
			continue
		}
		resumed++
		if e.routine.Done() {
			e.doneAt = tick
		}
	}

	reaped := 0
	for _, e := range snapshot {
		if e.removed {
			continue
		}
		if e.routine.Done() {
			if e.doneAt < tick {
				s.reap(e)
				reaped++
			}
			continue
		}
		if e.routine.Condition().IsFinished() {
			s.reap(e)
			reaped++
		}
	}

	s.obs.resumed(resumed)
	s.obs.reaped(reaped)
	s.obs.tick(time.Since(start))
	return errors.Join(errs...)
}

// Len returns the number of registered routines.
func (s *Scheduler) Len() int {
	return len(s.entries)
}

// Ticks returns the number of Tick calls that have started.
func (s *Scheduler) Ticks() uint64 {
	return s.ticks
}

// Contains reports whether a routine is registered under id.
func (s *Scheduler) Contains(id ID) bool {
	_, ok := s.entries[id]
	return ok
}

// Entry returns the entry registered under id.
func (s *Scheduler) Entry(id ID) (*Entry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

// IDs returns the registered routine ids in registration order.
func (s *Scheduler) IDs() []ID {
	ids := make([]ID, 0, len(s.entries))
	for _, e := range s.order {
		if !e.removed {
			ids = append(ids, e.id)
		}
	}
	return ids
}

// Condition returns the condition the routine registered under id is
// suspended on. It reports false for unknown ids and completed routines.
// Callers must not poll or mutate the returned condition.
func (s *Scheduler) Condition(id ID) (condition.Condition, bool) {
	e, ok := s.entries[id]
	if !ok || e.routine.Done() {
		return nil, false
	}
	return e.routine.Condition(), true
}

// TryGetCondition returns the condition the routine registered under id is
// suspended on, if it has the concrete type T:
//
//	if d, ok := scheduler.TryGetCondition[*condition.DelayCondition](s, id); ok {
//		fmt.Println("wakes in", d.Remaining())
//	}
//
// It reports false for unknown ids, completed routines and type mismatches.
func TryGetCondition[T any](s *Scheduler, id ID) (T, bool) {
	var zero T
	c, ok := s.Condition(id)
	if !ok {
		return zero, false
	}
	typed, ok := c.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

func (s *Scheduler) resume(e *Entry, op string) (err error) {
	if s.recoverPanics {
		defer s.recoverRoutine(e, op, &err)
	}
	return e.routine.Resume()
}

// poll evaluates the condition e is suspended on. Conditions run caller code,
// so a panic there fails the routine like a panic in its body.
func (s *Scheduler) poll(e *Entry) (satisfied bool, err error) {
	if s.recoverPanics {
		defer s.recoverRoutine(e, "Tick", &err)
	}
	return e.routine.Condition().IsSatisfied(), nil
}

func (s *Scheduler) recoverRoutine(e *Entry, op string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	*err = tferrors.NewOperationError("scheduler", op, fmt.Errorf("%w: %v", tferrors.ErrRoutinePanicked, r)).
		WithContext("routine " + e.id.String())
	s.logger.Error("routine panicked", "routine_id", e.id, "panic", r, "stack", string(debug.Stack()))
	s.remove(e)
	s.obs.failed()
	if s.onError != nil {
		s.onError(e.id, *err)
	}
}

func (s *Scheduler) reap(e *Entry) {
	s.remove(e)
	s.logger.Debug("routine reaped", "routine_id", e.id, "resumes", e.routine.Resumes())
	if s.onReap != nil {
		s.onReap(e.id)
	}
}

// remove unregisters e before releasing its routine, so code running in the
// routine's deferred calls observes the scheduler without it.
func (s *Scheduler) remove(e *Entry) {
	if e.removed {
		return
	}
	e.removed = true
	if cur, ok := s.entries[e.id]; ok && cur == e {
		delete(s.entries, e.id)
	}
	s.stale++
	s.obs.active(len(s.entries))
	e.routine.Stop()
	if !s.ticking && s.stale > len(s.order)/2 {
		s.compact()
	}
}

func (s *Scheduler) live() []*Entry {
	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.order {
		if !e.removed {
			out = append(out, e)
		}
	}
	return out
}

func (s *Scheduler) compact() {
	if s.stale == 0 {
		return
	}
	s.order = s.live()
	s.stale = 0
}
