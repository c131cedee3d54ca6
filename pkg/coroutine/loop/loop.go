package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vnykmshr/tickflow/internal/logging"
	tferrors "github.com/vnykmshr/tickflow/pkg/common/errors"
	"github.com/vnykmshr/tickflow/pkg/common/validation"
	"github.com/vnykmshr/tickflow/pkg/coroutine/scheduler"
	"github.com/vnykmshr/tickflow/pkg/metrics"
)

// ErrRunning is returned by Start and Run when the loop is already running.
var ErrRunning = errors.New("loop already running, call Stop() first")

// Config holds loop configuration.
type Config struct {
	// TickInterval is the time between two Tick calls (default: 50ms).
	TickInterval time.Duration

	// QueueSize bounds the number of posted functions waiting to run
	// (default: 64).
	QueueSize int

	// Logger receives tick errors and overruns. Nil discards.
	Logger *slog.Logger

	// Metrics enables the overrun counter when non-nil. Scheduler metrics
	// are configured on the scheduler itself.
	Metrics *metrics.Registry

	// OnError is called on the loop goroutine for every error returned by
	// Tick and for panics escaping Tick or a posted function.
	OnError func(err error)
}

type state int

const (
	idle state = iota
	running
	closed
)

// Loop drives a Scheduler from a dedicated goroutine at a fixed cadence.
//
// The scheduler must not be used directly once the loop is started; other
// goroutines reach it through Post and Do, whose functions run on the loop
// goroutine between ticks.
type Loop struct {
	sched    *scheduler.Scheduler
	interval time.Duration
	logger   *slog.Logger
	overruns prometheus.Counter
	onError  func(error)
	posts    chan func(*scheduler.Scheduler)

	mu     sync.Mutex
	state  state
	done   chan struct{}
	exited chan struct{}
}

// New creates a loop driving s.
func New(s *scheduler.Scheduler, cfg Config) (*Loop, error) {
	if s == nil {
		return nil, tferrors.NewValidationError("loop", "scheduler", nil, "cannot be nil")
	}

	interval := cfg.TickInterval
	if interval == 0 {
		interval = 50 * time.Millisecond
	}
	if err := validation.ValidatePositiveDuration("loop", "tick_interval", interval); err != nil {
		return nil, err
	}

	queueSize := cfg.QueueSize
	if queueSize == 0 {
		queueSize = 64
	}
	if err := validation.ValidatePositive("loop", "queue_size", queueSize); err != nil {
		return nil, err
	}

	l := &Loop{
		sched:    s,
		interval: interval,
		logger:   logging.OrDiscard(cfg.Logger).With("scheduler", s.Name()),
		onError:  cfg.OnError,
		posts:    make(chan func(*scheduler.Scheduler), queueSize),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	if cfg.Metrics != nil {
		l.overruns = cfg.Metrics.LoopTickOverruns.WithLabelValues(s.Name())
	}
	return l, nil
}

// Interval returns the tick interval.
func (l *Loop) Interval() time.Duration {
	return l.interval
}

// Start runs the loop on a new goroutine.
func (l *Loop) Start() error {
	if err := l.begin(); err != nil {
		return err
	}
	go func() {
		_ = l.run(context.Background())
	}()
	return nil
}

// Run runs the loop on the calling goroutine until ctx is done or Stop is
// called. It returns ctx.Err() when stopped by the context and nil otherwise.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.begin(); err != nil {
		return err
	}
	return l.run(ctx)
}

// Stop ends the loop. The returned channel is closed once the loop goroutine
// has run the remaining posted functions and cleared the scheduler. Stopping
// a loop that never started discards its queue. A loop cannot be restarted
// after Stop.
func (l *Loop) Stop() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case running:
		l.state = closed
		close(l.done)
	case idle:
		l.state = closed
		close(l.done)
		close(l.exited)
	}
	return l.exited
}

// Post queues fn to run on the loop goroutine. It does not wait for fn to
// run. Post returns ErrClosed after Stop and ErrCapacityExceeded when the
// queue is full.
func (l *Loop) Post(fn func(*scheduler.Scheduler)) error {
	if fn == nil {
		return tferrors.NewValidationError("loop", "fn", nil, "cannot be nil")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == closed {
		return tferrors.ErrClosed
	}
	select {
	case l.posts <- fn:
		return nil
	default:
		return tferrors.NewOperationError("loop", "Post", tferrors.ErrCapacityExceeded).
			WithContext(fmt.Sprintf("queue holds %d functions", cap(l.posts)))
	}
}

// Do posts fn and waits until it has run or ctx is done.
func (l *Loop) Do(ctx context.Context, fn func(*scheduler.Scheduler)) error {
	if fn == nil {
		return tferrors.NewValidationError("loop", "fn", nil, "cannot be nil")
	}
	ran := make(chan struct{})
	if err := l.Post(func(s *scheduler.Scheduler) {
		defer close(ran)
		fn(s)
	}); err != nil {
		return err
	}

	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case running:
		return ErrRunning
	case closed:
		return tferrors.ErrClosed
	}
	l.state = running
	return nil
}

func (l *Loop) run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer func() {
		ticker.Stop()
		l.shutdown()
	}()

	l.logger.Debug("loop started", "interval", l.interval)
	for {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			if l.state == running {
				l.state = closed
				close(l.done)
			}
			l.mu.Unlock()
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.posts:
			l.call(fn)
		case <-ticker.C:
			l.tick()
		}
	}
}

func (l *Loop) tick() {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			l.report(fmt.Errorf("%w: %v", tferrors.ErrRoutinePanicked, r))
		}
	}()

	if err := l.sched.Tick(); err != nil {
		l.report(err)
	}

	if elapsed := time.Since(start); elapsed > l.interval {
		l.logger.Warn("tick overran interval", "elapsed", elapsed, "interval", l.interval)
		if l.overruns != nil {
			l.overruns.Inc()
		}
	}
}

func (l *Loop) call(fn func(*scheduler.Scheduler)) {
	defer func() {
		if r := recover(); r != nil {
			l.report(fmt.Errorf("posted function panicked: %v", r))
		}
	}()
	fn(l.sched)
}

func (l *Loop) report(err error) {
	l.logger.Error("loop error", "error", err)
	if l.onError != nil {
		l.onError(err)
	}
}

// shutdown runs the functions still queued, releases every routine and
// signals Stop callers.
func (l *Loop) shutdown() {
	for drained := false; !drained; {
		select {
		case fn := <-l.posts:
			l.call(fn)
		default:
			drained = true
		}
	}
	n := l.sched.Len()
	l.sched.Clear()
	l.logger.Debug("loop stopped", "routines_released", n, "ticks", l.sched.Ticks())
	close(l.exited)
}
