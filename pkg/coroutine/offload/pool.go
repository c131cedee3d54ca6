package offload

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vnykmshr/tickflow/internal/logging"
	"github.com/vnykmshr/tickflow/pkg/common/validation"
	"github.com/vnykmshr/tickflow/pkg/metrics"
)

// Task represents a unit of blocking work run by a worker.
type Task interface {
	// Execute runs the task. It should return promptly once ctx is done.
	Execute(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Config holds configuration options for creating a pool.
type Config struct {
	// WorkerCount is the number of workers (default: 4).
	WorkerCount int

	// QueueSize is the maximum number of tasks waiting for a worker
	// (default: 100). Submit never blocks; a full queue rejects the task.
	QueueSize int

	// TaskTimeout bounds each task's execution. Zero means no timeout. Tasks ended
	// by it fail with an error wrapping ErrTimeout.
	TaskTimeout time.Duration

	// Name labels log records and metrics (default: "default").
	Name string

	// Logger receives task failures. Nil discards.
	Logger *slog.Logger

	// Metrics enables Prometheus instrumentation when non-nil.
	Metrics *metrics.Registry
}

// Pool runs tasks on a fixed set of worker goroutines so that routines can
// wait for blocking work without blocking the goroutine that ticks them.
type Pool struct {
	config Config
	logger *slog.Logger
	obs    observer

	taskQueue    chan job
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	stopped      chan struct{}

	mu         sync.RWMutex
	isShutdown bool

	workerWg sync.WaitGroup
}

type job struct {
	ctx      context.Context
	task     Task
	enqueued time.Time
}

// New creates a pool with the given number of workers and queue size.
func New(workerCount, queueSize int) (*Pool, error) {
	return NewWithConfig(Config{
		WorkerCount: workerCount,
		QueueSize:   queueSize,
	})
}

// NewWithConfig creates a pool with custom configuration and starts its
// workers.
func NewWithConfig(cfg Config) (*Pool, error) {
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 4
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 100
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if err := validation.ValidatePositive("offload", "workers", cfg.WorkerCount); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositive("offload", "queue_size", cfg.QueueSize); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegative("offload", "task_timeout", cfg.TaskTimeout); err != nil {
		return nil, err
	}

	var obs observer = noopObserver{}
	if cfg.Metrics != nil {
		obs = newMetricsObserver(cfg.Metrics, cfg.Name)
	}

	p := &Pool{
		config:     cfg,
		logger:     logging.OrDiscard(cfg.Logger).With("pool", cfg.Name),
		obs:        obs,
		taskQueue:  make(chan job, cfg.QueueSize),
		shutdownCh: make(chan struct{}),
		stopped:    make(chan struct{}),
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		p.workerWg.Add(1)
		go p.work(i)
	}
	return p, nil
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return p.config.WorkerCount
}

// QueueSize returns the current number of queued tasks waiting for execution.
func (p *Pool) QueueSize() int {
	return len(p.taskQueue)
}

// Name returns the pool's name.
func (p *Pool) Name() string {
	return p.config.Name
}
