package offload

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	tferrors "github.com/vnykmshr/tickflow/pkg/common/errors"
	"github.com/vnykmshr/tickflow/pkg/common/validation"
)

// Submit queues task for execution with context.Background().
func (p *Pool) Submit(task Task) error {
	return p.SubmitWithContext(context.Background(), task)
}

// SubmitWithContext queues task for execution. ctx is passed to the task; if
// the pool has a TaskTimeout, the effective deadline is the earlier of the
// two. SubmitWithContext never blocks: it returns ErrClosed after Shutdown
// and ErrCapacityExceeded when the queue is full.
func (p *Pool) SubmitWithContext(ctx context.Context, task Task) error {
	if err := validation.ValidateNotNil("offload", "task", task); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.isShutdown {
		p.obs.rejected()
		return tferrors.NewOperationError("offload", "Submit", tferrors.ErrClosed)
	}

	select {
	case p.taskQueue <- job{ctx: ctx, task: task, enqueued: time.Now()}:
		p.obs.submitted()
		p.obs.queued(len(p.taskQueue))
		return nil
	default:
		p.obs.rejected()
		return tferrors.NewOperationError("offload", "Submit", tferrors.ErrCapacityExceeded).
			WithContext(fmt.Sprintf("queue holds %d tasks", cap(p.taskQueue)))
	}
}

// Shutdown stops accepting tasks and lets the workers finish every task
// already queued. The returned channel closes once all workers have exited.
func (p *Pool) Shutdown() <-chan struct{} {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.isShutdown = true
		p.mu.Unlock()

		close(p.shutdownCh)

		go func() {
			p.workerWg.Wait()
			p.logger.Debug("pool stopped")
			close(p.stopped)
		}()
	})
	return p.stopped
}

// work is the main loop for a worker. After shutdown it drains the queue
// before returning, so every accepted task runs.
func (p *Pool) work(id int) {
	defer p.workerWg.Done()

	for {
		select {
		case j := <-p.taskQueue:
			p.execute(id, j)
		case <-p.shutdownCh:
			for {
				select {
				case j := <-p.taskQueue:
					p.execute(id, j)
				default:
					return
				}
			}
		}
	}
}

// execute runs a single task, converting panics into errors.
func (p *Pool) execute(workerID int, j job) {
	p.obs.queued(len(p.taskQueue))
	start := time.Now()
	var err error

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v\nStack trace:\n%s", r, debug.Stack())
		}
		p.obs.finished(time.Since(start), err)
		if err != nil {
			p.logger.Warn("task failed", "worker", workerID, "error", err, "waited", start.Sub(j.enqueued))
		}
	}()

	ctx := j.ctx
	if p.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.TaskTimeout)
		defer cancel()
	}

	err = timedOut(ctx, j.task.Execute(ctx))
}

// timedOut marks err as a timeout when the deadline of ctx ended the task.
func timedOut(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, tferrors.ErrTimeout) {
		return err
	}
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}
	return tferrors.NewOperationError("offload", "execute", fmt.Errorf("%w: %w", tferrors.ErrTimeout, err))
}
