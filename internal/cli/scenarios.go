package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/vnykmshr/tickflow/internal/config"
	"github.com/vnykmshr/tickflow/pkg/coroutine/condition"
	"github.com/vnykmshr/tickflow/pkg/coroutine/offload"
	"github.com/vnykmshr/tickflow/pkg/coroutine/remote"
	"github.com/vnykmshr/tickflow/pkg/coroutine/routine"
	"github.com/vnykmshr/tickflow/pkg/coroutine/scheduler"
)

// demoEnv is what scenarios share. Routine bodies run on the loop goroutine,
// so they may use sched directly.
type demoEnv struct {
	out   io.Writer
	mu    sync.Mutex
	sched *scheduler.Scheduler
	pool  *offload.Pool
	rdb   remote.Client
	redis config.RedisConfig
}

func (e *demoEnv) printf(scenario, format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintf(e.out, "[%s] %s\n", scenario, fmt.Sprintf(format, args...))
}

// scenario builds the root routine of a demo.
type scenario func(env *demoEnv) routine.Body

var scenarios = map[string]scenario{
	"predicate": predicateScenario,
	"delay":     delayScenario,
	"cron":      cronScenario,
	"offload":   offloadScenario,
	"redis":     redisScenario,
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// predicateScenario waits for a value raised by a second routine to pass
// two thresholds.
func predicateScenario(env *demoEnv) routine.Body {
	return func(yield func(condition.Condition) bool) {
		value := 5
		_, err := env.sched.Start(func(yield func(condition.Condition) bool) {
			for value <= 20 && yield(nil) {
				value++
			}
		})
		if err != nil {
			env.printf("predicate", "cannot start counter: %v", err)
			return
		}

		env.printf("predicate", "start, value=%d", value)
		if !yield(condition.Until(func() bool { return value > 10 })) {
			return
		}
		env.printf("predicate", "continue, value=%d", value)
		if !yield(condition.Until(func() bool { return value > 20 })) {
			return
		}
		env.printf("predicate", "end, value=%d", value)
	}
}

// delayScenario reports progress while waiting for a fixed delay.
func delayScenario(env *demoEnv) routine.Body {
	return func(yield func(condition.Condition) bool) {
		const wait = 2 * time.Second
		step := time.Duration(0)
		progress := func(elapsed time.Duration) {
			if elapsed >= step {
				env.printf("delay", "%v of %v elapsed", elapsed.Truncate(100*time.Millisecond), wait)
				step += 500 * time.Millisecond
			}
		}

		env.printf("delay", "waiting %v", wait)
		if !yield(condition.DelayWithCallback(wait, progress, condition.RunOnEnd)) {
			return
		}
		env.printf("delay", "done")
	}
}

// cronScenario waits for the next activation of a cron expression.
func cronScenario(env *demoEnv) routine.Body {
	return func(yield func(condition.Condition) bool) {
		c, err := condition.Cron("*/5 * * * * *")
		if err != nil {
			env.printf("cron", "invalid expression: %v", err)
			return
		}
		env.printf("cron", "next activation at %s", c.At().Format(time.TimeOnly))
		if !yield(c) {
			return
		}
		env.printf("cron", "fired at %s", time.Now().Format(time.TimeOnly))
	}
}

// offloadScenario runs blocking work on the pool and waits for it with a
// timeout.
func offloadScenario(env *demoEnv) routine.Body {
	return func(yield func(condition.Condition) bool) {
		f, err := offload.Go(env.pool, func(ctx context.Context) (int, error) {
			select {
			case <-time.After(300 * time.Millisecond):
				return 42, nil
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		})
		if err != nil {
			env.printf("offload", "submit failed: %v", err)
			return
		}

		env.printf("offload", "work submitted")
		wait := condition.Any(f, condition.Delay(2*time.Second))
		if !yield(wait) {
			return
		}
		if condition.Winner(wait) != 0 {
			env.printf("offload", "timed out")
			return
		}
		v, err := f.Value()
		env.printf("offload", "result=%d err=%v", v, err)
	}
}

// redisScenario signals a key from one routine and waits for it in
// another, then takes and releases a lock.
func redisScenario(env *demoEnv) routine.Body {
	return func(yield func(condition.Condition) bool) {
		if env.rdb == nil {
			env.printf("redis", "redis.addr not configured, skipping")
			return
		}
		key := env.redis.Key
		opts := []remote.Option{
			remote.WithTimeout(env.redis.PollTimeout),
			remote.WithPollInterval(env.redis.PollInterval),
		}

		ctx, cancel := context.WithTimeout(context.Background(), env.redis.PollTimeout)
		_ = remote.Reset(ctx, env.rdb, key)
		cancel()

		_, err := env.sched.Start(func(yield func(condition.Condition) bool) {
			if !yield(condition.Delay(time.Second)) {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), env.redis.PollTimeout)
			defer cancel()
			if err := remote.Signal(ctx, env.rdb, key, time.Minute); err != nil {
				env.printf("redis", "signal failed: %v", err)
				return
			}
			env.printf("redis", "signaled %s", key)
		})
		if err != nil {
			env.printf("redis", "cannot start signaler: %v", err)
			return
		}

		env.printf("redis", "waiting for %s", key)
		wait := remote.KeyExists(env.rdb, key, opts...)
		if !yield(condition.Any(wait, condition.Delay(10*time.Second))) {
			return
		}
		if !wait.IsFinished() {
			env.printf("redis", "gave up waiting, last error: %v", wait.Err())
			return
		}
		env.printf("redis", "key seen after %d polls", wait.Polls())

		lock := remote.Acquire(env.rdb, key+":lock", env.sched.Name(), 10*time.Second, opts...)
		if !yield(condition.Any(lock, condition.Delay(5*time.Second))) {
			return
		}
		if !lock.IsFinished() {
			env.printf("redis", "lock not acquired")
			return
		}
		env.printf("redis", "lock acquired")

		ctx, cancel = context.WithTimeout(context.Background(), env.redis.PollTimeout)
		defer cancel()
		if err := lock.Release(ctx); err != nil {
			env.printf("redis", "release failed: %v", err)
		}
		_ = remote.Reset(ctx, env.rdb, key)
	}
}
