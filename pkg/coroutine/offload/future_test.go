package offload

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vnykmshr/tickflow/internal/testutil"
	tferrors "github.com/vnykmshr/tickflow/pkg/common/errors"
	"github.com/vnykmshr/tickflow/pkg/coroutine/condition"
	"github.com/vnykmshr/tickflow/pkg/coroutine/scheduler"
)

func TestFuture_Value(t *testing.T) {
	p := newTestPool(t, 1, 1)
	defer func() { <-p.Shutdown() }()

	release := make(chan struct{})
	f, err := Go(p, func(context.Context) (string, error) {
		<-release
		return "done", nil
	})
	testutil.AssertNoError(t, err)

	if f.IsSatisfied() || f.IsFinished() {
		t.Fatal("future should be pending")
	}
	if _, err := f.Value(); !errors.Is(err, ErrPending) {
		t.Errorf("Value() before completion = %v, want ErrPending", err)
	}

	close(release)
	<-f.Done()

	if !f.IsSatisfied() || !f.IsFinished() {
		t.Fatal("future should be satisfied once the work is done")
	}
	v, err := f.Value()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v, "done")
}

func TestFuture_Error(t *testing.T) {
	p := newTestPool(t, 1, 1)
	defer func() { <-p.Shutdown() }()

	want := errors.New("lookup failed")
	f, err := Go(p, func(context.Context) (int, error) { return 0, want })
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	if _, err := f.Wait(ctx); !errors.Is(err, want) {
		t.Errorf("Wait() = %v, want %v", err, want)
	}
}

func TestFuture_Panic(t *testing.T) {
	p := newTestPool(t, 1, 1)
	defer func() { <-p.Shutdown() }()

	f, err := Go(p, func(context.Context) (int, error) { panic("kaboom") })
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	_, err = f.Wait(ctx)
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Errorf("Wait() = %v, want panic error", err)
	}
}

func TestFuture_NilFn(t *testing.T) {
	p := newTestPool(t, 1, 1)
	defer func() { <-p.Shutdown() }()

	if _, err := Go[int](p, nil); !tferrors.IsValidationError(err) {
		t.Errorf("Go(nil) = %v, want validation error", err)
	}
}

func TestFuture_WaitCanceled(t *testing.T) {
	p := newTestPool(t, 1, 1)

	release := make(chan struct{})
	f, err := Go(p, func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	testutil.AssertNoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() = %v, want context.Canceled", err)
	}

	close(release)
	<-p.Shutdown()
}

func TestFuture_ResumesRoutine(t *testing.T) {
	p := newTestPool(t, 2, 4)
	defer func() { <-p.Shutdown() }()

	s := scheduler.New()
	defer s.Clear()

	release := make(chan struct{})
	var got int
	e, err := s.Start(func(yield func(condition.Condition) bool) {
		f, err := Go(p, func(context.Context) (int, error) {
			<-release
			return 42, nil
		})
		if err != nil {
			t.Errorf("Go: %v", err)
			return
		}
		if !yield(f) {
			return
		}
		got, _ = f.Value()
	})
	testutil.AssertNoError(t, err)

	testutil.TickN(t, s, 3)
	testutil.AssertEqual(t, e.Resumes(), 1)

	close(release)
	testutil.Eventually(t, func() bool {
		_ = s.Tick()
		return e.Done()
	}, time.Second, time.Millisecond)
	testutil.AssertEqual(t, got, 42)
}
