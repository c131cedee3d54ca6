// Package loop drives a scheduler.Scheduler at a fixed cadence.
//
// The scheduler itself never blocks and owns no goroutines; a host calls Tick
// once per frame. Loop is that host for programs without a frame loop of
// their own:
//
//	s := scheduler.New()
//	l, err := loop.New(s, loop.Config{TickInterval: 16 * time.Millisecond})
//	if err != nil {
//		return err
//	}
//	if err := l.Start(); err != nil {
//		return err
//	}
//	defer func() { <-l.Stop() }()
//
//	_ = l.Do(ctx, func(s *scheduler.Scheduler) {
//		s.Start(myRoutine)
//	})
//
// All scheduler access happens on the loop goroutine. Functions passed to
// Post and Do are run there between ticks, in the order they were posted.
// Stop runs whatever is still queued, then clears the scheduler so that
// suspended routines unwind.
package loop
