// Package offload runs blocking work on a worker pool on behalf of
// cooperative routines.
//
// Routine bodies run on the goroutine that ticks their scheduler and must not
// block. Go hands a function to the pool and returns a Future, which is a
// condition: the routine yields it and is resumed once the work is done.
//
//	pool, _ := offload.New(4, 64)
//	defer func() { <-pool.Shutdown() }()
//
//	s.Start(func(yield func(condition.Condition) bool) {
//		f, err := offload.Go(pool, func(ctx context.Context) ([]byte, error) {
//			return fetch(ctx, url)
//		})
//		if err != nil {
//			return
//		}
//		if !yield(f) {
//			return
//		}
//		body, err := f.Value()
//		...
//	})
//
// Submit never blocks. A full queue rejects work with ErrCapacityExceeded
// and a shut down pool with ErrClosed, both from package errors. Shutdown
// lets every accepted task finish, so every Future from an accepted Go call
// resolves.
package offload
