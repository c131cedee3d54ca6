// Package remote provides conditions backed by Redis, letting routines in
// different processes coordinate through shared keys.
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//
//	s.Start(func(yield func(condition.Condition) bool) {
//		if !yield(remote.KeyExists(rdb, "jobs:ready")) {
//			return
//		}
//		lock := remote.Acquire(rdb, "jobs:lock", workerID, 30*time.Second)
//		if !yield(lock) {
//			return
//		}
//		defer lock.Release(context.Background())
//		...
//	})
//
// Each poll is a synchronous round trip bounded by WithTimeout and
// throttled by WithPollInterval, so a condition costs at most one short
// Redis call per interval on the ticking goroutine.
package remote
