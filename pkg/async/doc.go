// Package async provides panic-safe concurrency primitives used by the checker.
//
// # Overview
//
// Goroutines started by modcheck never crash the process: panics are recovered,
// logged with their stack through logrus and, where a caller is waiting, turned
// into a *PanicError.
//
// # Key Functions
//
// Recover: run a function inline and convert a panic into an error
//
//	err := async.Recover("evaluate :app", func() error {
//		return engine.Evaluate(ctx, m)
//	})
//
// SafeGo: fire-and-forget goroutine with timeout and panic recovery
//
//	async.SafeGo(ctx, time.Minute, "publish report", func(ctx context.Context) error {
//		return publisher.Publish(ctx, outcome)
//	})
//
// WorkerPool: fixed pool of workers draining a task channel
//
//	pool := async.NewWorkerPool(ctx, 4, "parse sources", 30*time.Second)
//	defer pool.Shutdown(5 * time.Second)
//
// Batch: run fn for every item on a temporary pool and collect the errors
//
//	errs := async.Batch(ctx, files, 8, "parse sources", 30*time.Second, parseFile)
//
// # Related Packages
//
//   - pkg/queue: wraps every module task in Recover
//   - pkg/source: parses source files with Batch
//   - pkg/api: starts triggered runs with SafeGoNoError
package async
