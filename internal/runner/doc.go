// Package runner launches a fixed number of one-shot workers.
//
// Each worker runs once in its own goroutine. The runner supports:
//   - A concurrency ceiling on launched-but-not-finished workers
//   - A minimum interval between successive launches
//   - Cancellation: launching stops, already running workers are awaited
//
// # Basic Usage
//
//	r := runner.New(runner.Options{
//		Total:          1000,
//		Concurrency:    50,
//		LaunchInterval: 2 * time.Millisecond,
//		Factory: func(seq int) runner.Worker {
//			return newWorker(seq)
//		},
//	})
//	result := r.Run(ctx)
//
// Run returns only after every launched worker has returned; that return is
// the barrier callers measure against.
//
// # Worker Interface
//
//	type Worker interface {
//		Run(ctx context.Context) error
//	}
//
// A non-nil error marks the worker as failed. It is counted and never stops
// the run.
//
// # Decorators
//
// [WithRetry] re-runs a worker according to a [RetryPolicy]; [WithLogging]
// reports failures to a [FailureLogger].
package runner
