// Package worker provides a fixed-size goroutine pool for one-shot jobs.
//
// A Pool owns a fixed set of Workers and an unbounded FIFO of messages.
// Run appends a job message and returns at once; exactly one idle worker
// takes each message, runs the job to completion and goes back to
// waiting. Close appends one terminate message per worker after any jobs
// already queued, then joins every worker in id order, so all work
// submitted before Close has run by the time Close returns.
//
// # Basic Usage
//
//	pool := worker.NewPool(4) // 4 workers
//	defer pool.Close()
//
//	for i := 0; i < 100; i++ {
//	    pool.Run(func() {
//	        // do work
//	    })
//	}
//
// # Configuration
//
// Use NewPoolWithConfig to attach metrics or a lifecycle event bus:
//
//	pool := worker.NewPoolWithConfig(worker.PoolConfig{
//	    NumWorkers: 8,
//	    Metrics:    metrics.New(),
//	    Events:     events.NewBus(),
//	})
//
// # Contract
//
// NewPool panics with ErrInvalidSize when asked for fewer than one worker.
// Run panics with ErrPoolClosed once Close has begun, and with ErrNilJob
// for a nil job. These are caller bugs, not runtime conditions.
//
// Close must be called: there is no finalizer, and a pool that is dropped
// without Close keeps its workers blocked forever.
//
// A job that panics is recovered by its worker, logged, counted and
// reported as an EventJobPanicked event; the worker then keeps serving.
// Calling Close from inside a job deadlocks.
package worker
