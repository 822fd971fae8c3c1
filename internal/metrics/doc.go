// Package metrics collects worker pool job statistics.
//
// Metrics counts submitted, completed and panicked jobs, tracks how many
// jobs are executing right now (and the peak), and keeps a bounded sample
// of job durations for average and P99 latency. The same figures are
// exported as Prometheus collectors on a private registry.
//
// # Basic Usage
//
//	m := metrics.New()
//
//	m.RecordSubmit()
//	m.RecordStart()
//	start := time.Now()
//	// ... run the job ...
//	m.RecordSuccess(time.Since(start))
//
//	snap := m.Snapshot()
//	fmt.Printf("done: %d, p99: %v\n", snap.Completed, snap.P99Latency)
//
//	http.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
//
// # Thread Safety
//
// All operations use atomic counters or a mutex and are safe for concurrent access.
package metrics
