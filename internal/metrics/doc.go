// Package metrics aggregates what an attack run did.
//
// [Counters] hold the frame accounting every worker updates with atomic
// increments; the dashboard and progress line read them live and the driver
// reads one [CounterSnapshot] after all workers are done.
//
//	counters := metrics.NewCounters()
//	counters.AddHeadersSent()
//	counters.AddResetsSent()
//	snap := counters.Snapshot()
//
// [Collector] keeps the heavier per-worker observations (reset delay and
// worker lifetime histograms, error kinds, error codes sent by the peer) behind
// a mutex.
//
// [BuildReport] combines both into the final [Report]:
//
//	report := metrics.BuildReport(metrics.RunInfo{
//		RunID:    id,
//		Target:   "https://localhost:8000",
//		Start:    start,
//		End:      end,
//		Launched: 100,
//	}, counters.Snapshot(), collector)
//
// Requests per second is headers sent divided by elapsed seconds, rounded to
// the nearest integer, and zero when nothing was sent or no time elapsed.
package metrics
