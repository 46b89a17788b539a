package metrics

import (
	"math"
	"time"
)

// RunInfo identifies one run and carries the scheduler's worker totals.
type RunInfo struct {
	RunID     string
	Target    string
	Start     time.Time
	End       time.Time
	Launched  int64
	Completed int64
	Failed    int64
}

// Report is the final result of a run.
type Report struct {
	RunID            string           `json:"run_id" yaml:"run_id"`
	Target           string           `json:"target" yaml:"target"`
	Start            time.Time        `json:"start" yaml:"start"`
	End              time.Time        `json:"end" yaml:"end"`
	Elapsed          time.Duration    `json:"-" yaml:"-"`
	ElapsedSeconds   float64          `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	Counters         CounterSnapshot  `json:"counters" yaml:"counters"`
	WorkersLaunched  int64            `json:"workers_launched" yaml:"workers_launched"`
	WorkersCompleted int64            `json:"workers_completed" yaml:"workers_completed"`
	WorkersFailed    int64            `json:"workers_failed" yaml:"workers_failed"`
	RequestsPerSec   int64            `json:"requests_per_sec" yaml:"requests_per_sec"`
	ResetDelay       LatencySummary   `json:"reset_delay" yaml:"reset_delay"`
	WorkerDuration   LatencySummary   `json:"worker_duration" yaml:"worker_duration"`
	BytesSent        int64            `json:"bytes_sent" yaml:"bytes_sent"`
	BytesReceived    int64            `json:"bytes_received" yaml:"bytes_received"`
	Errors           map[string]int64 `json:"errors,omitempty" yaml:"errors,omitempty"`
	PeerCodes        []PeerCode       `json:"peer_codes,omitempty" yaml:"peer_codes,omitempty"`
}

// RequestsPerSecond returns headers/elapsed rounded to the nearest integer,
// or 0 when either is not positive.
func RequestsPerSecond(headers int64, elapsed time.Duration) int64 {
	if headers <= 0 || elapsed <= 0 {
		return 0
	}
	return int64(math.Round(float64(headers) / elapsed.Seconds()))
}

// BuildReport assembles the final report. collector may be nil.
func BuildReport(info RunInfo, counters CounterSnapshot, collector *Collector) Report {
	elapsed := info.End.Sub(info.Start)
	if elapsed < 0 {
		elapsed = 0
	}
	r := Report{
		RunID:            info.RunID,
		Target:           info.Target,
		Start:            info.Start,
		End:              info.End,
		Elapsed:          elapsed,
		ElapsedSeconds:   elapsed.Seconds(),
		Counters:         counters,
		WorkersLaunched:  info.Launched,
		WorkersCompleted: info.Completed,
		WorkersFailed:    info.Failed,
		RequestsPerSec:   RequestsPerSecond(counters.HeadersSent, elapsed),
	}
	if collector != nil {
		s := collector.Summary()
		r.ResetDelay = s.ResetDelay
		r.WorkerDuration = s.WorkerDuration
		r.BytesSent = s.BytesSent
		r.BytesReceived = s.BytesReceived
		r.Errors = s.Errors
		r.PeerCodes = s.PeerCodes
	}
	return r
}
