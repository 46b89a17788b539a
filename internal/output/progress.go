package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/rapidreset/internal/metrics"
)

// ProgressReporter prints a one-line status while the run is in flight.
type ProgressReporter struct {
	counters *metrics.Counters
	total    int
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
	start    time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(counters *metrics.Counters, total int, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		counters: counters,
		total:    total,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
		start:    time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and ends the status line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, p.line(time.Since(p.start)))
		case <-p.done:
			return
		}
	}
}

func (p *ProgressReporter) line(elapsed time.Duration) string {
	s := p.counters.Snapshot()
	return fmt.Sprintf("\rHEADERS: %d/%d | RST_STREAM: %d | Received: %d | GOAWAY: %d | RPS: %d",
		s.HeadersSent, p.total, s.ResetsSent, s.FramesReceived, s.GoAwaysReceived,
		metrics.RequestsPerSecond(s.HeadersSent, elapsed))
}
