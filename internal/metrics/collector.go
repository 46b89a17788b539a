package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector records per-worker observations in a thread-safe manner.
type Collector struct {
	mu            sync.Mutex
	resetDelay    *durationHistogram
	lifetime      *durationHistogram
	completed     int64
	failed        int64
	errorsByKind  map[string]int64
	peerCodes     map[string]map[string]int
	bytesSent     int64
	bytesReceived int64
}

// durationHistogram wraps an hdr histogram with exact min/max/sum tracking.
type durationHistogram struct {
	hist *hdrhistogram.Histogram
	min  time.Duration
	max  time.Duration
	sum  time.Duration
	n    int64
}

func newDurationHistogram() *durationHistogram {
	// Track from 1µs up to 10 minutes with 3 significant figures.
	return &durationHistogram{hist: hdrhistogram.New(1, 600_000_000, 3)}
}

func (h *durationHistogram) record(d time.Duration) {
	us := d.Microseconds()
	if us < h.hist.LowestTrackableValue() {
		us = h.hist.LowestTrackableValue()
	}
	if us > h.hist.HighestTrackableValue() {
		us = h.hist.HighestTrackableValue()
	}
	_ = h.hist.RecordValue(us)

	if h.n == 0 || d < h.min {
		h.min = d
	}
	if d > h.max {
		h.max = d
	}
	h.sum += d
	h.n++
}

func (h *durationHistogram) summary() LatencySummary {
	if h.n == 0 {
		return LatencySummary{}
	}
	quantile := func(q float64) float64 {
		return toMs(time.Duration(h.hist.ValueAtQuantile(q)) * time.Microsecond)
	}
	return LatencySummary{
		Count:  h.n,
		MinMs:  toMs(h.min),
		MeanMs: toMs(time.Duration(int64(h.sum) / h.n)),
		P50Ms:  quantile(50),
		P90Ms:  quantile(90),
		P99Ms:  quantile(99),
		MaxMs:  toMs(h.max),
	}
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// LatencySummary describes one duration distribution in milliseconds.
type LatencySummary struct {
	Count  int64   `json:"count" yaml:"count"`
	MinMs  float64 `json:"min_ms" yaml:"min_ms"`
	MeanMs float64 `json:"mean_ms" yaml:"mean_ms"`
	P50Ms  float64 `json:"p50_ms" yaml:"p50_ms"`
	P90Ms  float64 `json:"p90_ms" yaml:"p90_ms"`
	P99Ms  float64 `json:"p99_ms" yaml:"p99_ms"`
	MaxMs  float64 `json:"max_ms" yaml:"max_ms"`
}

func NewCollector() *Collector {
	return &Collector{
		resetDelay:   newDurationHistogram(),
		lifetime:     newDurationHistogram(),
		errorsByKind: make(map[string]int64),
		peerCodes:    make(map[string]map[string]int),
	}
}

// RecordResetDelay records the measured gap between a worker's HEADERS and
// RST_STREAM writes.
func (c *Collector) RecordResetDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetDelay.record(d)
}

// RecordWorker records how long one worker ran and how it ended.
func (c *Collector) RecordWorker(lifetime time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lifetime.record(lifetime)
	if err == nil {
		c.completed++
		return
	}
	c.failed++
	c.errorsByKind[ErrorKind(err)]++
}

// RecordPeerCode counts an error code received from the server on an
// RST_STREAM or GOAWAY frame.
func (c *Collector) RecordPeerCode(frame, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	codes, ok := c.peerCodes[frame]
	if !ok {
		codes = make(map[string]int)
		c.peerCodes[frame] = codes
	}
	codes[code]++
}

// RecordBytes adds one connection's wire totals.
func (c *Collector) RecordBytes(sent, received int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bytesSent += sent
	c.bytesReceived += received
}

// Summary is the collector's aggregated view.
type Summary struct {
	Succeeded      int64
	Failed         int64
	ResetDelay     LatencySummary
	WorkerDuration LatencySummary
	Errors         map[string]int64
	PeerCodes      []PeerCode
	BytesSent      int64
	BytesReceived  int64
}

// Summary computes the current aggregate.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{
		Succeeded:      c.completed,
		Failed:         c.failed,
		ResetDelay:     c.resetDelay.summary(),
		WorkerDuration: c.lifetime.summary(),
		PeerCodes:      FlattenPeerCodes(c.peerCodes),
		BytesSent:      c.bytesSent,
		BytesReceived:  c.bytesReceived,
	}
	if len(c.errorsByKind) > 0 {
		s.Errors = make(map[string]int64, len(c.errorsByKind))
		for k, v := range c.errorsByKind {
			s.Errors[k] = v
		}
	}
	return s
}
