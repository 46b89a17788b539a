package metrics

import "sync/atomic"

// Counters is the shared frame accounting for one run. All methods are safe
// for concurrent use.
type Counters struct {
	headersSent     atomic.Int64
	resetsSent      atomic.Int64
	eventsReceived  atomic.Int64
	framesReceived  atomic.Int64
	resetsReceived  atomic.Int64
	goAwaysReceived atomic.Int64
	connections     atomic.Int64
}

func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) AddHeadersSent()     { c.headersSent.Add(1) }
func (c *Counters) AddResetsSent()      { c.resetsSent.Add(1) }
func (c *Counters) AddEventsReceived()  { c.eventsReceived.Add(1) }
func (c *Counters) AddFramesReceived()  { c.framesReceived.Add(1) }
func (c *Counters) AddResetsReceived()  { c.resetsReceived.Add(1) }
func (c *Counters) AddGoAwaysReceived() { c.goAwaysReceived.Add(1) }
func (c *Counters) AddConnection()      { c.connections.Add(1) }

// CounterSnapshot is a copy of Counters at one instant.
type CounterSnapshot struct {
	HeadersSent     int64 `json:"headers_sent" yaml:"headers_sent"`
	ResetsSent      int64 `json:"resets_sent" yaml:"resets_sent"`
	EventsReceived  int64 `json:"responses_received" yaml:"responses_received"`
	FramesReceived  int64 `json:"frames_received" yaml:"frames_received"`
	ResetsReceived  int64 `json:"resets_received" yaml:"resets_received"`
	GoAwaysReceived int64 `json:"goaways_received" yaml:"goaways_received"`
	Connections     int64 `json:"connections" yaml:"connections"`
}

// Snapshot loads every counter. Once all writers have finished the result is
// exact; while they run each field is individually current.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		HeadersSent:     c.headersSent.Load(),
		ResetsSent:      c.resetsSent.Load(),
		EventsReceived:  c.eventsReceived.Load(),
		FramesReceived:  c.framesReceived.Load(),
		ResetsReceived:  c.resetsReceived.Load(),
		GoAwaysReceived: c.goAwaysReceived.Load(),
		Connections:     c.connections.Load(),
	}
}
