package attack_test

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/torosent/rapidreset/internal/attack"
	"github.com/torosent/rapidreset/internal/clientmetrics"
	"github.com/torosent/rapidreset/internal/h2session"
)

// fakeSession replays scripted events and records what the worker wrote.
type fakeSession struct {
	headersErr error
	resetErr   error
	initErr    error
	events     []h2session.Event

	mu        sync.Mutex
	fields    []hpack.HeaderField
	headersAt time.Time
	resetAt   time.Time
	resetCode http2.ErrCode
	nextID    uint32
	pos       int

	closed    chan struct{}
	closeOnce sync.Once
	onClose   func()
}

func newFakeSession(events ...h2session.Event) *fakeSession {
	return &fakeSession{events: events, nextID: 1, closed: make(chan struct{})}
}

func (f *fakeSession) Initiate() error { return f.initErr }

func (f *fakeSession) NextStreamID() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID += 2
	return id
}

func (f *fakeSession) SendHeaders(_ uint32, fields []hpack.HeaderField, _ bool) error {
	if f.headersErr != nil {
		return f.headersErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields = append([]hpack.HeaderField(nil), fields...)
	f.headersAt = time.Now()
	return nil
}

func (f *fakeSession) ResetStream(_ uint32, code http2.ErrCode) error {
	if f.resetErr != nil {
		return f.resetErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetAt = time.Now()
	f.resetCode = code
	return nil
}

func (f *fakeSession) NextEvent() (h2session.Event, error) {
	f.mu.Lock()
	if f.pos < len(f.events) {
		ev := f.events[f.pos]
		f.pos++
		f.mu.Unlock()
		return ev, nil
	}
	f.mu.Unlock()
	return h2session.Event{}, io.EOF
}

func (f *fakeSession) SetReadDeadline(time.Time) error { return nil }

func (f *fakeSession) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		if f.onClose != nil {
			f.onClose()
		}
	})
	return nil
}

func (f *fakeSession) Metrics() clientmetrics.Snapshot {
	return clientmetrics.Snapshot{BytesSent: 10, BytesReceived: 20}
}

func (f *fakeSession) header(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, hf := range f.fields {
		if hf.Name == name {
			return hf.Value
		}
	}
	return ""
}

// fakeDialer hands out sessions built by make, counting dials.
type fakeDialer struct {
	dials atomic.Int64
	make  func(n int64) (*fakeSession, error)

	mu       sync.Mutex
	sessions []*fakeSession
}

func (d *fakeDialer) Dial(context.Context) (attack.Session, error) {
	n := d.dials.Add(1)
	s, err := d.make(n)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.sessions = append(d.sessions, s)
	d.mu.Unlock()
	return s, nil
}

func (d *fakeDialer) all() []*fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeSession(nil), d.sessions...)
}

type failureLog struct {
	mu   sync.Mutex
	errs []error
}

func (l *failureLog) LogFailure(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func (l *failureLog) list() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]error(nil), l.errs...)
}

func basePlan(d *fakeDialer) attack.Plan {
	return attack.Plan{
		Dial:      d.Dial,
		Scheme:    "https",
		Authority: "localhost:8000",
		Path:      "/",
		Target:    "https://localhost:8000",
	}
}
