package attack

import (
	"context"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/torosent/rapidreset/internal/clientmetrics"
	"github.com/torosent/rapidreset/internal/h2session"
)

// Session is the HTTP/2 connection a Worker drives. *h2session.Session
// implements it.
type Session interface {
	Initiate() error
	NextStreamID() uint32
	SendHeaders(streamID uint32, fields []hpack.HeaderField, endStream bool) error
	ResetStream(streamID uint32, code http2.ErrCode) error
	// NextEvent returns io.EOF once the connection is closed.
	NextEvent() (h2session.Event, error)
	SetReadDeadline(t time.Time) error
	Close() error
	Metrics() clientmetrics.Snapshot
}

// DialFunc opens a new, un-initiated Session.
type DialFunc func(ctx context.Context) (Session, error)

// DialWith adapts an h2session.Dialer to a DialFunc.
func DialWith(d *h2session.Dialer) DialFunc {
	return func(ctx context.Context) (Session, error) {
		sess, err := d.Dial(ctx)
		if err != nil {
			// Avoid returning a typed nil inside the interface.
			return nil, err
		}
		return sess, nil
	}
}
