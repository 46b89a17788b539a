// Package h2session is a minimal client-side HTTP/2 connection built on the
// x/net/http2 framer. It exposes just enough of the protocol to open streams,
// reset them and drain whatever the server sends back.
package h2session

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/torosent/rapidreset/internal/clientmetrics"
)

const (
	initialHeaderTableSize = 4096
	defaultMaxFrameSize    = 16384
)

// Session owns one connection. Writes are serialised; NextEvent must only be
// called from a single goroutine.
type Session struct {
	conn    net.Conn
	bw      *bufio.Writer
	framer  *http2.Framer
	metrics *clientmetrics.ConnMetrics

	wmu          sync.Mutex
	henc         *hpack.Encoder
	hbuf         bytes.Buffer
	nextID       uint32
	maxFrameSize uint32

	closeOnce sync.Once
	closeErr  error
}

// New wraps an established connection. The caller must call Initiate before
// opening streams.
func New(conn net.Conn) *Session {
	m := clientmetrics.New()
	m.MarkConnected()
	counted := clientmetrics.WrapConn(conn, m)

	s := &Session{
		conn:         counted,
		bw:           bufio.NewWriter(counted),
		metrics:      m,
		nextID:       1,
		maxFrameSize: defaultMaxFrameSize,
	}
	s.henc = hpack.NewEncoder(&s.hbuf)
	s.framer = http2.NewFramer(s.bw, counted)
	s.framer.ReadMetaHeaders = hpack.NewDecoder(initialHeaderTableSize, nil)
	return s
}

// Initiate sends the client connection preface and the initial SETTINGS frame.
func (s *Session) Initiate() error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if _, err := io.WriteString(s.bw, http2.ClientPreface); err != nil {
		return fmt.Errorf("write preface: %w", err)
	}
	if err := s.framer.WriteSettings(http2.Setting{ID: http2.SettingEnablePush, Val: 0}); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	s.metrics.FrameSent()
	return s.flushLocked()
}

// NextStreamID allocates the next client stream identifier (1, 3, 5, ...).
func (s *Session) NextStreamID() uint32 {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	id := s.nextID
	s.nextID += 2
	return id
}

// SendHeaders encodes fields and writes them as a HEADERS frame, followed by
// CONTINUATION frames if the block exceeds the peer's maximum frame size.
func (s *Session) SendHeaders(streamID uint32, fields []hpack.HeaderField, endStream bool) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.hbuf.Reset()
	for _, f := range fields {
		if err := s.henc.WriteField(f); err != nil {
			return fmt.Errorf("encode %s: %w", f.Name, err)
		}
	}
	block := s.hbuf.Bytes()
	limit := int(s.maxFrameSize)

	first := block
	if len(first) > limit {
		first = block[:limit]
	}
	rest := block[len(first):]
	if err := s.framer.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: first,
		EndStream:     endStream,
		EndHeaders:    len(rest) == 0,
	}); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	s.metrics.FrameSent()

	for len(rest) > 0 {
		chunk := rest
		if len(chunk) > limit {
			chunk = rest[:limit]
		}
		rest = rest[len(chunk):]
		if err := s.framer.WriteContinuation(streamID, len(rest) == 0, chunk); err != nil {
			return fmt.Errorf("write continuation: %w", err)
		}
		s.metrics.FrameSent()
	}
	return s.flushLocked()
}

// ResetStream writes RST_STREAM for streamID with the given code.
func (s *Session) ResetStream(streamID uint32, code http2.ErrCode) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.framer.WriteRSTStream(streamID, code); err != nil {
		return fmt.Errorf("write rst_stream: %w", err)
	}
	s.metrics.FrameSent()
	return s.flushLocked()
}

// NextEvent blocks for the next inbound frame and returns it as an Event.
// SETTINGS and PING are acknowledged, and received DATA is credited back to
// the connection window, before the event is returned. It returns io.EOF once
// the connection is closed by either side.
func (s *Session) NextEvent() (Event, error) {
	f, err := s.framer.ReadFrame()
	if err != nil {
		if isClosed(err) {
			return Event{}, io.EOF
		}
		return Event{}, err
	}
	hdr := f.Header()
	s.metrics.FrameReceived(hdr.Type.String())
	ev := Event{Kind: EventOther, Type: hdr.Type, StreamID: hdr.StreamID}

	switch f := f.(type) {
	case *http2.MetaHeadersFrame:
		ev.Kind = EventResponseReceived
		ev.Status = f.PseudoValue("status")
		ev.Headers = f.Fields
	case *http2.DataFrame:
		ev.Kind = EventData
		ev.Length = len(f.Data())
		if hdr.Length > 0 {
			if err := s.writeLocked(func() error { return s.framer.WriteWindowUpdate(0, hdr.Length) }); err != nil {
				return ev, fmt.Errorf("write window_update: %w", err)
			}
		}
	case *http2.SettingsFrame:
		if f.IsAck() {
			ev.Kind = EventSettingsAck
			break
		}
		ev.Kind = EventSettings
		s.applySettings(f)
		if err := s.writeLocked(s.framer.WriteSettingsAck); err != nil {
			return ev, fmt.Errorf("write settings ack: %w", err)
		}
	case *http2.PingFrame:
		ev.Kind = EventPing
		if !f.IsAck() {
			data := f.Data
			if err := s.writeLocked(func() error { return s.framer.WritePing(true, data) }); err != nil {
				return ev, fmt.Errorf("write ping ack: %w", err)
			}
		}
	case *http2.WindowUpdateFrame:
		ev.Kind = EventWindowUpdate
	case *http2.RSTStreamFrame:
		ev.Kind = EventStreamReset
		ev.ErrCode = f.ErrCode
	case *http2.GoAwayFrame:
		ev.Kind = EventGoAway
		ev.StreamID = f.LastStreamID
		ev.ErrCode = f.ErrCode
	}
	return ev, nil
}

func (s *Session) applySettings(f *http2.SettingsFrame) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = f.ForeachSetting(func(st http2.Setting) error {
		switch st.ID {
		case http2.SettingHeaderTableSize:
			s.henc.SetMaxDynamicTableSizeLimit(st.Val)
		case http2.SettingMaxFrameSize:
			s.maxFrameSize = st.Val
		}
		return nil
	})
}

// SetReadDeadline bounds the next NextEvent call.
func (s *Session) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

// Close closes the underlying connection. Only the first call has an effect.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// Metrics reports frames and bytes exchanged so far.
func (s *Session) Metrics() clientmetrics.Snapshot {
	return s.metrics.Snapshot()
}

func (s *Session) writeLocked(write func() error) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := write(); err != nil {
		return err
	}
	s.metrics.FrameSent()
	return s.flushLocked()
}

func (s *Session) flushLocked() error {
	if err := s.bw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}
