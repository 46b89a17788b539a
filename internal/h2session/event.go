package h2session

import (
	"fmt"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

// EventKind classifies an inbound frame.
type EventKind int

const (
	EventOther EventKind = iota
	EventResponseReceived
	EventData
	EventSettings
	EventSettingsAck
	EventPing
	EventWindowUpdate
	EventStreamReset
	EventGoAway
)

func (k EventKind) String() string {
	switch k {
	case EventResponseReceived:
		return "ResponseReceived"
	case EventData:
		return "Data"
	case EventSettings:
		return "Settings"
	case EventSettingsAck:
		return "SettingsAck"
	case EventPing:
		return "Ping"
	case EventWindowUpdate:
		return "WindowUpdate"
	case EventStreamReset:
		return "StreamReset"
	case EventGoAway:
		return "GoAway"
	default:
		return "Other"
	}
}

// Event is one decoded inbound frame. Only the fields relevant to Kind are set.
type Event struct {
	Kind     EventKind
	Type     http2.FrameType
	StreamID uint32 // for GoAway, the peer's last processed stream
	ErrCode  http2.ErrCode
	Status   string
	Headers  []hpack.HeaderField
	Length   int
}

func (e Event) String() string {
	switch e.Kind {
	case EventResponseReceived:
		return fmt.Sprintf("ResponseReceived stream_id=%d status=%s", e.StreamID, e.Status)
	case EventStreamReset:
		return fmt.Sprintf("StreamReset stream_id=%d error_code=%s", e.StreamID, e.ErrCode)
	case EventGoAway:
		return fmt.Sprintf("GoAway last_stream_id=%d error_code=%s", e.StreamID, e.ErrCode)
	case EventData:
		return fmt.Sprintf("Data stream_id=%d length=%d", e.StreamID, e.Length)
	case EventOther:
		return fmt.Sprintf("%s stream_id=%d", e.Type, e.StreamID)
	default:
		return e.Kind.String()
	}
}

// RequestFields builds the pseudo-header block for a GET request followed by
// any extra regular fields.
func RequestFields(scheme, authority, path string, extra ...hpack.HeaderField) []hpack.HeaderField {
	fields := make([]hpack.HeaderField, 0, 4+len(extra))
	fields = append(fields,
		hpack.HeaderField{Name: ":method", Value: "GET"},
		hpack.HeaderField{Name: ":path", Value: path},
		hpack.HeaderField{Name: ":scheme", Value: scheme},
		hpack.HeaderField{Name: ":authority", Value: authority},
	)
	return append(fields, extra...)
}
