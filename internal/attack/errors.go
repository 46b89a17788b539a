package attack

import "fmt"

// ConnectError is returned when a worker could not establish its session:
// TCP, proxy, TLS, ALPN or preface failure. No frames were sent on the
// stream, so the worker may safely be retried.
type ConnectError struct {
	Worker int
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("worker %d: connect: %v", e.Worker, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

func (e *ConnectError) Kind() string { return "connect" }

// ProtocolError is returned when a worker fails after the session was
// established.
type ProtocolError struct {
	Worker   int
	StreamID uint32
	State    State
	Err      error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("worker %d stream %d (%s): %v", e.Worker, e.StreamID, e.State, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) Kind() string { return "protocol" }
