package attack

// State is a worker's position in the attack sequence.
type State int

const (
	StateConnecting State = iota
	StateHeadersSent
	StateAwaitingReset
	StateResetSent
	StateDraining
	StateDone
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHeadersSent:
		return "headers_sent"
	case StateAwaitingReset:
		return "awaiting_reset"
	case StateResetSent:
		return "reset_sent"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// StreamAttempt is the single stream a worker opens and resets.
type StreamAttempt struct {
	StreamID  uint32
	Path      string
	Authority string
	State     State
}
