package smtp

import "github.com/OliverSchlueter/smtpevent/internal/mail"

const (
	Product = "smtpevent"
	Version = "0.1.0"
)

// Phase is what a session expects the next inbound line to be.
type Phase int

const (
	PhaseCommand Phase = iota
	PhaseData
)

func (p Phase) String() string {
	switch p {
	case PhaseCommand:
		return "COMMAND"
	case PhaseData:
		return "DATA"
	default:
		return "UNKNOWN"
	}
}

// MessageSink receives every message completed by a session. Emit is called
// from the connection goroutine and must not block; implementations used by
// a Server are called from many connections at once.
type MessageSink interface {
	Emit(msg *mail.Message)
}

// SinkFunc adapts a function to MessageSink.
type SinkFunc func(msg *mail.Message)

func (f SinkFunc) Emit(msg *mail.Message) {
	f(msg)
}
