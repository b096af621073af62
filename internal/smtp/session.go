package smtp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/OliverSchlueter/smtpevent/internal/mail"
	"github.com/OliverSchlueter/smtpevent/internal/metrics"
)

// Session is the protocol state of one client connection. It is owned by the
// goroutine serving that connection and is not safe for concurrent use.
type Session struct {
	id       string
	hostname string
	peer     string

	phase      Phase
	greeted    string
	sender     string
	recipients []string
	data       []string

	pending []byte
	closed  bool

	w       *bufio.Writer
	sink    MessageSink
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type SessionConfig struct {
	ID       string
	Hostname string
	Peer     string
	Writer   io.Writer
	Sink     MessageSink
	Metrics  *metrics.Metrics
}

func NewSession(config SessionConfig) *Session {
	if config.Hostname == "" {
		config.Hostname = "localhost"
	}

	return &Session{
		id:       config.ID,
		hostname: config.Hostname,
		peer:     config.Peer,
		phase:    PhaseCommand,
		w:        bufio.NewWriter(config.Writer),
		sink:     config.Sink,
		metrics:  config.Metrics,
		logger:   slog.Default().With("session_id", config.ID, "remote_addr", config.Peer),
	}
}

func (s *Session) Phase() Phase {
	return s.phase
}

// Greeted returns the name announced with HELO, or "" before HELO.
func (s *Session) Greeted() string {
	return s.greeted
}

func (s *Session) Sender() string {
	return s.sender
}

func (s *Session) Recipients() []string {
	rcpts := make([]string, len(s.recipients))
	copy(rcpts, s.recipients)
	return rcpts
}

// Closed reports whether the client ended the session with QUIT.
func (s *Session) Closed() bool {
	return s.closed
}

// Greet sends the service ready banner. It must be called before any input
// is handled.
func (s *Session) Greet() error {
	return s.reply(fmt.Sprintf(StatusServiceReady, s.hostname, Product+" "+Version))
}

// Feed consumes raw bytes from the transport. Complete lines are handled in
// order; an incomplete trailing line is kept until the next call, so a
// command sent without a line terminator is not answered until one arrives.
// Input after QUIT is discarded.
func (s *Session) Feed(chunk []byte) error {
	s.pending = append(s.pending, chunk...)

	for !s.closed {
		i := bytes.IndexByte(s.pending, '\n')
		if i < 0 {
			return nil
		}

		line := strings.TrimSuffix(string(s.pending[:i]), "\r")
		s.pending = s.pending[i+1:]

		if err := s.HandleLine(line); err != nil {
			return err
		}
	}

	s.pending = nil
	return nil
}

// HandleLine interprets one logical line, without its terminator, according
// to the current phase. The returned error is a transport write failure;
// protocol errors are answered with a reply.
func (s *Session) HandleLine(line string) error {
	if s.closed {
		return nil
	}

	switch s.phase {
	case PhaseCommand:
		return s.handleCommand(line)
	case PhaseData:
		return s.handleDataLine(line)
	default:
		s.logger.Warn("Received input in unknown phase", "phase", s.phase.String())
		return s.reply(StatusInternalConfusion)
	}
}

func (s *Session) handleCommand(line string) error {
	slog.Debug("C: " + line)

	cmd, err := ParseCommand(line)
	switch {
	case errors.Is(err, ErrEmptyCommand):
		return s.reply(StatusBadSyntax)
	case errors.Is(err, ErrUnknownCommand):
		s.metrics.CommandReceived("UNKNOWN")
		return s.reply(fmt.Sprintf(StatusNotImplemented, cmd.Name))
	}

	s.metrics.CommandReceived(cmd.Name)
	return s.dispatch(cmd)
}

func (s *Session) dispatch(cmd Command) error {
	switch cmd.Verb {
	case VerbHelo:
		return s.handleHelo(cmd.Argument)
	case VerbNoop:
		return s.handleNoop(cmd.Argument)
	case VerbQuit:
		return s.handleQuit()
	case VerbMail:
		return s.handleMail(cmd.Argument)
	case VerbRcpt:
		return s.handleRcpt(cmd.Argument)
	case VerbRset:
		return s.handleRset(cmd.Argument)
	case VerbData:
		return s.handleData(cmd.Argument)
	default:
		return s.reply(fmt.Sprintf(StatusNotImplemented, cmd.Name))
	}
}

// handleDataLine transcribes one body line, undoing the dot-stuffing of
// RFC 821 section 4.5.2, until the lone "." terminator arrives.
func (s *Session) handleDataLine(line string) error {
	if line == "." {
		return s.completeData()
	}

	s.data = append(s.data, strings.TrimPrefix(line, "."))
	return nil
}

func (s *Session) completeData() error {
	msg := mail.NewMessage(s.peer, s.sender, s.recipients, strings.Join(s.data, "\n"))

	s.logger.Info("Incoming email received",
		"message_id", msg.ID,
		"sender", msg.Sender,
		"recipients", strings.Join(msg.Recipients, ", "),
		"size", msg.Size(),
	)
	s.metrics.MessageReceived()
	if s.sink != nil {
		s.sink.Emit(msg)
	}

	s.resetTransaction()
	return s.reply(StatusOK)
}

// resetTransaction clears the envelope and body but keeps the HELO greeting.
func (s *Session) resetTransaction() {
	s.sender = ""
	s.recipients = nil
	s.data = nil
	s.phase = PhaseCommand
}

func (s *Session) reply(line string) error {
	s.metrics.ReplySent(line)
	return writeLine(s.w, line)
}
