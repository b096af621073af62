package smtp

import (
	"errors"
	"strings"
)

var (
	ErrEmptyCommand   = errors.New("empty command line")
	ErrUnknownCommand = errors.New("unknown command")
)

// Verb is the closed set of commands understood by a session.
type Verb int

const (
	VerbHelo Verb = iota + 1
	VerbNoop
	VerbQuit
	VerbMail
	VerbRcpt
	VerbRset
	VerbData
)

var verbs = map[string]Verb{
	"HELO": VerbHelo,
	"NOOP": VerbNoop,
	"QUIT": VerbQuit,
	"MAIL": VerbMail,
	"RCPT": VerbRcpt,
	"RSET": VerbRset,
	"DATA": VerbData,
}

func (v Verb) String() string {
	for name, verb := range verbs {
		if verb == v {
			return name
		}
	}
	return "UNKNOWN"
}

// Command is a single parsed command line.
type Command struct {
	Verb     Verb
	Name     string // upper-cased verb as sent by the client
	Argument string // trimmed remainder, empty when absent
}

// ParseCommand splits a trimmed command line at its first space. The verb is
// upper-cased and the argument trimmed. An unrecognised verb is returned in
// Name together with ErrUnknownCommand.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, ErrEmptyCommand
	}

	name, arg, _ := strings.Cut(line, " ")
	cmd := Command{
		Name:     strings.ToUpper(name),
		Argument: strings.TrimSpace(arg),
	}

	verb, ok := verbs[cmd.Name]
	if !ok {
		return cmd, ErrUnknownCommand
	}
	cmd.Verb = verb

	return cmd, nil
}
