package smtp

import (
	"errors"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line     string
		verb     Verb
		name     string
		argument string
	}{
		{"HELO client1", VerbHelo, "HELO", "client1"},
		{"helo client1", VerbHelo, "HELO", "client1"},
		{"NOOP", VerbNoop, "NOOP", ""},
		{"QUIT", VerbQuit, "QUIT", ""},
		{"MAIL FROM:<a@x.com>", VerbMail, "MAIL", "FROM:<a@x.com>"},
		{"Rcpt TO:  <b@y.com>  ", VerbRcpt, "RCPT", "TO:  <b@y.com>"},
		{"RSET ", VerbRset, "RSET", ""},
		{"DATA", VerbData, "DATA", ""},
		{"  DATA  ", VerbData, "DATA", ""},
	}

	for _, test := range tests {
		cmd, err := ParseCommand(test.line)
		if err != nil {
			t.Errorf("ParseCommand(%q): unexpected error: %v", test.line, err)
			continue
		}
		if cmd.Verb != test.verb {
			t.Errorf("ParseCommand(%q): expected verb %s, got %s", test.line, test.verb, cmd.Verb)
		}
		if cmd.Name != test.name {
			t.Errorf("ParseCommand(%q): expected name %q, got %q", test.line, test.name, cmd.Name)
		}
		if cmd.Argument != test.argument {
			t.Errorf("ParseCommand(%q): expected argument %q, got %q", test.line, test.argument, cmd.Argument)
		}
	}
}

func TestParseCommandErrors(t *testing.T) {
	if _, err := ParseCommand(""); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("Expected ErrEmptyCommand, got %v", err)
	}
	if _, err := ParseCommand(" \t "); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("Expected ErrEmptyCommand, got %v", err)
	}

	cmd, err := ParseCommand("ehlo client.example.com")
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Expected ErrUnknownCommand, got %v", err)
	}
	if cmd.Name != "EHLO" {
		t.Errorf("Expected name EHLO, got %s", cmd.Name)
	}
}

func TestVerbString(t *testing.T) {
	if VerbRcpt.String() != "RCPT" {
		t.Errorf("Expected RCPT, got %s", VerbRcpt.String())
	}
	if Verb(0).String() != "UNKNOWN" {
		t.Errorf("Expected UNKNOWN, got %s", Verb(0).String())
	}
}
