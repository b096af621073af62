package delivery

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/OliverSchlueter/smtpevent/internal/mail"
	"github.com/OliverSchlueter/smtpevent/internal/smtp"
)

type staticResolver struct {
	hosts []string
	err   error
}

func (r staticResolver) LookupMX(ctx context.Context, domain string) ([]string, error) {
	return r.hosts, r.err
}

// startServer runs an in-process SMTP server and returns its port and the
// channel receiving its messages.
func startServer(t *testing.T) (int, <-chan *mail.Message) {
	t.Helper()

	received := make(chan *mail.Message, 8)
	srv := smtp.NewServer(smtp.Configuration{
		Hostname: "relay.test",
		Sink: smtp.SinkFunc(func(msg *mail.Message) {
			received <- msg
		}),
	})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	go srv.Serve(listener)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	return listener.Addr().(*net.TCPAddr).Port, received
}

func receive(t *testing.T, received <-chan *mail.Message) *mail.Message {
	t.Helper()

	select {
	case msg := <-received:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for relayed message")
		return nil
	}
}

func TestRelayToSmarthost(t *testing.T) {
	port, received := startServer(t)
	relay := NewRelay(RelayConfiguration{
		Smarthost: "127.0.0.1",
		Port:      port,
		Helo:      "smtpevent.test",
	})

	msg := mail.NewMessage("10.0.0.1", "a@x.com", []string{"b@y.com", "c@z.com"}, "Subject: hi\n\n.leading dot\nlast line")
	if err := relay.Deliver(context.Background(), msg); err != nil {
		t.Fatalf("Failed to relay: %v", err)
	}

	got := receive(t, received)
	if got.Sender != "a@x.com" {
		t.Errorf("Expected sender a@x.com, got %s", got.Sender)
	}
	if strings.Join(got.Recipients, ",") != "b@y.com,c@z.com" {
		t.Errorf("Expected recipients [b@y.com c@z.com], got %v", got.Recipients)
	}
	if got.PeerAddress != "127.0.0.1" {
		t.Errorf("Expected peer 127.0.0.1, got %s", got.PeerAddress)
	}
	if !strings.Contains(got.Body, "Subject: hi\n") {
		t.Errorf("Expected subject header in body, got %q", got.Body)
	}
	if !strings.Contains(got.Body, "\n.leading dot\nlast line") {
		t.Errorf("Expected dot-stuffed line to survive the relay, got %q", got.Body)
	}
	if !strings.Contains(got.Body, "Message-ID: <") {
		t.Errorf("Expected Message-ID header to be added, got %q", got.Body)
	}
}

func TestRelayNullSender(t *testing.T) {
	port, received := startServer(t)
	relay := NewRelay(RelayConfiguration{Smarthost: "127.0.0.1", Port: port})

	msg := mail.NewMessage("10.0.0.1", mail.NullAddress, []string{"postmaster@y.com"}, "Delivery failed")
	if err := relay.Deliver(context.Background(), msg); err != nil {
		t.Fatalf("Failed to relay: %v", err)
	}

	if got := receive(t, received); got.Sender != mail.NullAddress {
		t.Errorf("Expected null sender, got %s", got.Sender)
	}
}

func TestRelayViaMX(t *testing.T) {
	port, received := startServer(t)
	relay := NewRelay(RelayConfiguration{
		Port:     port,
		Resolver: staticResolver{hosts: []string{"127.0.0.1"}},
	})

	msg := mail.NewMessage("10.0.0.1", "a@x.com", []string{"b@y.com", "c@z.com", "d@y.com"}, "Hello")
	if err := relay.Deliver(context.Background(), msg); err != nil {
		t.Fatalf("Failed to relay: %v", err)
	}

	// one transaction per recipient domain
	first, second := receive(t, received), receive(t, received)
	total := len(first.Recipients) + len(second.Recipients)
	if total != 3 {
		t.Errorf("Expected 3 recipients across both transactions, got %v and %v", first.Recipients, second.Recipients)
	}
}

func TestRelayLookupFailure(t *testing.T) {
	relay := NewRelay(RelayConfiguration{
		Resolver: staticResolver{err: ErrDNSLookupFailed},
	})

	msg := mail.NewMessage("10.0.0.1", "a@x.com", []string{"b@y.com"}, "Hello")
	if err := relay.Deliver(context.Background(), msg); !errors.Is(err, ErrDNSLookupFailed) {
		t.Errorf("Expected ErrDNSLookupFailed, got %v", err)
	}
}

func TestRelayNoReachableHost(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	relay := NewRelay(RelayConfiguration{
		Port:     port,
		Timeout:  time.Second,
		Resolver: staticResolver{hosts: []string{"127.0.0.1"}},
	})

	msg := mail.NewMessage("10.0.0.1", "a@x.com", []string{"b@y.com"}, "Hello")
	if err := relay.Deliver(context.Background(), msg); !errors.Is(err, ErrNoMXHost) {
		t.Errorf("Expected ErrNoMXHost, got %v", err)
	}
}

func TestGroupByDomain(t *testing.T) {
	groups := groupByDomain([]string{"a@x.com", "b@Y.com", "c@x.com", "local"})

	if strings.Join(groups["x.com"], ",") != "a@x.com,c@x.com" {
		t.Errorf("Expected [a@x.com c@x.com], got %v", groups["x.com"])
	}
	if len(groups["y.com"]) != 1 {
		t.Errorf("Expected 1 recipient for y.com, got %v", groups["y.com"])
	}
	if len(groups["local"]) != 1 {
		t.Errorf("Expected bare recipient to be its own domain, got %v", groups)
	}
}

func TestWithHeaders(t *testing.T) {
	msg := mail.NewMessage("10.0.0.1", "a@x.com", []string{"b@y.com"}, "Hello\nWorld")
	data := string(withHeaders(msg, "example.com"))

	for _, prefix := range []string{"From: <a@x.com>\r\n", "To: b@y.com\r\n", "Date: ", "Message-ID: <"} {
		if !strings.Contains(data, prefix) {
			t.Errorf("Expected %q in %q", prefix, data)
		}
	}
	if !strings.HasSuffix(data, "\r\n\r\nHello\r\nWorld\r\n") {
		t.Errorf("Expected header block followed by body, got %q", data)
	}

	msg = mail.NewMessage("10.0.0.1", "a@x.com", []string{"b@y.com"}, "From: A <a@x.com>\nTo: b@y.com\nDate: Mon, 02 Jan 2006 15:04:05 +0000\nMessage-ID: <1@x.com>\n\nHello")
	data = string(withHeaders(msg, "example.com"))
	if data != string(msg.CRLF()) {
		t.Errorf("Expected complete message to stay unchanged, got %q", data)
	}
}

// scriptedServer accepts one SMTP session and records the commands it gets.
func scriptedServer(t *testing.T) (int, <-chan []string) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	commands := make(chan []string, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var seen []string
		defer func() { commands <- seen }()

		r := bufio.NewReader(conn)
		reply := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }
		reply("220 scripted ready")

		inData := false
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")

			if inData {
				if line == "." {
					inData = false
					reply("250 Ok")
				}
				continue
			}

			seen = append(seen, line)
			switch {
			case strings.HasPrefix(line, "EHLO"):
				reply("502 not implemented")
			case strings.HasPrefix(line, "DATA"):
				inData = true
				reply("354 go ahead")
			case strings.HasPrefix(line, "QUIT"):
				reply("221 bye")
				return
			default:
				reply("250 Ok")
			}
		}
	}()

	return listener.Addr().(*net.TCPAddr).Port, commands
}

func TestRelaySendsBracketedPaths(t *testing.T) {
	tests := []struct {
		sender   string
		expected string
	}{
		{"a@x.com", "MAIL FROM:<a@x.com>"},
		{mail.NullAddress, "MAIL FROM:<>"},
	}

	for _, test := range tests {
		port, commands := scriptedServer(t)
		relay := NewRelay(RelayConfiguration{Smarthost: "127.0.0.1", Port: port})

		msg := mail.NewMessage("10.0.0.1", test.sender, []string{"b@y.com"}, "Hello")
		if err := relay.Deliver(context.Background(), msg); err != nil {
			t.Fatalf("Failed to relay: %v", err)
		}

		var seen []string
		select {
		case seen = <-commands:
		case <-time.After(5 * time.Second):
			t.Fatal("Timed out waiting for session")
		}

		joined := strings.Join(seen, "|")
		if !strings.Contains(joined, test.expected) {
			t.Errorf("Expected %q in commands, got %v", test.expected, seen)
		}
		if !strings.Contains(joined, "RCPT TO:<b@y.com>") {
			t.Errorf("Expected %q in commands, got %v", "RCPT TO:<b@y.com>", seen)
		}
	}
}
