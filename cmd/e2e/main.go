package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/OliverSchlueter/goutils/sloki"
	"github.com/OliverSchlueter/smtpevent/internal/delivery"
	"github.com/OliverSchlueter/smtpevent/internal/mails"
	fakemails "github.com/OliverSchlueter/smtpevent/internal/mails/database/fake"
	"github.com/OliverSchlueter/smtpevent/internal/smtp"
	"github.com/OliverSchlueter/smtpevent/internal/users"
	fakeusers "github.com/OliverSchlueter/smtpevent/internal/users/database/fake"
	"github.com/wneessen/go-mail"
)

const hostname = "localhost"

var names = []string{"bob", "sheila", "kurt", "wendy", "tim"}

func main() {
	lokiService := sloki.NewService(sloki.Configuration{
		URL:          "http://localhost:3100/loki/api/v1/push",
		Service:      "smtpevent-e2e",
		ConsoleLevel: slog.LevelInfo,
		LokiLevel:    slog.LevelInfo,
		EnableLoki:   false,
	})
	slog.SetDefault(slog.New(lokiService))

	// users
	us := users.NewStore(users.Configuration{
		DB: fakeusers.NewDB(),
	})
	for _, name := range names {
		if _, err := us.Create(users.User{Name: name, Emails: []string{name + "@" + hostname}}); err != nil {
			fail("Failed to create user", err)
		}
	}

	// mails
	ms := mails.NewStore(mails.Configuration{
		DB: fakemails.NewDB(),
	})

	dispatcher := delivery.NewDispatcher(delivery.Configuration{
		Deliverers: []delivery.Deliverer{
			delivery.LogDeliverer{},
			delivery.NewMailboxDeliverer(delivery.MailboxConfiguration{Users: us, Mails: ms}),
		},
	})
	dispatcher.Start(context.Background())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		fail("Failed to listen", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	srv := smtp.NewServer(smtp.Configuration{
		Hostname: hostname,
		Sink:     dispatcher,
	})
	go srv.Serve(listener)

	if err := sequentialMessages(port); err != nil {
		fail("Sequential messages on one connection failed", err)
	}
	if err := sequentialConnections(port); err != nil {
		fail("Sequential connections failed", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		fail("Failed to shut down SMTP server", err)
	}
	dispatcher.Stop()

	if err := printMailboxes(ms); err != nil {
		fail("Failed to read mailboxes", err)
	}
}

// buildMessages pairs every user with the list read backwards.
func buildMessages() ([]*mail.Msg, error) {
	var msgs []*mail.Msg
	for i, name := range names {
		m := mail.NewMsg()
		if err := m.From(name + "@" + hostname); err != nil {
			return nil, err
		}
		if err := m.To(names[len(names)-1-i] + "@" + hostname); err != nil {
			return nil, err
		}
		m.Subject(fmt.Sprintf("Test message %d", i+1))
		m.SetBodyString(mail.TypeTextPlain, "This is a test message\r\nSecond line.\r\n.Final line here.")
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func newClient(port int) (*mail.Client, error) {
	return mail.NewClient(
		"127.0.0.1",
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.NoTLS),
		mail.WithHELO("e2e.localhost"),
	)
}

func sequentialMessages(port int) error {
	msgs, err := buildMessages()
	if err != nil {
		return err
	}

	c, err := newClient(port)
	if err != nil {
		return err
	}
	return c.DialAndSend(msgs...)
}

func sequentialConnections(port int) error {
	msgs, err := buildMessages()
	if err != nil {
		return err
	}

	for _, m := range msgs {
		c, err := newClient(port)
		if err != nil {
			return err
		}
		if err := c.DialAndSend(m); err != nil {
			return err
		}
	}
	return nil
}

func printMailboxes(ms *mails.Store) error {
	inboxes := map[string][]mails.Mail{}
	for _, name := range names {
		list, err := ms.GetMails(name, mails.DefaultMailboxUID)
		if err != nil {
			return err
		}
		inboxes[name] = list

		if len(list) != 2 {
			return fmt.Errorf("expected 2 mails for %s, got %d", name, len(list))
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(inboxes)
}

func fail(msg string, err error) {
	slog.Error(msg, sloki.WrapError(err))
	os.Exit(1)
}
