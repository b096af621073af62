package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/OliverSchlueter/goutils/sloki"
	"github.com/OliverSchlueter/smtpevent/internal/mail"
	"github.com/nats-io/nats.go"
)

// Publisher is the part of *nats.Conn used for message events.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes every message event on a NATS subject.
type NATSPublisher struct {
	conn     Publisher
	subject  string
	encoding string
}

type NATSConfiguration struct {
	Conn     Publisher
	Subject  string
	Encoding string
}

func NewNATSPublisher(config NATSConfiguration) *NATSPublisher {
	if config.Subject == "" {
		config.Subject = "smtp.incoming"
	}
	if config.Encoding == "" {
		config.Encoding = mail.EncodingJSON
	}

	return &NATSPublisher{
		conn:     config.Conn,
		subject:  config.Subject,
		encoding: config.Encoding,
	}
}

// ConnectNATS dials the NATS server at url and keeps reconnecting for the
// lifetime of the process.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("smtpevent"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("Disconnected from NATS", sloki.WrapError(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("Reconnected to NATS", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	return nc, nil
}

func (n *NATSPublisher) Name() string {
	return "nats"
}

func (n *NATSPublisher) Deliver(ctx context.Context, msg *mail.Message) error {
	data, err := msg.Encode(n.encoding)
	if err != nil {
		return err
	}

	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", n.subject, err)
	}

	slog.DebugContext(ctx, "Message event published", "message_id", msg.ID, "subject", n.subject, "bytes", len(data))
	return nil
}
