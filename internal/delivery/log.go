package delivery

import (
	"context"
	"log/slog"
	"strings"

	"github.com/OliverSchlueter/smtpevent/internal/mail"
)

// LogDeliverer writes every message event to the log.
type LogDeliverer struct{}

func (LogDeliverer) Name() string {
	return "log"
}

func (LogDeliverer) Deliver(ctx context.Context, msg *mail.Message) error {
	slog.InfoContext(ctx, "incoming-mail",
		"message_id", msg.ID,
		"peer", msg.PeerAddress,
		"sender", msg.Sender,
		"recipients", strings.Join(msg.Recipients, ", "),
		"subject", msg.Subject(),
		"size", msg.Size(),
	)
	return nil
}
