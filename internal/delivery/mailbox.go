package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/OliverSchlueter/smtpevent/internal/mail"
	"github.com/OliverSchlueter/smtpevent/internal/mails"
	"github.com/OliverSchlueter/smtpevent/internal/users"
)

// MailboxDeliverer stores messages in the INBOX of every local recipient.
type MailboxDeliverer struct {
	users    *users.Store
	mails    *mails.Store
	catchAll string
}

type MailboxConfiguration struct {
	Users *users.Store
	Mails *mails.Store
	// CatchAll names the user receiving mail for unknown local recipients.
	// Empty discards such mail.
	CatchAll string
}

func NewMailboxDeliverer(config MailboxConfiguration) *MailboxDeliverer {
	return &MailboxDeliverer{
		users:    config.Users,
		mails:    config.Mails,
		catchAll: config.CatchAll,
	}
}

func (m *MailboxDeliverer) Name() string {
	return "mailbox"
}

func (m *MailboxDeliverer) Deliver(ctx context.Context, msg *mail.Message) error {
	var errs []error
	delivered := map[string]bool{}

	for _, rcpt := range msg.Recipients {
		user, err := m.resolve(rcpt)
		if errors.Is(err, users.ErrUserNotFound) {
			slog.DebugContext(ctx, "No local mailbox for recipient", "message_id", msg.ID, "recipient", rcpt)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to resolve %s: %w", rcpt, err))
			continue
		}
		if delivered[user.Name] {
			continue
		}

		uid, err := m.store(user.Name, msg)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to store mail for %s: %w", user.Name, err))
			continue
		}

		delivered[user.Name] = true
		slog.InfoContext(ctx, "Mail stored", "message_id", msg.ID, "user", user.Name, "mailbox", mails.DefaultMailboxName, "uid", uid)
	}

	return errors.Join(errs...)
}

func (m *MailboxDeliverer) resolve(rcpt string) (*users.User, error) {
	user, err := m.users.GetByEmail(rcpt)
	if errors.Is(err, users.ErrUserNotFound) && m.catchAll != "" {
		return m.users.GetByName(m.catchAll)
	}
	return user, err
}

func (m *MailboxDeliverer) store(userID string, msg *mail.Message) (uint32, error) {
	mailbox, err := m.mails.GetMailboxByName(userID, mails.DefaultMailboxName)
	if err != nil {
		return 0, err
	}

	return m.mails.CreateMail(userID, mailbox.UID, mails.Mail{
		MailboxUID: mailbox.UID,
		MessageID:  msg.ID,
		From:       msg.Sender,
		To:         msg.Recipients,
		Flags:      []string{},
		Date:       msg.ReceivedAt,
		Size:       int64(msg.Size()),
		Headers:    msg.Headers(),
		Body:       msg.Content(),
	})
}
