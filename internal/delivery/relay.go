package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/OliverSchlueter/goutils/idgen"
	"github.com/OliverSchlueter/goutils/sloki"
	"github.com/OliverSchlueter/smtpevent/internal/mail"
	gosmtp "github.com/wneessen/go-mail/smtp"
)

// Relay forwards messages over SMTP, either to a fixed smarthost or to the
// mail exchangers of each recipient domain.
type Relay struct {
	smarthost string
	port      int
	helo      string
	timeout   time.Duration
	resolver  MXResolver
	signer    *DKIMSigner
}

type RelayConfiguration struct {
	Smarthost string
	Port      int
	Helo      string
	Timeout   time.Duration
	// Resolver is required when Smarthost is empty.
	Resolver MXResolver
	Signer   *DKIMSigner
}

func NewRelay(config RelayConfiguration) *Relay {
	if config.Port == 0 {
		config.Port = 25
	}
	if config.Helo == "" {
		config.Helo = "localhost"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Relay{
		smarthost: config.Smarthost,
		port:      config.Port,
		helo:      config.Helo,
		timeout:   config.Timeout,
		resolver:  config.Resolver,
		signer:    config.Signer,
	}
}

func (r *Relay) Name() string {
	return "relay"
}

func (r *Relay) Deliver(ctx context.Context, msg *mail.Message) error {
	data := withHeaders(msg, r.helo)
	if r.signer != nil {
		signed, err := r.signer.Sign(data)
		if err != nil {
			return err
		}
		data = signed
	}

	if r.smarthost != "" {
		if err := r.sendTo(ctx, r.smarthost, msg.Sender, msg.Recipients, data); err != nil {
			return fmt.Errorf("failed to relay via %s: %w", r.smarthost, err)
		}
		slog.InfoContext(ctx, "Message relayed", "message_id", msg.ID, "host", r.smarthost, "recipients", len(msg.Recipients))
		return nil
	}

	var errs []error
	for domain, rcpts := range groupByDomain(msg.Recipients) {
		hosts, err := r.resolver.LookupMX(ctx, domain)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		sent := false
		for _, host := range hosts {
			if err := r.sendTo(ctx, host, msg.Sender, rcpts, data); err != nil {
				slog.WarnContext(ctx, "Failed to relay message", "message_id", msg.ID, "host", host, sloki.WrapError(err))
				continue
			}

			sent = true
			slog.InfoContext(ctx, "Message relayed", "message_id", msg.ID, "host", host, "domain", domain, "recipients", len(rcpts))
			break
		}

		if !sent {
			errs = append(errs, fmt.Errorf("%w for %s", ErrNoMXHost, domain))
		}
	}

	return errors.Join(errs...)
}

func (r *Relay) sendTo(ctx context.Context, host, sender string, rcpts []string, data []byte) error {
	dialer := net.Dialer{Timeout: r.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(r.port)))
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server %s: %w", host, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := gosmtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to read server greeting: %w", err)
	}
	defer client.Close()

	if err := client.Hello(r.helo); err != nil {
		return fmt.Errorf("HELO command failed: %w", err)
	}

	if sender != mail.NullAddress {
		sender = "<" + sender + ">"
	}
	if err := client.Mail(sender); err != nil {
		return fmt.Errorf("MAIL FROM command failed: %w", err)
	}
	for _, rcpt := range rcpts {
		if err := client.Rcpt("<" + rcpt + ">"); err != nil {
			return fmt.Errorf("RCPT TO command failed for %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write message data: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("email data submission failed: %w", err)
	}

	return client.Quit()
}

// groupByDomain keeps the order of recipients within each domain.
func groupByDomain(rcpts []string) map[string][]string {
	groups := map[string][]string{}
	for _, rcpt := range rcpts {
		domain := rcpt
		if i := strings.LastIndex(rcpt, "@"); i >= 0 {
			domain = rcpt[i+1:]
		}
		domain = strings.ToLower(domain)
		groups[domain] = append(groups[domain], rcpt)
	}
	return groups
}

// withHeaders returns the message in CRLF form, adding the From, To, Date and
// Message-ID headers it lacks.
func withHeaders(msg *mail.Message, domain string) []byte {
	headers := msg.Headers()

	var b strings.Builder
	if _, ok := headers["From"]; !ok && msg.Sender != mail.NullAddress {
		fmt.Fprintf(&b, "From: <%s>\r\n", msg.Sender)
	}
	if _, ok := headers["To"]; !ok {
		fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.Recipients, ", "))
	}
	if _, ok := headers["Date"]; !ok {
		fmt.Fprintf(&b, "Date: %s\r\n", msg.ReceivedAt.UTC().Format(time.RFC1123Z))
	}
	if _, ok := headers["Message-Id"]; !ok {
		fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", idgen.GenerateID(20), domain)
	}
	if len(headers) == 0 {
		b.WriteString("\r\n")
	}

	return append([]byte(b.String()), msg.CRLF()...)
}
