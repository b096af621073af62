package mail

import (
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NullAddress is the empty reverse-path used by bounces.
const NullAddress = "<>"

// Message is a completed SMTP transaction: envelope plus the transcribed body.
type Message struct {
	ID          string    `json:"id"`
	PeerAddress string    `json:"peer_address"`
	Sender      string    `json:"sender"`
	Recipients  []string  `json:"recipients"`
	Body        string    `json:"body"`
	ReceivedAt  time.Time `json:"received_at"`
}

func NewMessage(peer, sender string, recipients []string, body string) *Message {
	rcpts := make([]string, len(recipients))
	copy(rcpts, recipients)

	return &Message{
		ID:          ulid.Make().String(),
		PeerAddress: peer,
		Sender:      sender,
		Recipients:  rcpts,
		Body:        body,
		ReceivedAt:  time.Now(),
	}
}

// Headers returns the RFC 5322 header fields at the top of the body. A body
// without a parsable header block yields an empty map.
func (m *Message) Headers() map[string]string {
	headers := map[string]string{}

	msg, err := mail.ReadMessage(strings.NewReader(m.Body))
	if err != nil {
		return headers
	}
	for key, values := range msg.Header {
		headers[key] = strings.Join(values, ", ")
	}

	return headers
}

// Content returns the body without its header block.
func (m *Message) Content() string {
	msg, err := mail.ReadMessage(strings.NewReader(m.Body))
	if err != nil {
		return m.Body
	}

	content, err := io.ReadAll(msg.Body)
	if err != nil {
		return m.Body
	}
	return string(content)
}

func (m *Message) Subject() string {
	return m.Headers()["Subject"]
}

// Size is the body length in bytes.
func (m *Message) Size() int {
	return len(m.Body)
}

// CRLF returns the body with canonical SMTP line endings, ready to be written
// to a DATA stream or signed.
func (m *Message) CRLF() []byte {
	lines := strings.Split(m.Body, "\n")
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}
