package main

import (
	"flag"
	"log"

	"github.com/wneessen/go-mail"
)

func main() {
	host := flag.String("host", "localhost", "SMTP server host")
	port := flag.Int("port", 2525, "SMTP server port")
	from := flag.String("from", "peter@otherdomain.com", "envelope sender")
	to := flag.String("to", "oliver@localhost", "recipient")
	subject := flag.String("subject", "Why are you not using go-mail yet?", "subject")
	body := flag.String("body", "You won't need a sales pitch. It's FOSS.", "plain text body")
	flag.Parse()

	// First we create a mail message
	m := mail.NewMsg()
	if err := m.From(*from); err != nil {
		log.Fatalf("failed to set From address: %s", err)
	}
	if err := m.To(*to); err != nil {
		log.Fatalf("failed to set To address: %s", err)
	}
	m.Subject(*subject)
	m.SetBodyString(mail.TypeTextPlain, *body)

	// Secondly the mail client
	c, err := mail.NewClient(
		*host,
		mail.WithPort(*port),
		mail.WithTLSPolicy(mail.NoTLS),
	)
	if err != nil {
		log.Fatalf("failed to create mail client: %s", err)
	}

	// Finally let's send out the mail
	if err := c.DialAndSend(m); err != nil {
		log.Fatalf("failed to send mail: %s", err)
	}
	log.Printf("sent mail from %s to %s via %s:%d", *from, *to, *host, *port)
}
