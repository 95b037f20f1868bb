// Package mail delivers outbound notifications. The core only depends on the
// Sender contract; SMTP, an S3 outbox and a logging sender implement it.
package mail

import (
	"bytes"
	"context"

	"gopkg.in/gomail.v2"
)

// Message is a single HTML e-mail.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	// ReplyTo lets the recipient answer without this service exposing its
	// own address to the sender. Optional.
	ReplyTo string
}

// Sender hands a message to an external transport. Implementations must
// honour ctx cancellation.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

func buildMessage(from string, msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTMLBody)
	return m
}

// renderMIME returns msg encoded as an RFC 5322 message.
func renderMIME(from string, msg Message) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buildMessage(from, msg).WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
