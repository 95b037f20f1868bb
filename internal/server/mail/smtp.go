package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"gopkg.in/gomail.v2"
)

// DefaultSMTPTimeout bounds one whole SMTP exchange when no timeout is given.
const DefaultSMTPTimeout = 30 * time.Second

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender sends through an SMTP relay with gomail.
type SMTPSender struct {
	from   string
	dialer dialer
}

// NewSMTPSender returns a sender whose exchanges are cut off after timeout,
// connection setup included.
func NewSMTPSender(host string, port int, user, password, from string, timeout time.Duration) *SMTPSender {
	if timeout <= 0 {
		timeout = DefaultSMTPTimeout
	}
	return &SMTPSender{
		from: from,
		dialer: &deadlineDialer{
			Dialer:  gomail.NewDialer(host, port, user, password),
			timeout: timeout,
			dial:    net.DialTimeout,
		},
	}
}

// Send runs the SMTP exchange on its own goroutine and gives up when ctx
// ends. gomail has no context support; an abandoned exchange still ends
// when the connection deadline set by deadlineDialer passes.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := buildMessage(s.from, msg)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deadlineDialer speaks SMTP with the settings of a gomail.Dialer over a
// connection carrying a deadline. gomail.Dialer itself only limits the dial.
type deadlineDialer struct {
	*gomail.Dialer
	timeout time.Duration
	dial    func(network, address string, timeout time.Duration) (net.Conn, error)
}

func (d *deadlineDialer) DialAndSend(m ...*gomail.Message) error {
	conn, err := d.dial("tcp", net.JoinHostPort(d.Host, strconv.Itoa(d.Port)), d.timeout)
	if err != nil {
		return err
	}
	if err := conn.SetDeadline(time.Now().Add(d.timeout)); err != nil {
		conn.Close()
		return err
	}
	if d.SSL {
		conn = tls.Client(conn, d.tlsConfig())
	}

	c, err := smtp.NewClient(conn, d.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if d.LocalName != "" {
		if err := c.Hello(d.LocalName); err != nil {
			return err
		}
	}
	if !d.SSL {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(d.tlsConfig()); err != nil {
				return err
			}
		}
	}
	if auth := d.auth(); auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(auth); err != nil {
				return err
			}
		}
	}

	send := gomail.SendFunc(func(from string, to []string, msg io.WriterTo) error {
		if err := c.Mail(from); err != nil {
			return err
		}
		for _, addr := range to {
			if err := c.Rcpt(addr); err != nil {
				return fmt.Errorf("rcpt %s: %w", addr, err)
			}
		}
		w, err := c.Data()
		if err != nil {
			return err
		}
		if _, err := msg.WriteTo(w); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	})
	if err := gomail.Send(send, m...); err != nil {
		return err
	}
	return c.Quit()
}

func (d *deadlineDialer) tlsConfig() *tls.Config {
	if d.TLSConfig != nil {
		return d.TLSConfig
	}
	return &tls.Config{ServerName: d.Host}
}

func (d *deadlineDialer) auth() smtp.Auth {
	if d.Auth != nil {
		return d.Auth
	}
	if d.Username == "" {
		return nil
	}
	return smtp.PlainAuth("", d.Username, d.Password, d.Host)
}
