package notifier

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// SMTPSender relays messages through an SMTP server. Port 465 uses implicit
// TLS; other ports upgrade with STARTTLS when the server offers it.
type SMTPSender struct {
	addr     string
	implicit bool
	auth     sasl.Client
}

// NewSMTPSender creates a sender for host:port. Empty credentials disable AUTH.
func NewSMTPSender(host string, port int, username, password string) *SMTPSender {
	s := &SMTPSender{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		implicit: port == 465,
	}
	if username != "" {
		s.auth = sasl.NewPlainClient("", username, password)
	}
	return s
}

// Send delivers raw to the recipients
func (s *SMTPSender) Send(ctx context.Context, from string, to []string, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	if s.implicit {
		err = smtp.SendMailTLS(s.addr, s.auth, from, to, bytes.NewReader(raw))
	} else {
		err = smtp.SendMail(s.addr, s.auth, from, to, bytes.NewReader(raw))
	}
	if err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", s.addr, err)
	}
	return nil
}
