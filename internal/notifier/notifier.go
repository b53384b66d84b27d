// Package notifier sends the acknowledgement mail a requester gets when a
// ticket is opened from their message.
package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ticket-intake-go/internal/model"
)

// Sender delivers a complete RFC 5322 message.
type Sender interface {
	Send(ctx context.Context, from string, to []string, raw []byte) error
}

// Notifier acknowledges created tickets to the sender of the source message
type Notifier struct {
	sender Sender
	from   string
	now    func() time.Time
}

// New creates a notifier that sends from the given address
func New(sender Sender, from string) *Notifier {
	return &Notifier{sender: sender, from: from, now: time.Now}
}

// Acknowledge tells the requester which ticket was opened. Messages without
// a ticket are not acknowledged.
func (n *Notifier) Acknowledge(ctx context.Context, msg *model.InboundMessage, ticket *model.Ticket) error {
	if ticket == nil || msg.From == "" {
		return nil
	}

	raw, err := BuildAcknowledgement(n.from, msg, ticket, n.now())
	if err != nil {
		return fmt.Errorf("failed to build acknowledgement: %w", err)
	}

	if err := n.sender.Send(ctx, n.from, []string{msg.From}, raw); err != nil {
		return fmt.Errorf("failed to send acknowledgement: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"ticket_id":  ticket.ID,
	}).Info("Acknowledgement sent")
	return nil
}

// BuildAcknowledgement renders the acknowledgement as a plain text reply
// threaded on the source message.
func BuildAcknowledgement(from string, msg *model.InboundMessage, ticket *model.Ticket, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: msg.From}})
	h.SetSubject(fmt.Sprintf("[Ticket %s] %s", ticket.ID, ticket.Title))
	h.SetMessageID(uuid.NewString() + "@ticket-intake")
	if msg.ID != "" {
		h.SetMsgIDList("In-Reply-To", []string{msg.ID})
		h.SetMsgIDList("References", append(append([]string(nil), msg.References...), msg.ID))
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Auto-Submitted", "auto-replied")
	h.Set("X-Ticket-ID", ticket.ID)

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	body := fmt.Sprintf("Hello,\r\n\r\nYour request has been received and ticket %s was opened.\r\n\r\n"+
		"Title: %s\r\nPriority: %s\r\nStatus: %s\r\n\r\nPlease keep the ticket number in the subject when replying.\r\n",
		ticket.ID, ticket.Title, ticket.Priority, ticket.Status)
	if _, err := io.WriteString(w, body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
