package fetcher

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"gorm.io/datatypes"

	"ticket-intake-go/internal/model"
)

var replySubject = regexp.MustCompile(`(?i)^\s*re\s*:`)

// ParseMessage reads an RFC 5322 message into an InboundMessage. The ID is
// the Message-ID header and is empty when the header is missing; callers
// fall back to a provider id.
func ParseMessage(r io.Reader, accountID string) (*model.InboundMessage, error) {
	reader, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	defer reader.Close()

	msg := &model.InboundMessage{
		AccountID: accountID,
		Headers:   datatypes.JSONMap{},
	}

	h := reader.Header
	if id, err := h.MessageID(); err == nil {
		msg.ID = id
	}
	if subject, err := h.Subject(); err == nil {
		msg.Subject = subject
	}
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].Address
	}
	msg.To = addresses(h, "To")
	msg.CC = addresses(h, "Cc")

	if date, err := h.Date(); err == nil && !date.IsZero() {
		msg.ReceivedAt = date
	} else {
		msg.ReceivedAt = time.Now()
	}

	if ids, err := h.MsgIDList("In-Reply-To"); err == nil && len(ids) > 0 {
		msg.InReplyTo = ids[0]
	}
	if ids, err := h.MsgIDList("References"); err == nil {
		msg.References = ids
	}
	msg.IsReply = msg.InReplyTo != "" || len(msg.References) > 0 || replySubject.MatchString(msg.Subject)

	fields := h.Fields()
	for fields.Next() {
		key := fields.Key()
		if _, ok := msg.Headers[key]; ok {
			continue
		}
		if v, err := fields.Text(); err == nil {
			msg.Headers[key] = v
		} else {
			msg.Headers[key] = fields.Value()
		}
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return msg, fmt.Errorf("failed to read part: %w", err)
		}

		switch header := part.Header.(type) {
		case *mail.InlineHeader:
			mediaType, _, _ := header.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				return msg, fmt.Errorf("failed to read part body: %w", err)
			}
			switch {
			case strings.HasPrefix(mediaType, "text/plain") || mediaType == "":
				msg.Body = appendText(msg.Body, string(body))
			case strings.HasPrefix(mediaType, "text/html"):
				msg.HTMLBody = appendText(msg.HTMLBody, string(body))
			}
		case *mail.AttachmentHeader:
			filename, _ := header.Filename()
			if strings.TrimSpace(filename) == "" {
				filename = "attachment"
			}
			contentType, _, _ := header.ContentType()
			size, err := io.Copy(io.Discard, part.Body)
			if err != nil {
				return msg, fmt.Errorf("failed to read attachment: %w", err)
			}
			msg.Attachments = append(msg.Attachments, model.Attachment{
				ID:          strconv.Itoa(len(msg.Attachments) + 1),
				Filename:    filename,
				ContentType: contentType,
				Size:        size,
			})
		}
	}

	msg.Body = strings.TrimSpace(msg.Body)
	return msg, nil
}

func addresses(h mail.Header, key string) []string {
	list, err := h.AddressList(key)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, addr := range list {
		out = append(out, addr.Address)
	}
	return out
}

func appendText(dst, s string) string {
	if dst == "" {
		return s
	}
	return dst + "\n" + s
}
