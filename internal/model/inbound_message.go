package model

import (
	"time"

	"gorm.io/datatypes"
)

// InboundMessage is a mail message handed to the intake pipeline by a fetcher.
// It is never modified after it has been received.
type InboundMessage struct {
	ID          string            `json:"id" gorm:"primaryKey;type:varchar(255)"`
	AccountID   string            `json:"account_id" gorm:"type:varchar(255);index"`
	From        string            `json:"from" gorm:"type:varchar(255);not null"`
	To          []string          `json:"to" gorm:"serializer:json;type:text"`
	CC          []string          `json:"cc" gorm:"serializer:json;type:text"`
	Subject     string            `json:"subject" gorm:"type:text"`
	Body        string            `json:"body" gorm:"type:text"`
	HTMLBody    string            `json:"html_body,omitempty" gorm:"type:text"`
	Attachments []Attachment      `json:"attachments" gorm:"serializer:json;type:text"`
	ReceivedAt  time.Time         `json:"received_at"`
	IsReply     bool              `json:"is_reply"`
	InReplyTo   string            `json:"in_reply_to,omitempty" gorm:"type:varchar(255)"`
	References  []string          `json:"references,omitempty" gorm:"serializer:json;type:text"`
	Headers     datatypes.JSONMap `json:"headers,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`

	// ProviderRef identifies the message at the mailbox (IMAP UID, Gmail id).
	ProviderRef string `json:"-" gorm:"-"`
}

// Attachment describes a file attached to an inbound message. Content is not kept.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// TableName specifies the table name for InboundMessage
func (InboundMessage) TableName() string {
	return "inbound_messages"
}

// Recipients returns the To and CC addresses in order.
func (m *InboundMessage) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.CC))
	out = append(out, m.To...)
	return append(out, m.CC...)
}

// HasAttachments reports whether the message carries at least one attachment.
func (m *InboundMessage) HasAttachments() bool {
	return len(m.Attachments) > 0
}
