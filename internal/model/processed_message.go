package model

import (
	"time"
)

// ProcessedMessage records the outcome of ingesting a message so that
// re-ingesting the same message id returns the same result.
type ProcessedMessage struct {
	MessageID    string    `json:"message_id" gorm:"primaryKey;type:varchar(255)"`
	RuleApplied  string    `json:"rule_applied,omitempty" gorm:"type:varchar(64)"`
	TicketID     string    `json:"ticket_id,omitempty" gorm:"type:varchar(64);index"`
	Ignored      bool      `json:"ignored"`
	AutoAssigned bool      `json:"auto_assigned"`
	ImportedAt   time.Time `json:"imported_at"`
}

// TableName specifies the table name for ProcessedMessage
func (ProcessedMessage) TableName() string {
	return "processed_messages"
}
