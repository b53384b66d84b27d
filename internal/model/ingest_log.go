package model

import (
	"time"
)

// Ingest log statuses.
const (
	IngestTicketCreated = "ticket_created"
	IngestNoTicket      = "no_ticket"
	IngestIgnored       = "ignored"
	IngestError         = "error"
)

// IngestLog represents a log entry for a message ingest attempt
type IngestLog struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	MessageID string    `json:"message_id" gorm:"type:varchar(255);not null;index"`
	RuleID    *string   `json:"rule_id" gorm:"type:varchar(64);index"`
	TicketID  string    `json:"ticket_id,omitempty" gorm:"type:varchar(64)"`
	Status    string    `json:"status" gorm:"type:varchar(50);not null"`
	ErrorMsg  string    `json:"error_msg" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`

	Rule *ProcessingRule `json:"rule,omitempty" gorm:"foreignKey:RuleID"`
}

// TableName specifies the table name for IngestLog
func (IngestLog) TableName() string {
	return "ingest_logs"
}
