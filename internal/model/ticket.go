package model

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Priority is the urgency of a ticket.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority returns the Priority named by s.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.TrimSpace(s)); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return p, nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

// Status is the lifecycle state of a ticket.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusWaiting    Status = "waiting"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// Ticket represents a helpdesk ticket
type Ticket struct {
	ID                  string         `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Title               string         `json:"title" gorm:"type:varchar(512);not null"`
	Description         string         `json:"description" gorm:"type:text"`
	Status              Status         `json:"status" gorm:"type:varchar(32);not null;index"`
	Priority            Priority       `json:"priority" gorm:"type:varchar(32);not null"`
	Category            string         `json:"category" gorm:"type:varchar(255)"`
	Tags                []string       `json:"tags" gorm:"serializer:json;type:text"`
	AssignedTechnicians []string       `json:"assigned_technicians" gorm:"serializer:json;type:text"`
	RequiresAssignment  bool           `json:"requires_assignment" gorm:"index"`
	AutoAssigned        bool           `json:"auto_assigned"`
	AutoAssignAttempts  int            `json:"auto_assign_attempts"`
	SourceMessageID     string         `json:"source_message_id,omitempty" gorm:"type:varchar(255);index"`
	CreatedBy           string         `json:"created_by" gorm:"type:varchar(255)"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for Ticket
func (Ticket) TableName() string {
	return "tickets"
}

// IsUnassigned reports whether the ticket has no technician.
func (t *Ticket) IsUnassigned() bool {
	return len(t.AssignedTechnicians) == 0
}
