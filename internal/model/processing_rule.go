package model

import (
	"time"

	"gorm.io/gorm"
)

// ConditionField names the part of a message a condition inspects.
type ConditionField string

const (
	FieldSender         ConditionField = "sender"
	FieldRecipient      ConditionField = "recipient"
	FieldSubject        ConditionField = "subject"
	FieldBody           ConditionField = "body"
	FieldHasAttachments ConditionField = "has_attachments"
)

// Operator is the comparison a condition applies.
type Operator string

const (
	OpContains   Operator = "contains"
	OpEquals     Operator = "equals"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpRegex      Operator = "regex"
)

// ActionType is the kind of mutation an action applies to a ticket draft.
type ActionType string

const (
	ActionCreateTicket     ActionType = "create_ticket"
	ActionAssignCategory   ActionType = "assign_category"
	ActionSetPriority      ActionType = "set_priority"
	ActionAssignTechnician ActionType = "assign_technician"
	ActionAddTag           ActionType = "add_tag"
	ActionIgnore           ActionType = "ignore"
)

// Condition is a single predicate over an inbound message.
type Condition struct {
	Field         ConditionField `json:"field"`
	Operator      Operator       `json:"operator"`
	Value         string         `json:"value"`
	CaseSensitive bool           `json:"case_sensitive"`
}

// Action is a single step executed when a rule matches.
type Action struct {
	Type  ActionType `json:"type"`
	Value string     `json:"value"`
}

// ProcessingRule represents a user-authored intake rule in the database.
// Rules with a lower Priority are evaluated first.
type ProcessingRule struct {
	ID         string         `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Name       string         `json:"name" gorm:"type:varchar(255);not null"`
	Active     bool           `json:"active" gorm:"index"`
	Conditions []Condition    `json:"conditions" gorm:"serializer:json;type:text;not null"`
	Actions    []Action       `json:"actions" gorm:"serializer:json;type:text;not null"`
	Priority   int            `json:"priority" gorm:"not null;index"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for ProcessingRule
func (ProcessingRule) TableName() string {
	return "processing_rules"
}
