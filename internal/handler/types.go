package handler

import (
	"time"

	"ticket-intake-go/internal/model"
)

// RuleRequest represents the request structure for creating/updating processing rules
type RuleRequest struct {
	Name       string            `json:"name" binding:"required"`
	Active     *bool             `json:"active"`
	Priority   int               `json:"priority" binding:"min=0"`
	Conditions []model.Condition `json:"conditions"`
	Actions    []model.Action    `json:"actions"`
}

func (r *RuleRequest) toModel() *model.ProcessingRule {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return &model.ProcessingRule{
		Name:       r.Name,
		Active:     active,
		Priority:   r.Priority,
		Conditions: r.Conditions,
		Actions:    r.Actions,
	}
}

// MessageRequest is an inbound message submitted for immediate ingestion
type MessageRequest struct {
	ID          string             `json:"id" binding:"required"`
	AccountID   string             `json:"account_id"`
	From        string             `json:"from" binding:"required"`
	To          []string           `json:"to"`
	CC          []string           `json:"cc"`
	Subject     string             `json:"subject"`
	Body        string             `json:"body"`
	HTMLBody    string             `json:"html_body"`
	Attachments []model.Attachment `json:"attachments"`
	ReceivedAt  *time.Time         `json:"received_at"`
	IsReply     bool               `json:"is_reply"`
	InReplyTo   string             `json:"in_reply_to"`
	References  []string           `json:"references"`
}

func (r *MessageRequest) toModel() *model.InboundMessage {
	received := time.Now()
	if r.ReceivedAt != nil {
		received = *r.ReceivedAt
	}
	return &model.InboundMessage{
		ID:          r.ID,
		AccountID:   r.AccountID,
		From:        r.From,
		To:          r.To,
		CC:          r.CC,
		Subject:     r.Subject,
		Body:        r.Body,
		HTMLBody:    r.HTMLBody,
		Attachments: r.Attachments,
		ReceivedAt:  received,
		IsReply:     r.IsReply || r.InReplyTo != "",
		InReplyTo:   r.InReplyTo,
		References:  r.References,
	}
}

// MessageResponse is a stored message with its processing record
type MessageResponse struct {
	Message   *model.InboundMessage   `json:"message"`
	Processed *model.ProcessedMessage `json:"processed,omitempty"`
}

// AssignResponse is the outcome of a manual assignment request
type AssignResponse struct {
	Assigned bool          `json:"assigned"`
	Ticket   *model.Ticket `json:"ticket"`
}

// TechnicianRequest represents the request structure for creating/updating technicians
type TechnicianRequest struct {
	Name         string   `json:"name" binding:"required"`
	Email        string   `json:"email" binding:"required,email"`
	Role         string   `json:"role"`
	IsActive     *bool    `json:"is_active"`
	IsOnline     bool     `json:"is_online"`
	SupportAreas []string `json:"support_areas"`
}

// SupportAreaRequest represents the request structure for creating support areas
type SupportAreaRequest struct {
	Department string   `json:"department"`
	Name       string   `json:"name" binding:"required"`
	Keywords   []string `json:"keywords"`
	Priority   int      `json:"priority"`
}

// RuleSummary is the rule attached to an ingest log entry
type RuleSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Active   bool   `json:"active"`
}

// IngestLogResponse represents the response structure for ingest logs
type IngestLogResponse struct {
	ID        uint         `json:"id"`
	MessageID string       `json:"message_id"`
	RuleID    *string      `json:"rule_id"`
	TicketID  string       `json:"ticket_id,omitempty"`
	Status    string       `json:"status"`
	ErrorMsg  string       `json:"error_msg"`
	CreatedAt time.Time    `json:"created_at"`
	Rule      *RuleSummary `json:"rule,omitempty"`
}

func newIngestLogResponse(log *model.IngestLog) IngestLogResponse {
	response := IngestLogResponse{
		ID:        log.ID,
		MessageID: log.MessageID,
		RuleID:    log.RuleID,
		TicketID:  log.TicketID,
		Status:    log.Status,
		ErrorMsg:  log.ErrorMsg,
		CreatedAt: log.CreatedAt,
	}
	if log.Rule != nil {
		response.Rule = &RuleSummary{
			ID:       log.Rule.ID,
			Name:     log.Rule.Name,
			Priority: log.Rule.Priority,
			Active:   log.Rule.Active,
		}
	}
	return response
}

// Pagination describes a page of results
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
