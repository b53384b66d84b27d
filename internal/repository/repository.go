// Package repository stores rules, messages, tickets and technicians with GORM.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ticket-intake-go/internal/model"
	"ticket-intake-go/internal/rules"
)

var (
	ErrRuleNotFound       = errors.New("rule not found")
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrTechnicianNotFound = errors.New("technician not found")
	ErrMessageNotFound    = errors.New("message not found")
	ErrLogNotFound        = errors.New("log not found")
)

type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// CreateRule validates and stores a new rule. An empty ID gets a generated one.
func (r *Repository) CreateRule(ctx context.Context, rule *model.ProcessingRule) error {
	if err := rules.Validate(rule); err != nil {
		return err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

// GetRule returns the rule with the given id
func (r *Repository) GetRule(ctx context.Context, id string) (*model.ProcessingRule, error) {
	var rule model.ProcessingRule
	if err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return &rule, nil
}

// UpdateRule replaces the editable fields of rule id with those of update.
func (r *Repository) UpdateRule(ctx context.Context, id string, update *model.ProcessingRule) (*model.ProcessingRule, error) {
	rule, err := r.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	rule.Name = update.Name
	rule.Active = update.Active
	rule.Priority = update.Priority
	rule.Conditions = update.Conditions
	rule.Actions = update.Actions
	if err := rules.Validate(rule); err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Save(rule).Error; err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}
	return rule, nil
}

// DeleteRule soft-deletes a rule. Ingest logs keep referring to it.
func (r *Repository) DeleteRule(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&model.ProcessingRule{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// SetRuleActive enables or disables a rule
func (r *Repository) SetRuleActive(ctx context.Context, id string, active bool) (*model.ProcessingRule, error) {
	rule, err := r.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(rule).Update("active", active).Error; err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}
	rule.Active = active
	return rule, nil
}

// ListRules returns all rules ordered by priority
func (r *Repository) ListRules(ctx context.Context) ([]model.ProcessingRule, error) {
	var out []model.ProcessingRule
	if err := r.db.WithContext(ctx).Order("priority ASC").Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to get rules: %w", err)
	}
	return out, nil
}

// ListActiveRules returns the active rules ordered by priority
func (r *Repository) ListActiveRules(ctx context.Context) ([]model.ProcessingRule, error) {
	var out []model.ProcessingRule
	if err := r.db.WithContext(ctx).Where("active = ?", true).
		Order("priority ASC").Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to get active rules: %w", err)
	}
	return out, nil
}

// GetMessage returns a stored inbound message
func (r *Repository) GetMessage(ctx context.Context, id string) (*model.InboundMessage, error) {
	var msg model.InboundMessage
	if err := r.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

// GetProcessed returns nil, nil when the message was never processed.
func (r *Repository) GetProcessed(ctx context.Context, messageID string) (*model.ProcessedMessage, error) {
	var processed model.ProcessedMessage
	err := r.db.WithContext(ctx).First(&processed, "message_id = ?", messageID).Error
	if err == nil {
		return &processed, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("database error checking processed message: %w", err)
}

// SaveProcessed inserts or replaces the processed record of a message
func (r *Repository) SaveProcessed(ctx context.Context, processed *model.ProcessedMessage) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(processed).Error
	if err != nil {
		return fmt.Errorf("failed to mark message as processed: %w", err)
	}
	return nil
}

// Commit stores the message, the optional ticket and the processed record in
// one transaction.
func (r *Repository) Commit(ctx context.Context, msg *model.InboundMessage, ticket *model.Ticket, processed *model.ProcessedMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(msg).Error; err != nil {
			return fmt.Errorf("failed to store message: %w", err)
		}
		if ticket != nil {
			if err := tx.Create(ticket).Error; err != nil {
				return fmt.Errorf("failed to create ticket: %w", err)
			}
		}
		if err := tx.Create(processed).Error; err != nil {
			return fmt.Errorf("failed to mark message as processed: %w", err)
		}
		return nil
	})
}

// GetTicket returns the ticket with the given id
func (r *Repository) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	var ticket model.Ticket
	if err := r.db.WithContext(ctx).First(&ticket, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return &ticket, nil
}

// SaveTicket writes every field of an existing ticket
func (r *Repository) SaveTicket(ctx context.Context, ticket *model.Ticket) error {
	if err := r.db.WithContext(ctx).Save(ticket).Error; err != nil {
		return fmt.Errorf("failed to save ticket: %w", err)
	}
	return nil
}

// TicketFilter narrows ListTickets. Zero values match everything.
type TicketFilter struct {
	Status   model.Status
	Priority model.Priority
	Category string
	Limit    int
	Offset   int
}

// ListTickets returns tickets, newest first
func (r *Repository) ListTickets(ctx context.Context, f TicketFilter) ([]model.Ticket, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Ticket{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	var out []model.Ticket
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get tickets: %w", err)
	}
	return out, total, nil
}

// ListOpenTickets returns every ticket that is not closed, oldest first.
func (r *Repository) ListOpenTickets(ctx context.Context) ([]model.Ticket, error) {
	var out []model.Ticket
	if err := r.db.WithContext(ctx).Where("status <> ?", model.StatusClosed).
		Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to get open tickets: %w", err)
	}
	return out, nil
}

// CreateTechnician stores a new technician. An empty ID gets a generated one.
func (r *Repository) CreateTechnician(ctx context.Context, tech *model.Technician) error {
	if tech.ID == "" {
		tech.ID = uuid.NewString()
	}
	if tech.Role == "" {
		tech.Role = model.RoleTechnician
	}
	if err := r.db.WithContext(ctx).Create(tech).Error; err != nil {
		return fmt.Errorf("failed to create technician: %w", err)
	}
	return nil
}

// GetTechnician returns the technician with the given id
func (r *Repository) GetTechnician(ctx context.Context, id string) (*model.Technician, error) {
	var tech model.Technician
	if err := r.db.WithContext(ctx).First(&tech, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTechnicianNotFound
		}
		return nil, fmt.Errorf("failed to get technician: %w", err)
	}
	return &tech, nil
}

// SaveTechnician writes every field of an existing technician
func (r *Repository) SaveTechnician(ctx context.Context, tech *model.Technician) error {
	if err := r.db.WithContext(ctx).Save(tech).Error; err != nil {
		return fmt.Errorf("failed to save technician: %w", err)
	}
	return nil
}

// ListTechnicians returns the technician pool in creation order. The
// assignment policy picks the first eligible entry, so the order is stable.
func (r *Repository) ListTechnicians(ctx context.Context) ([]model.Technician, error) {
	var out []model.Technician
	if err := r.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to get technicians: %w", err)
	}
	return out, nil
}

// CreateSupportArea stores a new support area
func (r *Repository) CreateSupportArea(ctx context.Context, area *model.SupportArea) error {
	if area.ID == "" {
		area.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(area).Error; err != nil {
		return fmt.Errorf("failed to create support area: %w", err)
	}
	return nil
}

// ListSupportAreas returns support areas ordered by priority
func (r *Repository) ListSupportAreas(ctx context.Context) ([]model.SupportArea, error) {
	var out []model.SupportArea
	if err := r.db.WithContext(ctx).Order("priority ASC").Order("name ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to get support areas: %w", err)
	}
	return out, nil
}

// LogIngest writes an ingest log entry
func (r *Repository) LogIngest(ctx context.Context, entry *model.IngestLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to log ingest attempt: %w", err)
	}
	return nil
}

// ListLogs returns one page of ingest logs, newest first, with the total count.
func (r *Repository) ListLogs(ctx context.Context, page, limit int) ([]model.IngestLog, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.IngestLog{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count logs: %w", err)
	}

	var logs []model.IngestLog
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).Preload("Rule").Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch logs: %w", err)
	}
	return logs, total, nil
}

// GetLog returns a single ingest log entry
func (r *Repository) GetLog(ctx context.Context, id uint) (*model.IngestLog, error) {
	var entry model.IngestLog
	if err := r.db.WithContext(ctx).Preload("Rule").First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLogNotFound
		}
		return nil, fmt.Errorf("failed to fetch log: %w", err)
	}
	return &entry, nil
}
