// Package pipeline turns inbound messages into tickets using the first
// matching processing rule.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ticket-intake-go/internal/lock"
	"ticket-intake-go/internal/metrics"
	"ticket-intake-go/internal/model"
	"ticket-intake-go/internal/rules"
)

// ErrMissingMessageID is returned for messages without an id.
var ErrMissingMessageID = errors.New("message id is required")

const (
	tagEmailImport = "email-import"
	tagReply       = "reply"
	tagAttachments = "attachments"

	systemCreator = "system:email-intake"
	noSubject     = "(no subject)"
)

// Store persists everything an ingest produces.
type Store interface {
	// GetProcessed returns nil, nil when the message was never processed.
	GetProcessed(ctx context.Context, messageID string) (*model.ProcessedMessage, error)
	SaveProcessed(ctx context.Context, processed *model.ProcessedMessage) error
	// Commit stores the message, the optional ticket and the processed
	// record atomically.
	Commit(ctx context.Context, msg *model.InboundMessage, ticket *model.Ticket, processed *model.ProcessedMessage) error
	GetTicket(ctx context.Context, id string) (*model.Ticket, error)
	ListTechnicians(ctx context.Context) ([]model.Technician, error)
	LogIngest(ctx context.Context, entry *model.IngestLog) error
}

// Assigner is the assignment policy used after a ticket is created.
type Assigner interface {
	AssignToAvailableTechnician(ctx context.Context, ticketID string, pool []model.Technician) (bool, error)
}

// Settings are the account-level defaults applied to an ingest.
type Settings struct {
	AutoCreateTickets bool
	DefaultPriority   model.Priority
	DefaultCategory   string
	AutoAssign        bool
}

// Result is the outcome of ingesting one message. Re-ingesting the same
// message id returns the recorded result.
type Result struct {
	MessageID    string        `json:"message_id"`
	Ticket       *model.Ticket `json:"ticket,omitempty"`
	RuleApplied  string        `json:"rule_applied,omitempty"`
	Ignored      bool          `json:"ignored"`
	AutoAssigned bool          `json:"auto_assigned"`
	ImportedAt   time.Time     `json:"imported_at"`
}

// Ingester runs the evaluate, execute, commit sequence for each message.
// Ingests of different messages may run concurrently.
type Ingester struct {
	store     Store
	assigner  Assigner
	evaluator *rules.Evaluator
	locker    lock.Locker
	metrics   *metrics.Metrics
	now       func() time.Time
	newID     func() string
}

// NewIngester creates a new ingester. assigner and m may be nil.
func NewIngester(store Store, assigner Assigner, evaluator *rules.Evaluator, m *metrics.Metrics) *Ingester {
	if evaluator == nil {
		evaluator = rules.NewEvaluator()
	}
	return &Ingester{
		store:     store,
		assigner:  assigner,
		evaluator: evaluator,
		locker:    lock.NewKeyedMutex(),
		metrics:   m,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// SetLocker replaces the per-message locker, e.g. with a Redis locker when
// several replicas poll the same mailbox.
func (in *Ingester) SetLocker(l lock.Locker) {
	in.locker = l
}

// Ingest processes msg against ruleSet. Only the first active rule in
// priority order whose conditions all match is applied. An
// *rules.InvalidActionValueError leaves the message unprocessed.
func (in *Ingester) Ingest(ctx context.Context, msg *model.InboundMessage, ruleSet []model.ProcessingRule, settings Settings) (*Result, error) {
	if msg.ID == "" {
		return nil, ErrMissingMessageID
	}

	unlock, err := in.locker.Lock(ctx, "message:"+msg.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock message %s: %w", msg.ID, err)
	}
	defer unlock()

	log := logrus.WithField("message_id", msg.ID)

	prev, err := in.store.GetProcessed(ctx, msg.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check if message is processed: %w", err)
	}
	if prev != nil {
		log.Debug("Message already processed, returning recorded result")
		return in.resultFrom(ctx, prev)
	}

	snapshot := rules.ActiveSorted(ruleSet)
	var matched *model.ProcessingRule
	for i := range snapshot {
		if in.evaluator.Matches(&snapshot[i], msg) {
			matched = &snapshot[i]
			break
		}
	}

	var draft *rules.Draft
	switch {
	case matched != nil:
		log = log.WithField("rule_id", matched.ID)
		if in.metrics != nil {
			in.metrics.RuleMatches.WithLabelValues(matched.ID).Inc()
		}
		draft, err = rules.Apply(matched.Actions, msg)
		if err != nil {
			in.logIngest(ctx, msg.ID, &matched.ID, "", model.IngestError, err.Error())
			if in.metrics != nil {
				in.metrics.IngestFailures.Inc()
			}
			return nil, fmt.Errorf("rule %s: %w", matched.ID, err)
		}
	case settings.AutoCreateTickets:
		draft = &rules.Draft{}
	default:
		draft = &rules.Draft{NoTicket: true}
	}

	processed := &model.ProcessedMessage{
		MessageID:  msg.ID,
		Ignored:    draft.Ignored,
		ImportedAt: in.now(),
	}
	var ruleID *string
	if matched != nil {
		processed.RuleApplied = matched.ID
		ruleID = &matched.ID
	}

	var pool []model.Technician
	var ticket *model.Ticket
	if !draft.NoTicket {
		pool, err = in.store.ListTechnicians(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list technicians: %w", err)
		}
		ticket = in.buildTicket(msg, draft, settings, pool)
		processed.TicketID = ticket.ID
	}

	if err := in.store.Commit(ctx, msg, ticket, processed); err != nil {
		if in.metrics != nil {
			in.metrics.IngestFailures.Inc()
		}
		return nil, fmt.Errorf("failed to commit message %s: %w", msg.ID, err)
	}
	if in.metrics != nil {
		in.metrics.MessagesIngested.Inc()
	}

	switch {
	case ticket == nil && draft.Ignored:
		log.Info("Message ignored by rule")
		in.logIngest(ctx, msg.ID, ruleID, "", model.IngestIgnored, "")
	case ticket == nil:
		log.Info("Message processed without ticket")
		in.logIngest(ctx, msg.ID, ruleID, "", model.IngestNoTicket, "")
	default:
		log.WithField("ticket_id", ticket.ID).Info("Ticket created from message")
		in.logIngest(ctx, msg.ID, ruleID, ticket.ID, model.IngestTicketCreated, "")
		if in.metrics != nil {
			in.metrics.TicketsCreated.Inc()
		}
	}

	if ticket != nil && ticket.IsUnassigned() && settings.AutoAssign && in.assigner != nil {
		ticket = in.autoAssign(ctx, ticket, pool, processed)
	}

	return &Result{
		MessageID:    msg.ID,
		Ticket:       ticket,
		RuleApplied:  processed.RuleApplied,
		Ignored:      processed.Ignored,
		AutoAssigned: processed.AutoAssigned,
		ImportedAt:   processed.ImportedAt,
	}, nil
}

// autoAssign failures are logged; the ticket stays queued for the sweep.
func (in *Ingester) autoAssign(ctx context.Context, ticket *model.Ticket, pool []model.Technician, processed *model.ProcessedMessage) *model.Ticket {
	log := logrus.WithField("ticket_id", ticket.ID)

	ok, err := in.assigner.AssignToAvailableTechnician(ctx, ticket.ID, pool)
	if err != nil {
		log.Warnf("Auto-assignment failed: %v", err)
		return ticket
	}
	if !ok {
		if in.metrics != nil {
			in.metrics.AssignMisses.Inc()
		}
		log.Info("No eligible technician, ticket left unassigned")
		return ticket
	}
	if in.metrics != nil {
		in.metrics.AutoAssigned.Inc()
	}

	processed.AutoAssigned = true
	if err := in.store.SaveProcessed(ctx, processed); err != nil {
		log.Warnf("Failed to record auto-assignment on processed message: %v", err)
	}

	updated, err := in.store.GetTicket(ctx, ticket.ID)
	if err != nil {
		log.Warnf("Failed to reload assigned ticket: %v", err)
		return ticket
	}
	return updated
}

func (in *Ingester) buildTicket(msg *model.InboundMessage, d *rules.Draft, settings Settings, pool []model.Technician) *model.Ticket {
	now := in.now()
	t := &model.Ticket{
		ID:              in.newID(),
		Title:           d.Title,
		Description:     d.Description,
		Status:          model.StatusOpen,
		Priority:        d.Priority,
		Category:        d.Category,
		SourceMessageID: msg.ID,
		CreatedBy:       systemCreator,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if t.Title == "" {
		t.Title = CleanSubject(msg.Subject)
		if t.Title == "" {
			t.Title = noSubject
		}
	}
	if t.Description == "" {
		t.Description = msg.Body
		if t.Description == "" && msg.HTMLBody != "" {
			t.Description = HTMLToText(msg.HTMLBody)
		}
	}
	if t.Priority == "" {
		t.Priority = settings.DefaultPriority
		if t.Priority == "" {
			t.Priority = model.PriorityMedium
		}
	}
	if t.Category == "" {
		t.Category = settings.DefaultCategory
	}

	base := &rules.Draft{}
	base.AddTag(tagEmailImport)
	if msg.IsReply {
		base.AddTag(tagReply)
	}
	if msg.HasAttachments() {
		base.AddTag(tagAttachments)
	}
	for _, tag := range d.Tags {
		base.AddTag(tag)
	}
	t.Tags = base.Tags

	known := make(map[string]struct{}, len(pool))
	for _, tech := range pool {
		known[tech.ID] = struct{}{}
	}
	for _, id := range d.Technicians {
		if _, ok := known[id]; !ok {
			logrus.WithFields(logrus.Fields{
				"message_id":    msg.ID,
				"technician_id": id,
			}).Warn("Rule assigns unknown technician, dropping")
			continue
		}
		t.AssignedTechnicians = append(t.AssignedTechnicians, id)
	}
	t.RequiresAssignment = len(t.AssignedTechnicians) == 0

	return t
}

func (in *Ingester) resultFrom(ctx context.Context, p *model.ProcessedMessage) (*Result, error) {
	res := &Result{
		MessageID:    p.MessageID,
		RuleApplied:  p.RuleApplied,
		Ignored:      p.Ignored,
		AutoAssigned: p.AutoAssigned,
		ImportedAt:   p.ImportedAt,
	}
	if p.TicketID != "" {
		ticket, err := in.store.GetTicket(ctx, p.TicketID)
		if err != nil {
			return nil, fmt.Errorf("failed to load ticket %s: %w", p.TicketID, err)
		}
		res.Ticket = ticket
	}
	return res, nil
}

func (in *Ingester) logIngest(ctx context.Context, messageID string, ruleID *string, ticketID, status, errMsg string) {
	entry := &model.IngestLog{
		MessageID: messageID,
		RuleID:    ruleID,
		TicketID:  ticketID,
		Status:    status,
		ErrorMsg:  errMsg,
		CreatedAt: in.now(),
	}
	if err := in.store.LogIngest(ctx, entry); err != nil {
		logrus.WithField("message_id", messageID).Errorf("Failed to write ingest log: %v", err)
	}
}
