// Package assign routes unassigned tickets to an available technician.
package assign

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ticket-intake-go/internal/lock"
	"ticket-intake-go/internal/model"
)

// TicketStore loads and persists tickets for the policy.
type TicketStore interface {
	GetTicket(ctx context.Context, id string) (*model.Ticket, error)
	SaveTicket(ctx context.Context, ticket *model.Ticket) error
}

// AreaSource lists support areas for keyword matching.
type AreaSource interface {
	ListSupportAreas(ctx context.Context) ([]model.SupportArea, error)
}

// Policy assigns tickets to the first eligible technician. Attempts on the
// same ticket are serialized through a Locker keyed by ticket id.
type Policy struct {
	tickets TicketStore
	locker  lock.Locker
	areas   AreaSource
}

// Option configures a Policy.
type Option func(*Policy)

// WithLocker replaces the default in-process locker.
func WithLocker(l lock.Locker) Option {
	return func(p *Policy) {
		p.locker = l
	}
}

// WithKeywordMatching makes the policy prefer technicians serving a support
// area whose keywords appear in the ticket.
func WithKeywordMatching(src AreaSource) Option {
	return func(p *Policy) {
		p.areas = src
	}
}

// NewPolicy creates a new assignment policy
func NewPolicy(tickets TicketStore, opts ...Option) *Policy {
	p := &Policy{
		tickets: tickets,
		locker:  lock.NewKeyedMutex(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AssignToAvailableTechnician assigns the ticket to an eligible technician
// from pool. It returns false without touching the ticket when the ticket
// already has a technician or nobody in pool is eligible.
func (p *Policy) AssignToAvailableTechnician(ctx context.Context, ticketID string, pool []model.Technician) (bool, error) {
	unlock, err := p.locker.Lock(ctx, "ticket:"+ticketID)
	if err != nil {
		return false, fmt.Errorf("failed to lock ticket %s: %w", ticketID, err)
	}
	defer unlock()

	ticket, err := p.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return false, fmt.Errorf("failed to load ticket %s: %w", ticketID, err)
	}
	if !ticket.IsUnassigned() {
		return false, nil
	}

	tech := p.selectTechnician(ctx, ticket, pool)
	if tech == nil {
		logrus.WithField("ticket_id", ticketID).Debug("No eligible technician available")
		return false, nil
	}

	ticket.AssignedTechnicians = append(ticket.AssignedTechnicians, tech.ID)
	ticket.AutoAssigned = true
	ticket.RequiresAssignment = false
	ticket.AutoAssignAttempts++
	ticket.UpdatedAt = time.Now()

	if err := p.tickets.SaveTicket(ctx, ticket); err != nil {
		return false, fmt.Errorf("failed to save assignment for ticket %s: %w", ticketID, err)
	}

	logrus.WithFields(logrus.Fields{
		"ticket_id":     ticketID,
		"technician_id": tech.ID,
	}).Info("Ticket auto-assigned")
	return true, nil
}

func (p *Policy) selectTechnician(ctx context.Context, ticket *model.Ticket, pool []model.Technician) *model.Technician {
	var first *model.Technician
	for i := range pool {
		if Eligible(&pool[i]) {
			first = &pool[i]
			break
		}
	}
	if first == nil || p.areas == nil {
		return first
	}

	areas, err := p.areas.ListSupportAreas(ctx)
	if err != nil {
		logrus.Warnf("Failed to load support areas, using first eligible technician: %v", err)
		return first
	}
	matched := MatchAreas(ticket, areas)
	if len(matched) == 0 {
		return first
	}
	for i := range pool {
		if !Eligible(&pool[i]) {
			continue
		}
		for _, id := range pool[i].SupportAreas {
			if _, ok := matched[id]; ok {
				return &pool[i]
			}
		}
	}
	return first
}

// Eligible reports whether a technician may receive tickets: technician
// role, active, online and serving at least one support area.
func Eligible(t *model.Technician) bool {
	return t.Role == model.RoleTechnician &&
		t.IsActive &&
		t.IsOnline &&
		len(t.SupportAreas) > 0
}

// MatchAreas returns the ids of areas with a keyword found in the ticket's
// title, description or category.
func MatchAreas(ticket *model.Ticket, areas []model.SupportArea) map[string]struct{} {
	text := strings.ToLower(ticket.Title + " " + ticket.Description + " " + ticket.Category)
	matched := make(map[string]struct{})
	for _, area := range areas {
		for _, kw := range area.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(text, kw) {
				matched[area.ID] = struct{}{}
				break
			}
		}
	}
	return matched
}

// Unassigned filters tickets waiting for a technician: not closed, no
// technician and flagged as requiring assignment.
func Unassigned(tickets []model.Ticket) []model.Ticket {
	var out []model.Ticket
	for _, t := range tickets {
		if t.Status != model.StatusClosed && t.IsUnassigned() && t.RequiresAssignment {
			out = append(out, t)
		}
	}
	return out
}
