package assign

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-intake-go/internal/model"
)

// memTickets implements TicketStore for testing.
type memTickets struct {
	mu      sync.Mutex
	tickets map[string]model.Ticket
	saves   int
}

func newMemTickets(tickets ...model.Ticket) *memTickets {
	m := &memTickets{tickets: make(map[string]model.Ticket)}
	for _, t := range tickets {
		m.tickets[t.ID] = t
	}
	return m
}

func (m *memTickets) GetTicket(_ context.Context, id string) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, errors.New("ticket not found")
	}
	t.AssignedTechnicians = append([]string(nil), t.AssignedTechnicians...)
	return &t, nil
}

func (m *memTickets) SaveTicket(_ context.Context, t *model.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.tickets[t.ID] = *t
	return nil
}

type staticAreas []model.SupportArea

func (s staticAreas) ListSupportAreas(context.Context) ([]model.SupportArea, error) {
	return s, nil
}

func tech(id string, online bool, areas ...string) model.Technician {
	return model.Technician{ID: id, Role: model.RoleTechnician, IsActive: true, IsOnline: online, SupportAreas: areas}
}

func openTicket(id string) model.Ticket {
	return model.Ticket{ID: id, Title: "Printer jam", Status: model.StatusOpen, RequiresAssignment: true}
}

func TestAssignFirstEligible(t *testing.T) {
	store := newMemTickets(openTicket("t1"))
	p := NewPolicy(store)

	pool := []model.Technician{
		tech("offline", false, "hw"),
		{ID: "inactive", Role: model.RoleTechnician, IsActive: false, IsOnline: true, SupportAreas: []string{"hw"}},
		{ID: "admin", Role: "admin", IsActive: true, IsOnline: true, SupportAreas: []string{"hw"}},
		tech("tech-2", true, "net"),
		tech("tech-3", true, "hw"),
	}

	ok, err := p.AssignToAvailableTechnician(context.Background(), "t1", pool)
	require.NoError(t, err)
	assert.True(t, ok)

	got := store.tickets["t1"]
	assert.Equal(t, []string{"tech-2"}, got.AssignedTechnicians)
	assert.True(t, got.AutoAssigned)
	assert.False(t, got.RequiresAssignment)
	assert.Equal(t, 1, got.AutoAssignAttempts)
}

func TestAssignNoSupportAreas(t *testing.T) {
	ticket := openTicket("t1")
	store := newMemTickets(ticket)
	p := NewPolicy(store)

	ok, err := p.AssignToAvailableTechnician(context.Background(), "t1", []model.Technician{tech("tech-1", true)})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, ticket, store.tickets["t1"])
	assert.Equal(t, 0, store.saves)
}

func TestAssignAlreadyAssigned(t *testing.T) {
	ticket := openTicket("t1")
	ticket.AssignedTechnicians = []string{"someone"}
	store := newMemTickets(ticket)

	ok, err := NewPolicy(store).AssignToAvailableTechnician(context.Background(), "t1", []model.Technician{tech("tech-1", true, "hw")})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, store.saves)
}

func TestAssignMissingTicket(t *testing.T) {
	_, err := NewPolicy(newMemTickets()).AssignToAvailableTechnician(context.Background(), "nope", nil)
	assert.Error(t, err)
}

func TestAssignConcurrentSingleWinner(t *testing.T) {
	store := newMemTickets(openTicket("t1"))
	p := NewPolicy(store)
	pool := []model.Technician{tech("tech-1", true, "hw"), tech("tech-2", true, "hw")}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := p.AssignToAvailableTechnician(context.Background(), "t1", pool)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Len(t, store.tickets["t1"].AssignedTechnicians, 1)
	assert.Equal(t, 1, store.saves)
}

func TestAssignKeywordMatching(t *testing.T) {
	store := newMemTickets(openTicket("t1"), model.Ticket{ID: "t2", Title: "Password reset", Status: model.StatusOpen, RequiresAssignment: true})
	areas := staticAreas{
		{ID: "hw", Keywords: []string{"printer", "impresora"}},
		{ID: "net", Keywords: []string{"wifi", "vpn"}},
	}
	p := NewPolicy(store, WithKeywordMatching(areas))
	pool := []model.Technician{tech("net-tech", true, "net"), tech("hw-tech", true, "hw")}

	ok, err := p.AssignToAvailableTechnician(context.Background(), "t1", pool)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"hw-tech"}, store.tickets["t1"].AssignedTechnicians)

	// no keyword hit falls back to the first eligible technician
	ok, err = p.AssignToAvailableTechnician(context.Background(), "t2", pool)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"net-tech"}, store.tickets["t2"].AssignedTechnicians)
}

func TestUnassigned(t *testing.T) {
	closed := openTicket("closed")
	closed.Status = model.StatusClosed
	assigned := openTicket("assigned")
	assigned.AssignedTechnicians = []string{"x"}
	notFlagged := openTicket("manual")
	notFlagged.RequiresAssignment = false

	out := Unassigned([]model.Ticket{openTicket("a"), closed, assigned, notFlagged})
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ID)
}
