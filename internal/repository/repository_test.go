package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-intake-go/internal/db"
	"ticket-intake-go/internal/model"
	"ticket-intake-go/internal/rules"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	gdb, err := db.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return New(gdb)
}

func testRule(name string, priority int) *model.ProcessingRule {
	return &model.ProcessingRule{
		Name:     name,
		Active:   true,
		Priority: priority,
		Conditions: []model.Condition{
			{Field: model.FieldSubject, Operator: model.OpContains, Value: "impresora"},
		},
		Actions: []model.Action{
			{Type: model.ActionSetPriority, Value: "high"},
			{Type: model.ActionAssignCategory, Value: "hardware"},
		},
	}
}

func TestRuleCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := testRule("printers", 2)
	require.NoError(t, repo.CreateRule(ctx, rule))
	assert.NotEmpty(t, rule.ID)

	got, err := repo.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "printers", got.Name)
	assert.Equal(t, rule.Conditions, got.Conditions)
	assert.Equal(t, rule.Actions, got.Actions)

	update := testRule("printers and scanners", 1)
	update.Conditions = append(update.Conditions, model.Condition{Field: model.FieldBody, Operator: model.OpRegex, Value: "scan(ner)?"})
	updated, err := repo.UpdateRule(ctx, rule.ID, update)
	require.NoError(t, err)
	assert.Equal(t, "printers and scanners", updated.Name)
	assert.Len(t, updated.Conditions, 2)

	disabled, err := repo.SetRuleActive(ctx, rule.ID, false)
	require.NoError(t, err)
	assert.False(t, disabled.Active)

	got, err = repo.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, 1, got.Priority)

	require.NoError(t, repo.DeleteRule(ctx, rule.ID))
	_, err = repo.GetRule(ctx, rule.ID)
	assert.ErrorIs(t, err, ErrRuleNotFound)
	assert.ErrorIs(t, repo.DeleteRule(ctx, rule.ID), ErrRuleNotFound)
}

func TestCreateRuleRejectsInvalid(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	noActions := testRule("empty", 1)
	noActions.Actions = nil
	assert.ErrorIs(t, repo.CreateRule(ctx, noActions), rules.ErrInvalidRule)

	noConditions := testRule("empty", 1)
	noConditions.Conditions = nil
	assert.ErrorIs(t, repo.CreateRule(ctx, noConditions), rules.ErrInvalidRule)

	rule := testRule("ok", 1)
	require.NoError(t, repo.CreateRule(ctx, rule))
	bad := testRule("", 1)
	_, err := repo.UpdateRule(ctx, rule.ID, bad)
	assert.ErrorIs(t, err, rules.ErrInvalidRule)

	_, err = repo.UpdateRule(ctx, "missing", testRule("x", 1))
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestListActiveRulesOrdered(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, r := range []*model.ProcessingRule{testRule("five", 5), testRule("two", 2), testRule("one", 1)} {
		require.NoError(t, repo.CreateRule(ctx, r))
	}
	off := testRule("zero", 0)
	off.Active = false
	require.NoError(t, repo.CreateRule(ctx, off))

	active, err := repo.ListActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "one", active[0].Name)
	assert.Equal(t, "two", active[1].Name)
	assert.Equal(t, "five", active[2].Name)

	all, err := repo.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "zero", all[0].Name)
	assert.False(t, all[0].Active)
}

func TestCommitAndProcessed(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p, err := repo.GetProcessed(ctx, "<m1@example.com>")
	require.NoError(t, err)
	assert.Nil(t, p)

	msg := &model.InboundMessage{
		ID:          "<m1@example.com>",
		From:        "cliente@empresa.com",
		To:          []string{"soporte@company.com"},
		Subject:     "Problema con Impresora HP",
		Attachments: []model.Attachment{{ID: "a1", Filename: "foto.jpg", Size: 1024}},
		Headers:     map[string]interface{}{"X-Mailer": "test"},
	}
	ticket := &model.Ticket{
		ID:                 "t-1",
		Title:              msg.Subject,
		Status:             model.StatusOpen,
		Priority:           model.PriorityHigh,
		Tags:               []string{"email-import", "attachments"},
		RequiresAssignment: true,
		SourceMessageID:    msg.ID,
	}
	processed := &model.ProcessedMessage{MessageID: msg.ID, RuleApplied: "r-1", TicketID: "t-1", ImportedAt: time.Now()}

	require.NoError(t, repo.Commit(ctx, msg, ticket, processed))

	p, err = repo.GetProcessed(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "t-1", p.TicketID)

	storedMsg, err := repo.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"soporte@company.com"}, storedMsg.To)
	assert.Equal(t, "foto.jpg", storedMsg.Attachments[0].Filename)
	assert.Equal(t, "test", storedMsg.Headers["X-Mailer"])

	storedTicket, err := repo.GetTicket(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"email-import", "attachments"}, storedTicket.Tags)
	assert.True(t, storedTicket.RequiresAssignment)

	// a second commit for the same message violates the processed primary key
	assert.Error(t, repo.Commit(ctx, msg, nil, processed))

	processed.AutoAssigned = true
	require.NoError(t, repo.SaveProcessed(ctx, processed))
	p, err = repo.GetProcessed(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, p.AutoAssigned)
}

func TestCommitWithoutTicket(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	msg := &model.InboundMessage{ID: "<m2@example.com>", From: "a@example.com"}
	require.NoError(t, repo.Commit(ctx, msg, nil, &model.ProcessedMessage{MessageID: msg.ID, Ignored: true, ImportedAt: time.Now()}))

	tickets, total, err := repo.ListTickets(ctx, TicketFilter{})
	require.NoError(t, err)
	assert.Empty(t, tickets)
	assert.Zero(t, total)
}

func TestTicketsSaveAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i, status := range []model.Status{model.StatusOpen, model.StatusClosed, model.StatusOpen} {
		id := fmt.Sprintf("t-%d", i)
		msg := &model.InboundMessage{ID: "m-" + id, From: "a@example.com"}
		tk := &model.Ticket{ID: id, Title: id, Status: status, Priority: model.PriorityMedium, RequiresAssignment: true}
		require.NoError(t, repo.Commit(ctx, msg, tk, &model.ProcessedMessage{MessageID: msg.ID, TicketID: id, ImportedAt: time.Now()}))
	}

	open, total, err := repo.ListTickets(ctx, TicketFilter{Status: model.StatusOpen})
	require.NoError(t, err)
	assert.Len(t, open, 2)
	assert.EqualValues(t, 2, total)

	notClosed, err := repo.ListOpenTickets(ctx)
	require.NoError(t, err)
	assert.Len(t, notClosed, 2)

	tk, err := repo.GetTicket(ctx, "t-0")
	require.NoError(t, err)
	tk.AssignedTechnicians = []string{"tech-1"}
	tk.RequiresAssignment = false
	require.NoError(t, repo.SaveTicket(ctx, tk))

	tk, err = repo.GetTicket(ctx, "t-0")
	require.NoError(t, err)
	assert.Equal(t, []string{"tech-1"}, tk.AssignedTechnicians)
	assert.False(t, tk.RequiresAssignment)

	_, err = repo.GetTicket(ctx, "missing")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestTechniciansAndAreas(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := &model.Technician{Name: "Ana", Email: "ana@example.com", IsActive: true, SupportAreas: []string{"hw"}}
	require.NoError(t, repo.CreateTechnician(ctx, first))
	assert.Equal(t, model.RoleTechnician, first.Role)

	second := &model.Technician{Name: "Luis", Email: "luis@example.com", Role: "admin", IsActive: false}
	require.NoError(t, repo.CreateTechnician(ctx, second))

	pool, err := repo.ListTechnicians(ctx)
	require.NoError(t, err)
	require.Len(t, pool, 2)
	assert.Equal(t, first.ID, pool[0].ID)
	assert.False(t, pool[1].IsActive)

	first.IsOnline = true
	require.NoError(t, repo.SaveTechnician(ctx, first))
	got, err := repo.GetTechnician(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOnline)
	assert.Equal(t, []string{"hw"}, got.SupportAreas)

	_, err = repo.GetTechnician(ctx, "missing")
	assert.ErrorIs(t, err, ErrTechnicianNotFound)

	require.NoError(t, repo.CreateSupportArea(ctx, &model.SupportArea{ID: "net", Name: "Network", Keywords: []string{"router"}, Priority: 2}))
	require.NoError(t, repo.CreateSupportArea(ctx, &model.SupportArea{ID: "hw", Name: "Hardware", Keywords: []string{"impresora"}, Priority: 1}))
	areas, err := repo.ListSupportAreas(ctx)
	require.NoError(t, err)
	require.Len(t, areas, 2)
	assert.Equal(t, "hw", areas[0].ID)
	assert.Equal(t, []string{"impresora"}, areas[0].Keywords)
}

func TestIngestLogs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := testRule("printers", 1)
	require.NoError(t, repo.CreateRule(ctx, rule))

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		entry := &model.IngestLog{
			MessageID: fmt.Sprintf("m-%d", i),
			Status:    model.IngestNoTicket,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if i == 4 {
			entry.RuleID = &rule.ID
			entry.Status = model.IngestTicketCreated
		}
		require.NoError(t, repo.LogIngest(ctx, entry))
	}

	logs, total, err := repo.ListLogs(ctx, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, logs, 2)
	assert.Equal(t, "m-4", logs[0].MessageID)
	require.NotNil(t, logs[0].Rule)
	assert.Equal(t, "printers", logs[0].Rule.Name)
	assert.Nil(t, logs[1].Rule)

	page3, _, err := repo.ListLogs(ctx, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "m-0", page3[0].MessageID)

	one, err := repo.GetLog(ctx, logs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.IngestTicketCreated, one.Status)

	_, err = repo.GetLog(ctx, 9999)
	assert.ErrorIs(t, err, ErrLogNotFound)
}
