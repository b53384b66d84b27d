package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ticket-intake-go/internal/assign"
	"ticket-intake-go/internal/model"
	"ticket-intake-go/internal/repository"
)

// GetTickets returns tickets with optional status, priority and category filters
func (h *Handlers) GetTickets(c *gin.Context) {
	page, limit := pageParams(c)

	filter := repository.TicketFilter{
		Status:   model.Status(c.Query("status")),
		Priority: model.Priority(c.Query("priority")),
		Category: c.Query("category"),
		Limit:    limit,
		Offset:   (page - 1) * limit,
	}

	tickets, total, err := h.repo.ListTickets(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "Failed to fetch tickets")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tickets":    tickets,
		"pagination": Pagination{Page: page, Limit: limit, Total: total},
	})
}

// GetUnassignedTickets returns the open tickets waiting for a technician
func (h *Handlers) GetUnassignedTickets(c *gin.Context) {
	open, err := h.repo.ListOpenTickets(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch tickets")
		return
	}

	c.JSON(http.StatusOK, assign.Unassigned(open))
}

// GetTicket returns a specific ticket
func (h *Handlers) GetTicket(c *gin.Context) {
	ticket, err := h.repo.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Ticket not found")
		return
	}

	c.JSON(http.StatusOK, ticket)
}

// AssignTicket assigns the ticket to the first available technician
func (h *Handlers) AssignTicket(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	pool, err := h.repo.ListTechnicians(ctx)
	if err != nil {
		respondError(c, err, "Failed to fetch technicians")
		return
	}

	assigned, err := h.assigner.AssignToAvailableTechnician(ctx, id, pool)
	if err != nil {
		respondError(c, err, "Failed to assign ticket")
		return
	}

	ticket, err := h.repo.GetTicket(ctx, id)
	if err != nil {
		respondError(c, err, "Ticket not found")
		return
	}

	c.JSON(http.StatusOK, AssignResponse{Assigned: assigned, Ticket: ticket})
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}
	return page, limit
}
