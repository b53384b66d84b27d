package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// IngestMessage runs a submitted message through the intake pipeline now.
// A message that was already processed returns its recorded result with 200.
func (h *Handlers) IngestMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	ctx := c.Request.Context()
	started := time.Now()

	ruleSet, err := h.repo.ListActiveRules(ctx)
	if err != nil {
		respondError(c, err, "Failed to load rules")
		return
	}

	result, err := h.ingester.Ingest(ctx, req.toModel(), ruleSet, h.settings)
	if err != nil {
		respondError(c, err, "Failed to ingest message")
		return
	}

	status := http.StatusCreated
	if result.ImportedAt.Before(started) {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// GetMessage returns a stored message and how it was processed
func (h *Handlers) GetMessage(c *gin.Context) {
	ctx := c.Request.Context()

	msg, err := h.repo.GetMessage(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err, "Message not found")
		return
	}

	processed, err := h.repo.GetProcessed(ctx, msg.ID)
	if err != nil {
		respondError(c, err, "Failed to fetch message")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: msg, Processed: processed})
}
