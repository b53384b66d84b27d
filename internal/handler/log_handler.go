package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetLogs returns ingest logs with pagination
func (h *Handlers) GetLogs(c *gin.Context) {
	page, limit := pageParams(c)

	logs, total, err := h.repo.ListLogs(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err, "Failed to fetch logs")
		return
	}

	responses := make([]IngestLogResponse, 0, len(logs))
	for i := range logs {
		responses = append(responses, newIngestLogResponse(&logs[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":       responses,
		"pagination": Pagination{Page: page, Limit: limit, Total: total},
	})
}

// GetLog returns a specific ingest log
func (h *Handlers) GetLog(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid log ID",
			Code:    http.StatusBadRequest,
		})
		return
	}

	log, err := h.repo.GetLog(c.Request.Context(), uint(id))
	if err != nil {
		respondError(c, err, "Log not found")
		return
	}

	c.JSON(http.StatusOK, newIngestLogResponse(log))
}
