package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) requireScheduler(c *gin.Context) bool {
	if h.scheduler != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{
		Error:   "scheduler_disabled",
		Message: "No mailbox is configured",
		Code:    http.StatusServiceUnavailable,
	})
	return false
}

// StartScheduler starts the mailbox processing scheduler
func (h *Handlers) StartScheduler(c *gin.Context) {
	if !h.requireScheduler(c) {
		return
	}
	if err := h.scheduler.Start(); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "scheduler_error",
			Message: "Failed to start scheduler",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Scheduler started successfully",
		"status":  "running",
	})
}

// StopScheduler stops the mailbox processing scheduler
func (h *Handlers) StopScheduler(c *gin.Context) {
	if !h.requireScheduler(c) {
		return
	}
	if err := h.scheduler.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "scheduler_error",
			Message: "Failed to stop scheduler",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Scheduler stopped successfully",
		"status":  "stopped",
	})
}

// RunOnce runs the mailbox processing once
func (h *Handlers) RunOnce(c *gin.Context) {
	if !h.requireScheduler(c) {
		return
	}
	report, err := h.scheduler.RunOnce(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "scheduler_error",
			Message: "Failed to run mailbox processing",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Mailbox processing completed successfully",
		"report":  report,
	})
}

// GetSchedulerStatus returns the current scheduler status
func (h *Handlers) GetSchedulerStatus(c *gin.Context) {
	if !h.requireScheduler(c) {
		return
	}
	status := "stopped"
	if h.scheduler.IsRunning() {
		status = "running"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"next_run": h.scheduler.GetNextRun(),
		"last_run": h.scheduler.GetLastRun(),
	})
}
