package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"ticket-intake-go/internal/model"
	"ticket-intake-go/internal/pipeline"
	"ticket-intake-go/internal/repository"
	"ticket-intake-go/internal/rules"
	"ticket-intake-go/internal/scheduler"
)

// Ingester ingests a single message.
type Ingester interface {
	Ingest(ctx context.Context, msg *model.InboundMessage, ruleSet []model.ProcessingRule, settings pipeline.Settings) (*pipeline.Result, error)
}

// SchedulerControl is the part of the scheduler exposed over HTTP.
type SchedulerControl interface {
	Start() error
	Stop() error
	IsRunning() bool
	RunOnce(ctx context.Context) (*scheduler.CycleReport, error)
	GetNextRun() time.Time
	GetLastRun() time.Time
}

// Handlers contains all HTTP handlers
type Handlers struct {
	repo      *repository.Repository
	ingester  Ingester
	assigner  pipeline.Assigner
	scheduler SchedulerControl
	settings  pipeline.Settings
}

// NewHandlers creates new HTTP handlers. sched may be nil when no mailbox is configured.
func NewHandlers(repo *repository.Repository, ingester Ingester, assigner pipeline.Assigner, sched SchedulerControl, settings pipeline.Settings) *Handlers {
	return &Handlers{
		repo:      repo,
		ingester:  ingester,
		assigner:  assigner,
		scheduler: sched,
		settings:  settings,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.GET("/rules", h.GetRules)
		api.POST("/rules", h.CreateRule)
		api.GET("/rules/:id", h.GetRule)
		api.PUT("/rules/:id", h.UpdateRule)
		api.DELETE("/rules/:id", h.DeleteRule)
		api.PATCH("/rules/:id/enable", h.EnableRule)
		api.PATCH("/rules/:id/disable", h.DisableRule)

		api.POST("/messages", h.IngestMessage)
		api.GET("/messages/:id", h.GetMessage)

		api.GET("/tickets", h.GetTickets)
		api.GET("/tickets/unassigned", h.GetUnassignedTickets)
		api.GET("/tickets/:id", h.GetTicket)
		api.POST("/tickets/:id/assign", h.AssignTicket)

		api.GET("/technicians", h.GetTechnicians)
		api.POST("/technicians", h.CreateTechnician)
		api.PUT("/technicians/:id", h.UpdateTechnician)

		api.GET("/support-areas", h.GetSupportAreas)
		api.POST("/support-areas", h.CreateSupportArea)

		api.GET("/logs", h.GetLogs)
		api.GET("/logs/:id", h.GetLog)

		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once", h.RunOnce)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
		Metrics:   make(map[string]string),
	}

	if err := h.repo.Ping(c.Request.Context()); err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	switch {
	case h.scheduler == nil:
		response.Metrics["scheduler"] = "disabled"
	case h.scheduler.IsRunning():
		response.Metrics["scheduler"] = "running"
		response.Metrics["next_run"] = h.scheduler.GetNextRun().Format(time.RFC3339)
		response.Metrics["last_run"] = h.scheduler.GetLastRun().Format(time.RFC3339)
	default:
		response.Metrics["scheduler"] = "stopped"
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

// respondError maps domain errors to status codes
func respondError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	code := "internal_error"

	var actionErr *rules.InvalidActionValueError
	switch {
	case errors.Is(err, repository.ErrRuleNotFound),
		errors.Is(err, repository.ErrTicketNotFound),
		errors.Is(err, repository.ErrTechnicianNotFound),
		errors.Is(err, repository.ErrMessageNotFound),
		errors.Is(err, repository.ErrLogNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, rules.ErrInvalidRule), errors.Is(err, pipeline.ErrMissingMessageID):
		status, code = http.StatusBadRequest, "validation_error"
		message = err.Error()
	case errors.As(err, &actionErr):
		status, code = http.StatusUnprocessableEntity, "invalid_action_value"
		message = err.Error()
	default:
		logrus.Errorf("%s: %v", message, err)
	}

	c.JSON(status, ErrorResponse{
		Error:   code,
		Message: message,
		Code:    status,
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: message,
		Code:    http.StatusBadRequest,
	})
}
