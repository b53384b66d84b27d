package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ticket-intake-go/internal/model"
)

// GetTechnicians returns the technician pool in assignment order
func (h *Handlers) GetTechnicians(c *gin.Context) {
	techs, err := h.repo.ListTechnicians(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch technicians")
		return
	}

	c.JSON(http.StatusOK, techs)
}

// CreateTechnician adds a technician to the pool
func (h *Handlers) CreateTechnician(c *gin.Context) {
	var req TechnicianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	tech := &model.Technician{
		Name:         req.Name,
		Email:        req.Email,
		Role:         req.Role,
		IsActive:     active,
		IsOnline:     req.IsOnline,
		SupportAreas: req.SupportAreas,
	}
	if err := h.repo.CreateTechnician(c.Request.Context(), tech); err != nil {
		respondError(c, err, "Failed to create technician")
		return
	}

	c.JSON(http.StatusCreated, tech)
}

// UpdateTechnician replaces the editable fields of a technician, including
// its online flag.
func (h *Handlers) UpdateTechnician(c *gin.Context) {
	var req TechnicianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	ctx := c.Request.Context()
	tech, err := h.repo.GetTechnician(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err, "Technician not found")
		return
	}

	tech.Name = req.Name
	tech.Email = req.Email
	if req.Role != "" {
		tech.Role = req.Role
	}
	if req.IsActive != nil {
		tech.IsActive = *req.IsActive
	}
	tech.IsOnline = req.IsOnline
	tech.SupportAreas = req.SupportAreas

	if err := h.repo.SaveTechnician(ctx, tech); err != nil {
		respondError(c, err, "Failed to update technician")
		return
	}

	c.JSON(http.StatusOK, tech)
}

// GetSupportAreas returns the support areas used for keyword routing
func (h *Handlers) GetSupportAreas(c *gin.Context) {
	areas, err := h.repo.ListSupportAreas(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch support areas")
		return
	}

	c.JSON(http.StatusOK, areas)
}

// CreateSupportArea adds a support area
func (h *Handlers) CreateSupportArea(c *gin.Context) {
	var req SupportAreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	area := &model.SupportArea{
		Department: req.Department,
		Name:       req.Name,
		Keywords:   req.Keywords,
		Priority:   req.Priority,
	}
	if err := h.repo.CreateSupportArea(c.Request.Context(), area); err != nil {
		respondError(c, err, "Failed to create support area")
		return
	}

	c.JSON(http.StatusCreated, area)
}
