package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetRules returns all processing rules ordered by priority
func (h *Handlers) GetRules(c *gin.Context) {
	rules, err := h.repo.ListRules(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch rules")
		return
	}

	c.JSON(http.StatusOK, rules)
}

// CreateRule creates a new processing rule
func (h *Handlers) CreateRule(c *gin.Context) {
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	rule := req.toModel()
	if err := h.repo.CreateRule(c.Request.Context(), rule); err != nil {
		respondError(c, err, "Failed to create rule")
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// GetRule returns a specific processing rule
func (h *Handlers) GetRule(c *gin.Context) {
	rule, err := h.repo.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Rule not found")
		return
	}

	c.JSON(http.StatusOK, rule)
}

// UpdateRule replaces a processing rule
func (h *Handlers) UpdateRule(c *gin.Context) {
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	rule, err := h.repo.UpdateRule(c.Request.Context(), c.Param("id"), req.toModel())
	if err != nil {
		respondError(c, err, "Failed to update rule")
		return
	}

	c.JSON(http.StatusOK, rule)
}

// DeleteRule deletes a processing rule
func (h *Handlers) DeleteRule(c *gin.Context) {
	if err := h.repo.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "Rule not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Rule deleted successfully"})
}

// EnableRule enables a processing rule
func (h *Handlers) EnableRule(c *gin.Context) {
	h.setRuleActive(c, true)
}

// DisableRule disables a processing rule
func (h *Handlers) DisableRule(c *gin.Context) {
	h.setRuleActive(c, false)
}

func (h *Handlers) setRuleActive(c *gin.Context, active bool) {
	rule, err := h.repo.SetRuleActive(c.Request.Context(), c.Param("id"), active)
	if err != nil {
		respondError(c, err, "Rule not found")
		return
	}

	c.JSON(http.StatusOK, rule)
}
