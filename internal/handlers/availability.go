package handlers

import (
	"net/http"

	apperr "parkly/internal/errors"
	"parkly/internal/logger"
	"parkly/internal/models"

	"github.com/gin-gonic/gin"
)

// SpotAvailability - GET /api/spots/:id/availability?start_at&end_at
func (h *Handlers) SpotAvailability(c *gin.Context) {
	iv, ok := intervalQuery(c)
	if !ok {
		return
	}

	response, err := h.availability.IsAvailable(c.Request.Context(), c.Param("id"), iv)
	if err != nil {
		respondError(c, "check availability", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ListRules - GET /api/spots/:id/rules
func (h *Handlers) ListRules(c *gin.Context) {
	rules, err := h.availability.ListRules(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "list rules", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// ReplaceRules - PUT /api/spots/:id/rules
func (h *Handlers) ReplaceRules(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req models.ReplaceRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error(), Kind: apperr.KindValidation.String()})
		return
	}

	rules, err := h.availability.ReplaceRules(c.Request.Context(), caller, c.Param("id"), req.Rules)
	if err != nil {
		respondError(c, "replace rules", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// ListOverrides - GET /api/spots/:id/overrides
func (h *Handlers) ListOverrides(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	overrides, err := h.availability.ListOverrides(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, "list overrides", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"overrides": overrides})
}

// DeleteOverride - DELETE /api/spots/:id/overrides/:date
func (h *Handlers) DeleteOverride(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	if err := h.availability.DeleteOverride(c.Request.Context(), caller, c.Param("id"), c.Param("date")); err != nil {
		respondError(c, "delete override", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// BlockAvailability - POST /api/availability/block
// 200 with requires_confirmation lists the conflicts without changing anything.
// 207 reports that some conflicting bookings could not be canceled.
func (h *Handlers) BlockAvailability(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req models.BlockAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error(), Kind: apperr.KindValidation.String()})
		return
	}

	result, err := h.blocks.Block(c.Request.Context(), caller, &req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case apperr.IsPartialBatchFailure(err) && result != nil:
		logger.WithContext(c.Request.Context()).Warn("Block availability partially failed",
			"error", err,
			"failed", result.FailedCount)
		c.JSON(http.StatusMultiStatus, result)
	default:
		respondError(c, "block availability", err)
	}
}
