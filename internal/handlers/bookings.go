package handlers

import (
	"net/http"

	apperr "parkly/internal/errors"
	"parkly/internal/middleware"
	"parkly/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateBooking - POST /api/bookings
// Renters authenticate with a bearer token; guests send guest_email instead.
func (h *Handlers) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error(), Kind: apperr.KindValidation.String()})
		return
	}

	response, err := h.bookings.Create(c.Request.Context(), middleware.CallerFromContext(c), &req)
	if err != nil {
		respondError(c, "create booking", err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// GetBooking - GET /api/bookings/:id
func (h *Handlers) GetBooking(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	booking, err := h.bookings.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, "get booking", err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ListBookings - GET /api/bookings?as=host
func (h *Handlers) ListBookings(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	bookings, err := h.bookings.List(c.Request.Context(), caller, c.Query("as") == "host")
	if err != nil {
		respondError(c, "list bookings", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// AuthorizeBooking - POST /api/bookings/:id/authorize
func (h *Handlers) AuthorizeBooking(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req models.AuthorizeBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error(), Kind: apperr.KindValidation.String()})
		return
	}

	response, err := h.bookings.Authorize(c.Request.Context(), caller, c.Param("id"), req.PaymentMethodID)
	if err != nil {
		respondError(c, "authorize booking", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ApproveBooking - POST /api/bookings/:id/approve
func (h *Handlers) ApproveBooking(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	booking, err := h.bookings.Approve(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, "approve booking", err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// DeclineBooking - POST /api/bookings/:id/decline
func (h *Handlers) DeclineBooking(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req models.DeclineBookingRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	booking, err := h.bookings.Decline(c.Request.Context(), caller, c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, "decline booking", err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// CancelBooking - POST /api/bookings/:id/cancel
func (h *Handlers) CancelBooking(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req models.CancelBookingRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	booking, err := h.bookings.Cancel(c.Request.Context(), caller, c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, "cancel booking", err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// RefundBooking - POST /api/bookings/:id/refund
func (h *Handlers) RefundBooking(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req models.RefundBookingRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	booking, err := h.bookings.Refund(c.Request.Context(), caller, c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, "refund booking", err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ExtendBooking - POST /api/bookings/:id/extend
// The first call charges the extension; a call with finalize and pending_token completes
// a charge that needed customer confirmation.
func (h *Handlers) ExtendBooking(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req models.ExtendBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error(), Kind: apperr.KindValidation.String()})
		return
	}

	var (
		response *models.ExtensionResponse
		err      error
	)
	if req.Finalize.Bool() {
		response, err = h.bookings.FinalizeExtension(c.Request.Context(), caller, c.Param("id"), req.PendingToken)
	} else {
		response, err = h.bookings.Extend(c.Request.Context(), caller, c.Param("id"), &req)
	}
	if err != nil {
		respondError(c, "extend booking", err)
		return
	}

	status := http.StatusOK
	if response.Status == models.ExtensionRequiresAction {
		status = http.StatusAccepted
	}
	c.JSON(status, response)
}

// QuoteSpot - GET /api/spots/:id/quote?start_at&end_at
func (h *Handlers) QuoteSpot(c *gin.Context) {
	iv, ok := intervalQuery(c)
	if !ok {
		return
	}

	quote, err := h.bookings.Quote(c.Request.Context(), c.Param("id"), iv)
	if err != nil {
		respondError(c, "quote spot", err)
		return
	}

	c.JSON(http.StatusOK, quote)
}
