package handlers

import (
	"context"
	"net/http"
	"time"

	apperr "parkly/internal/errors"
	"parkly/internal/logger"
	"parkly/internal/middleware"
	"parkly/internal/models"
	"parkly/internal/service"

	"github.com/gin-gonic/gin"
)

// BookingActions is the booking lifecycle as seen by the HTTP layer
type BookingActions interface {
	Create(ctx context.Context, caller models.Caller, req *models.CreateBookingRequest) (*models.CreateBookingResponse, error)
	Authorize(ctx context.Context, caller models.Caller, id, paymentMethodID string) (*models.CreateBookingResponse, error)
	Approve(ctx context.Context, caller models.Caller, id string) (*models.Booking, error)
	Decline(ctx context.Context, caller models.Caller, id, reason string) (*models.Booking, error)
	Cancel(ctx context.Context, caller models.Caller, id, reason string) (*models.Booking, error)
	Refund(ctx context.Context, caller models.Caller, id, reason string) (*models.Booking, error)
	Extend(ctx context.Context, caller models.Caller, id string, req *models.ExtendBookingRequest) (*models.ExtensionResponse, error)
	FinalizeExtension(ctx context.Context, caller models.Caller, id, token string) (*models.ExtensionResponse, error)
	Get(ctx context.Context, caller models.Caller, id string) (*models.Booking, error)
	List(ctx context.Context, caller models.Caller, asHost bool) ([]models.Booking, error)
	Quote(ctx context.Context, spotID string, iv models.Interval) (*models.Quote, error)
}

// AvailabilityActions manages the calendar of a spot
type AvailabilityActions interface {
	IsAvailable(ctx context.Context, spotID string, iv models.Interval) (*models.AvailabilityResponse, error)
	ListRules(ctx context.Context, spotID string) ([]models.AvailabilityRule, error)
	ReplaceRules(ctx context.Context, caller models.Caller, spotID string, rules []models.AvailabilityRule) ([]models.AvailabilityRule, error)
	ListOverrides(ctx context.Context, caller models.Caller, spotID string) ([]models.CalendarOverride, error)
	DeleteOverride(ctx context.Context, caller models.Caller, spotID, date string) error
}

type BlockActions interface {
	Block(ctx context.Context, caller models.Caller, req *models.BlockAvailabilityRequest) (*models.BlockResult, error)
}

type NotificationActions interface {
	List(ctx context.Context, caller models.Caller) ([]models.Notification, error)
}

type Handlers struct {
	bookings      BookingActions
	availability  AvailabilityActions
	blocks        BlockActions
	notifications NotificationActions
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		bookings:      services.Bookings,
		availability:  services.Availability,
		blocks:        services.Blocks,
		notifications: services.Notifications,
	}
}

// statusOf maps an error kind to its HTTP status
func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindPrecondition:
		return http.StatusUnprocessableEntity
	case apperr.KindPayment:
		return http.StatusPaymentRequired
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the classified error; unclassified errors are logged and hidden
func respondError(c *gin.Context, action string, err error) {
	kind := apperr.KindOf(err)
	status := statusOf(kind)

	log := logger.WithContext(c.Request.Context())
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		log.Error("Failed to "+action, "error", err)
	} else {
		log.Info("Rejected "+action, "error", err, "kind", kind.String())
	}

	c.JSON(status, models.ErrorResponse{Error: apperr.Message(err), Kind: kind.String()})
}

// requireCaller aborts with 401 when the request carries no credentials
func requireCaller(c *gin.Context) (models.Caller, bool) {
	caller := middleware.CallerFromContext(c)
	if caller.IsAnonymous() {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "authentication required", Kind: "unauthenticated"})
		return caller, false
	}
	return caller, true
}

// bindOptionalJSON binds a body that may be absent
func bindOptionalJSON(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error(), Kind: apperr.KindValidation.String()})
		return false
	}
	return true
}

// intervalQuery reads start_at and end_at (RFC 3339) from the query string
func intervalQuery(c *gin.Context) (models.Interval, bool) {
	start, errStart := time.Parse(time.RFC3339, c.Query("start_at"))
	end, errEnd := time.Parse(time.RFC3339, c.Query("end_at"))
	if errStart != nil || errEnd != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "start_at and end_at must be RFC 3339 timestamps",
			Kind:  apperr.KindValidation.String(),
		})
		return models.Interval{}, false
	}
	return models.Interval{Start: start, End: end}, true
}
