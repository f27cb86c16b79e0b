package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"parkly/internal/availability"
	apperr "parkly/internal/errors"
	"parkly/internal/logger"
	"parkly/internal/metrics"
	"parkly/internal/models"
)

const reasonHostBlocked = "host marked spot unavailable"

// BlockService lets a host close spots for a day while reconciling existing bookings
type BlockService struct {
	bookings *BookingService
	calendar CalendarStore
}

func NewBlockService(bookings *BookingService, calendar CalendarStore) *BlockService {
	return &BlockService{
		bookings: bookings,
		calendar: calendar,
	}
}

type blockPlan struct {
	spot     *models.Spot
	date     string
	dayStart time.Time
	dayEnd   time.Time
	live     []models.Booking
	upcoming []models.Booking
}

// Block closes the given spots for a date. Conflicting bookings are reported without any change
// unless the request is confirmed; then upcoming bookings are canceled one by one, live ones are
// left running and the override starts when the last of them ends.
func (s *BlockService) Block(ctx context.Context, caller models.Caller, req *models.BlockAvailabilityRequest) (*models.BlockResult, error) {
	const op = "availability.block"

	spotIDs := uniqueIDs(req.SpotIDs)
	if len(spotIDs) == 0 {
		return nil, apperr.Validation(op, "spot_ids must not be empty")
	}
	if req.FromTime != nil && *req.FromTime >= models.EndOfDay {
		return nil, apperr.Validation(op, "from_time must be before the end of the day")
	}

	now := s.bookings.now()
	plans := make([]blockPlan, 0, len(spotIDs))
	for _, id := range spotIDs {
		spot, err := spotForHost(ctx, s.bookings.spots, op, caller, id)
		if err != nil {
			return nil, err
		}
		plan, err := s.plan(ctx, op, spot, req, now)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}

	result := &models.BlockResult{
		Live:      []models.ConflictItem{},
		Upcoming:  []models.ConflictItem{},
		Items:     []models.BlockItemResult{},
		Overrides: []models.CalendarOverride{},
	}
	for _, p := range plans {
		result.Live = append(result.Live, conflictItems(p.live)...)
		result.Upcoming = append(result.Upcoming, conflictItems(p.upcoming)...)
	}

	log := logger.WithContext(ctx).With("host_id", caller.ID, "spots", len(plans))
	if (len(result.Live) > 0 || len(result.Upcoming) > 0) && !req.Confirm.Bool() {
		result.RequiresConfirmation = true
		log.Info("Block needs confirmation", "live", len(result.Live), "upcoming", len(result.Upcoming))
		return result, nil
	}

	var failures []apperr.ItemFailure
	for _, p := range plans {
		for i := range p.upcoming {
			item := s.cancelUpcoming(ctx, &p.upcoming[i], p.spot)
			result.Items = append(result.Items, item)
			if item.Outcome == models.BlockOutcomeFailed {
				failures = append(failures, apperr.ItemFailure{ID: item.BookingID, Err: errors.New(item.Error)})
			}
		}
		for _, b := range p.live {
			metrics.BlockCancellations.WithLabelValues(models.BlockOutcomeDeferred).Inc()
			result.Items = append(result.Items, models.BlockItemResult{
				BookingID: b.ID,
				SpotID:    b.SpotID,
				Outcome:   models.BlockOutcomeDeferred,
			})
		}
	}

	for _, p := range plans {
		override, err := s.writeOverride(ctx, p, req, now)
		if err != nil {
			return result, fmt.Errorf("failed to write override for spot %s: %w", p.spot.ID, err)
		}
		if override != nil {
			result.Overrides = append(result.Overrides, *override)
		}
	}

	for _, item := range result.Items {
		switch item.Outcome {
		case models.BlockOutcomeCanceled:
			result.CanceledCount++
		case models.BlockOutcomeDeferred:
			result.DeferredCount++
		case models.BlockOutcomeFailed:
			result.FailedCount++
		}
	}

	log.Info("Spots blocked",
		"canceled", result.CanceledCount,
		"deferred", result.DeferredCount,
		"failed", result.FailedCount,
		"overrides", len(result.Overrides))

	if len(failures) > 0 {
		return result, &apperr.PartialBatchFailure{Total: result.CanceledCount + result.FailedCount, Failures: failures}
	}
	return result, nil
}

func (s *BlockService) plan(ctx context.Context, op string, spot *models.Spot, req *models.BlockAvailabilityRequest, now time.Time) (blockPlan, error) {
	loc := spot.Location()

	date := strings.TrimSpace(req.Date)
	if date == "" {
		date = models.DateKey(now, loc)
	}
	dayStart, err := models.ParseDate(date, loc)
	if err != nil {
		return blockPlan{}, apperr.Validation(op, "date must be formatted as YYYY-MM-DD")
	}
	dayEnd := models.EndOfDay.On(dayStart)
	if !dayEnd.After(now) {
		return blockPlan{}, apperr.Validation(op, "cannot block a date in the past")
	}

	from := dayStart
	if req.FromTime != nil {
		from = req.FromTime.On(dayStart)
	}
	if now.After(from) {
		from = now
	}

	conflicts, err := s.bookings.engine.FindConflictingBookings(ctx, []string{spot.ID}, models.Interval{Start: from, End: dayEnd}, nil)
	if err != nil {
		return blockPlan{}, fmt.Errorf("failed to find conflicting bookings: %w", err)
	}
	live, upcoming := availability.Partition(conflicts, now)

	return blockPlan{
		spot:     spot,
		date:     date,
		dayStart: dayStart,
		dayEnd:   dayEnd,
		live:     live,
		upcoming: upcoming,
	}, nil
}

// cancelUpcoming cancels one booking as the host; a failure is reported on the item only
func (s *BlockService) cancelUpcoming(ctx context.Context, found *models.Booking, spot *models.Spot) models.BlockItemResult {
	const op = "availability.block.cancel"
	item := models.BlockItemResult{BookingID: found.ID, SpotID: found.SpotID}

	err := s.cancelBooking(ctx, op, found.ID, spot, &item)
	if err != nil {
		item.Outcome = models.BlockOutcomeFailed
		item.Error = apperr.Message(err)
		metrics.BlockCancellations.WithLabelValues(models.BlockOutcomeFailed).Inc()
		logger.WithContext(ctx).Warn("Failed to cancel booking while blocking spot",
			"booking_id", found.ID,
			"spot_id", found.SpotID,
			"error", err)
		return item
	}

	item.Outcome = models.BlockOutcomeCanceled
	metrics.BlockCancellations.WithLabelValues(models.BlockOutcomeCanceled).Inc()
	return item
}

func (s *BlockService) cancelBooking(ctx context.Context, op, id string, spot *models.Spot, item *models.BlockItemResult) error {
	b, err := s.bookings.bookings.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get booking: %w", err)
	}
	if b == nil {
		return apperr.NotFound(op, "booking not found")
	}

	if err := s.bookings.cancel(ctx, op, b, reasonHostBlocked); err != nil {
		return err
	}
	item.Refunded = b.RefundedAmount

	notify(ctx, s.bookings.notifier, models.RecipientOf(b), "Booking canceled by host", cancellationMessage(b, spot), b.ID)
	return nil
}

// writeOverride writes the unavailability of one spot. With live bookings it starts when the
// latest of them ends; when that is past the date no override is needed. An existing override
// with the same effect is kept as is.
func (s *BlockService) writeOverride(ctx context.Context, p blockPlan, req *models.BlockAvailabilityRequest, now time.Time) (*models.CalendarOverride, error) {
	var start *models.Clock
	if req.FromTime != nil {
		c := *req.FromTime
		start = &c
	}

	if liveEnd, ok := availability.LatestLiveEnd(p.live)[p.spot.ID]; ok {
		if !liveEnd.Before(p.dayEnd) {
			logger.WithContext(ctx).Info("Live booking runs past the blocked date; override skipped",
				"spot_id", p.spot.ID,
				"date", p.date,
				"live_end", liveEnd)
			return nil, nil
		}
		c := models.CeilClockOf(liveEnd.In(p.spot.Location()))
		if start == nil || c > *start {
			start = &c
		}
	}

	override := &models.CalendarOverride{
		SpotID:       p.spot.ID,
		OverrideDate: p.date,
		IsAvailable:  false,
		CreatedAt:    now,
	}
	if start != nil && *start > 0 {
		end := models.EndOfDay
		override.StartTime = start
		override.EndTime = &end
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		override.Reason = &reason
	}

	existing, err := s.calendar.GetOverride(ctx, p.spot.ID, p.date)
	if err != nil {
		return nil, fmt.Errorf("failed to get override: %w", err)
	}
	if existing != nil && existing.SameEffect(override) && keepsReason(existing, override) {
		return existing, nil
	}

	if err := s.calendar.ReplaceOverride(ctx, override); err != nil {
		return nil, err
	}
	return override, nil
}

func conflictItems(bookings []models.Booking) []models.ConflictItem {
	items := make([]models.ConflictItem, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, models.ConflictItem{
			BookingID: b.ID,
			SpotID:    b.SpotID,
			StartAt:   b.StartAt,
			EndAt:     b.EndAt,
			Status:    string(b.Status),
		})
	}
	return items
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// keepsReason reports whether writing o would leave the stored reason as is. An omitted
// reason keeps the existing one.
func keepsReason(existing, o *models.CalendarOverride) bool {
	if o.Reason == nil {
		return true
	}
	return existing.Reason != nil && *existing.Reason == *o.Reason
}
