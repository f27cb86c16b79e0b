package service

import (
	"context"
	"fmt"
	"time"

	"parkly/internal/availability"
	apperr "parkly/internal/errors"
	"parkly/internal/logger"
	"parkly/internal/models"
)

// AvailabilityService manages spot schedules
type AvailabilityService struct {
	spots    SpotStore
	calendar CalendarStore
	engine   *availability.Engine
}

func NewAvailabilityService(spots SpotStore, calendar CalendarStore, engine *availability.Engine) *AvailabilityService {
	return &AvailabilityService{
		spots:    spots,
		calendar: calendar,
		engine:   engine,
	}
}

// IsAvailable reports whether the spot can be booked for iv
func (s *AvailabilityService) IsAvailable(ctx context.Context, spotID string, iv models.Interval) (*models.AvailabilityResponse, error) {
	const op = "availability.check"
	if !iv.Valid() {
		return nil, apperr.Validation(op, "end_at must be after start_at")
	}

	spot, err := getSpot(ctx, s.spots, op, spotID)
	if err != nil {
		return nil, err
	}

	ok, err := s.engine.IsAvailable(ctx, spot, iv)
	if err != nil {
		return nil, fmt.Errorf("failed to check availability: %w", err)
	}

	return &models.AvailabilityResponse{
		SpotID:    spot.ID,
		StartAt:   iv.Start,
		EndAt:     iv.End,
		Available: ok,
	}, nil
}

func (s *AvailabilityService) ListRules(ctx context.Context, spotID string) ([]models.AvailabilityRule, error) {
	const op = "availability.rules"
	if _, err := getSpot(ctx, s.spots, op, spotID); err != nil {
		return nil, err
	}

	rules, err := s.calendar.ListRules(ctx, spotID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return rules, nil
}

// ReplaceRules swaps the weekly rules of a spot; at most one rule per weekday
func (s *AvailabilityService) ReplaceRules(ctx context.Context, caller models.Caller, spotID string, rules []models.AvailabilityRule) ([]models.AvailabilityRule, error) {
	const op = "availability.replace_rules"

	if _, err := spotForHost(ctx, s.spots, op, caller, spotID); err != nil {
		return nil, err
	}
	if err := validateRules(op, rules); err != nil {
		return nil, err
	}

	for i := range rules {
		rules[i].SpotID = spotID
		rules[i].EndTime = rules[i].EndTime.Normalize()
	}

	if err := s.calendar.ReplaceRules(ctx, spotID, rules); err != nil {
		return nil, fmt.Errorf("failed to replace rules: %w", err)
	}

	logger.WithContext(ctx).Info("Availability rules replaced", "spot_id", spotID, "rules", len(rules))
	return rules, nil
}

func validateRules(op string, rules []models.AvailabilityRule) error {
	seen := make(map[int]bool, len(rules))
	for _, r := range rules {
		if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			return apperr.Validation(op, "day_of_week must be between 0 and 6")
		}
		if seen[r.DayOfWeek] {
			return apperr.Validation(op, "only one rule per day is allowed (%s)", time.Weekday(r.DayOfWeek))
		}
		seen[r.DayOfWeek] = true

		if r.IsAvailable && r.StartTime >= r.EndTime.Normalize() {
			return apperr.Validation(op, "start_time must be before end_time (%s)", time.Weekday(r.DayOfWeek))
		}
		if r.CustomRate != nil && *r.CustomRate < 0 {
			return apperr.Validation(op, "custom_rate cannot be negative")
		}
	}
	return nil
}

func (s *AvailabilityService) ListOverrides(ctx context.Context, caller models.Caller, spotID string) ([]models.CalendarOverride, error) {
	const op = "availability.overrides"
	if _, err := spotForHost(ctx, s.spots, op, caller, spotID); err != nil {
		return nil, err
	}

	overrides, err := s.calendar.ListOverrides(ctx, spotID)
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}
	return overrides, nil
}

// DeleteOverride removes the override of a date, restoring the weekly rule
func (s *AvailabilityService) DeleteOverride(ctx context.Context, caller models.Caller, spotID, date string) error {
	const op = "availability.delete_override"
	spot, err := spotForHost(ctx, s.spots, op, caller, spotID)
	if err != nil {
		return err
	}
	if _, err := models.ParseDate(date, spot.Location()); err != nil {
		return apperr.Validation(op, "date must be formatted as YYYY-MM-DD")
	}

	deleted, err := s.calendar.DeleteOverride(ctx, spotID, date)
	if err != nil {
		return fmt.Errorf("failed to delete override: %w", err)
	}
	if !deleted {
		return apperr.NotFound(op, "no override for %s", date)
	}

	logger.WithContext(ctx).Info("Calendar override deleted", "spot_id", spotID, "date", date)
	return nil
}

func getSpot(ctx context.Context, spots SpotStore, op, spotID string) (*models.Spot, error) {
	spot, err := spots.GetByID(ctx, spotID)
	if err != nil {
		return nil, fmt.Errorf("failed to get spot: %w", err)
	}
	if spot == nil {
		return nil, apperr.NotFound(op, "spot not found")
	}
	return spot, nil
}

func spotForHost(ctx context.Context, spots SpotStore, op string, caller models.Caller, spotID string) (*models.Spot, error) {
	spot, err := getSpot(ctx, spots, op, spotID)
	if err != nil {
		return nil, err
	}
	if !caller.IsHostOf(spot) {
		return nil, apperr.Authorization(op, "only the host of this spot can change its availability")
	}
	return spot, nil
}
