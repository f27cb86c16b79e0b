package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"parkly/internal/models"
)

// Store is the read side of spot schedules and bookings
type Store interface {
	GetRule(ctx context.Context, spotID string, weekday time.Weekday) (*models.AvailabilityRule, error)
	GetOverride(ctx context.Context, spotID, date string) (*models.CalendarOverride, error)
	FindBookingsInRange(ctx context.Context, spotIDs []string, iv models.Interval, statuses []models.BookingStatus) ([]models.Booking, error)
}

// Engine answers availability questions for spots
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Window is an open period of a day, [Start, End)
type Window struct {
	Start models.Clock
	End   models.Clock
}

func (w Window) empty() bool {
	return w.Start >= w.End
}

var wholeDay = []Window{{Start: 0, End: models.EndOfDay}}

// Windows resolves the open periods of a day. The override, when present, supersedes the rule.
func Windows(rule *models.AvailabilityRule, override *models.CalendarOverride) []Window {
	base := ruleWindows(rule)
	if override == nil {
		return base
	}

	if override.WholeDay() {
		if override.IsAvailable {
			return wholeDay
		}
		return nil
	}

	bounded := Window{Start: *override.StartTime, End: override.EndTime.Normalize()}
	if override.IsAvailable {
		if bounded.empty() {
			return nil
		}
		return []Window{bounded}
	}
	return subtract(base, bounded)
}

func ruleWindows(rule *models.AvailabilityRule) []Window {
	if rule == nil {
		return wholeDay
	}
	if !rule.IsAvailable {
		return nil
	}
	w := Window{Start: rule.StartTime, End: rule.EndTime.Normalize()}
	if w.empty() {
		return nil
	}
	return []Window{w}
}

func subtract(windows []Window, cut Window) []Window {
	var out []Window
	for _, w := range windows {
		if cut.End <= w.Start || cut.Start >= w.End {
			out = append(out, w)
			continue
		}
		if left := (Window{Start: w.Start, End: cut.Start}); !left.empty() {
			out = append(out, left)
		}
		if right := (Window{Start: cut.End, End: w.End}); !right.empty() {
			out = append(out, right)
		}
	}
	return out
}

// DayWindows loads the rule and override for the local date starting at dayStart
func (e *Engine) DayWindows(ctx context.Context, spot *models.Spot, dayStart time.Time) ([]Window, error) {
	rule, err := e.store.GetRule(ctx, spot.ID, dayStart.Weekday())
	if err != nil {
		return nil, fmt.Errorf("failed to get availability rule: %w", err)
	}

	override, err := e.store.GetOverride(ctx, spot.ID, dayStart.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar override: %w", err)
	}

	return Windows(rule, override), nil
}

// ScheduleAllows reports whether every day touched by iv is open for the part of iv it contains
func (e *Engine) ScheduleAllows(ctx context.Context, spot *models.Spot, iv models.Interval) (bool, error) {
	loc := spot.Location()
	for day := models.DayStart(iv.Start, loc); day.Before(iv.End); day = nextDay(day) {
		segment := models.Interval{Start: latest(iv.Start, day), End: earliest(iv.End, nextDay(day))}
		if !segment.Valid() {
			continue
		}

		windows, err := e.DayWindows(ctx, spot, day)
		if err != nil {
			return false, err
		}

		if !coveredBy(segment, windows, day) {
			return false, nil
		}
	}
	return true, nil
}

func coveredBy(segment models.Interval, windows []Window, day time.Time) bool {
	for _, w := range windows {
		open := models.Interval{Start: w.Start.On(day), End: w.End.On(day)}
		if open.Covers(segment) {
			return true
		}
	}
	return false
}

// IsAvailable reports whether the schedule is open for iv and no occupying booking overlaps it.
// Bookings listed in exclude are ignored, which lets a booking extend over its own interval.
func (e *Engine) IsAvailable(ctx context.Context, spot *models.Spot, iv models.Interval, exclude ...string) (bool, error) {
	if !iv.Valid() {
		return false, nil
	}

	open, err := e.ScheduleAllows(ctx, spot, iv)
	if err != nil || !open {
		return false, err
	}

	conflicts, err := e.FindConflictingBookings(ctx, []string{spot.ID}, iv, nil)
	if err != nil {
		return false, err
	}

	for _, b := range conflicts {
		if !contains(exclude, b.ID) {
			return false, nil
		}
	}
	return true, nil
}

// FindConflictingBookings returns bookings on spotIDs overlapping iv, ordered by start.
// Nil statuses means the occupying set.
func (e *Engine) FindConflictingBookings(ctx context.Context, spotIDs []string, iv models.Interval, statuses []models.BookingStatus) ([]models.Booking, error) {
	if len(spotIDs) == 0 {
		return nil, nil
	}
	if len(statuses) == 0 {
		statuses = models.ConflictStatuses
	}

	found, err := e.store.FindBookingsInRange(ctx, spotIDs, iv, statuses)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings in range: %w", err)
	}

	conflicts := make([]models.Booking, 0, len(found))
	for _, b := range found {
		if !b.Interval().Overlaps(iv) || !hasStatus(statuses, b.Status) {
			continue
		}
		conflicts = append(conflicts, b)
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		return conflicts[i].StartAt.Before(conflicts[j].StartAt)
	})
	return conflicts, nil
}

// HourlyRate returns the rate in effect at the given instant: the custom rate of that
// weekday's rule when set, otherwise the spot rate.
func (e *Engine) HourlyRate(ctx context.Context, spot *models.Spot, at time.Time) (int64, error) {
	rule, err := e.store.GetRule(ctx, spot.ID, at.In(spot.Location()).Weekday())
	if err != nil {
		return 0, fmt.Errorf("failed to get availability rule: %w", err)
	}
	if rule != nil && rule.CustomRate != nil && *rule.CustomRate > 0 {
		return *rule.CustomRate, nil
	}
	return spot.HourlyRate, nil
}

// Partition splits bookings into live (start <= now < end) and upcoming (start > now).
// Bookings that already ended are dropped.
func Partition(bookings []models.Booking, now time.Time) (live, upcoming []models.Booking) {
	for _, b := range bookings {
		switch {
		case b.IsLive(now):
			live = append(live, b)
		case b.StartAt.After(now):
			upcoming = append(upcoming, b)
		}
	}
	return live, upcoming
}

// LatestLiveEnd returns, per spot, the latest end among live bookings
func LatestLiveEnd(live []models.Booking) map[string]time.Time {
	ends := make(map[string]time.Time)
	for _, b := range live {
		if cur, ok := ends[b.SpotID]; !ok || b.EndAt.After(cur) {
			ends[b.SpotID] = b.EndAt
		}
	}
	return ends
}

func nextDay(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, day.Location())
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func hasStatus(statuses []models.BookingStatus, s models.BookingStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
