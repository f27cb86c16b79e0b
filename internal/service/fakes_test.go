package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperr "parkly/internal/errors"
	"parkly/internal/external"
	"parkly/internal/models"
)

func copyBooking(b *models.Booking) *models.Booking {
	c := *b
	c.ExtensionCharges = append([]models.ExtensionCharge(nil), b.ExtensionCharges...)
	return &c
}

type fakeBookings struct {
	mu          sync.Mutex
	items       map[string]*models.Booking
	spots       *fakeSpots
	rejectNextA bool  // the next AppendExtension reports a lost compare-and-set
	createErr   error // returned by Create when set
}

func newFakeBookings(spots *fakeSpots) *fakeBookings {
	return &fakeBookings{items: make(map[string]*models.Booking), spots: spots}
}

func (f *fakeBookings) put(b models.Booking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[b.ID] = copyBooking(&b)
}

func (f *fakeBookings) get(id string) *models.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.items[id]; ok {
		return copyBooking(b)
	}
	return nil
}

func (f *fakeBookings) overlapsLocked(spotID, exceptID string, iv models.Interval) bool {
	for _, other := range f.items {
		if other.ID == exceptID || other.SpotID != spotID || !other.Status.OccupiesSpot() {
			continue
		}
		if other.Interval().Overlaps(iv) {
			return true
		}
	}
	return false
}

func (f *fakeBookings) Create(_ context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if b.Status.OccupiesSpot() && f.overlapsLocked(b.SpotID, b.ID, b.Interval()) {
		return apperr.Conflict("fake.create", nil, "the spot is already booked for an overlapping time")
	}
	f.items[b.ID] = copyBooking(b)
	return nil
}

func (f *fakeBookings) GetByID(_ context.Context, id string) (*models.Booking, error) {
	return f.get(id), nil
}

func (f *fakeBookings) ListByRenter(_ context.Context, renterID string) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for _, b := range f.items {
		if b.RenterID != nil && *b.RenterID == renterID {
			out = append(out, *copyBooking(b))
		}
	}
	return out, nil
}

func (f *fakeBookings) ListByHost(ctx context.Context, hostID string) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for _, b := range f.items {
		spot, _ := f.spots.GetByID(ctx, b.SpotID)
		if spot != nil && spot.HostID == hostID {
			out = append(out, *copyBooking(b))
		}
	}
	return out, nil
}

func (f *fakeBookings) UpdateStatus(_ context.Context, b *models.Booking, from models.BookingStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.items[b.ID]
	if !ok || stored.Status != from {
		return false, nil
	}
	stored.Status = b.Status
	stored.PaymentMethodID = b.PaymentMethodID
	stored.PaymentIntentID = b.PaymentIntentID
	stored.ChargeID = b.ChargeID
	stored.CancellationReason = b.CancellationReason
	stored.RefundedAmount = b.RefundedAmount
	return true, nil
}

func (f *fakeBookings) AppendExtension(_ context.Context, ext *models.ExtensionCharge, previousEnd, newEnd time.Time, hostEarnings int64, statuses []models.BookingStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejectNextA {
		f.rejectNextA = false
		return false, nil
	}
	stored, ok := f.items[ext.BookingID]
	if !ok || !stored.EndAt.Equal(previousEnd) || !hasAny(statuses, stored.Status) {
		return false, nil
	}
	if f.overlapsLocked(stored.SpotID, stored.ID, models.Interval{Start: previousEnd, End: newEnd}) {
		return false, apperr.Conflict("fake.extend", nil, "the spot is already booked for an overlapping time")
	}
	stored.EndAt = newEnd
	stored.HostEarnings += hostEarnings
	stored.ExtensionCharges = append(stored.ExtensionCharges, *ext)
	return true, nil
}

func (f *fakeBookings) ListElapsed(_ context.Context, now time.Time, statuses []models.BookingStatus, limit int) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for _, b := range f.items {
		if hasAny(statuses, b.Status) && !now.Before(b.EndAt) && len(out) < limit {
			out = append(out, *copyBooking(b))
		}
	}
	return out, nil
}

func hasAny(statuses []models.BookingStatus, s models.BookingStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

type fakeHolds struct {
	mu    sync.Mutex
	items map[string]models.BookingHold
}

func newFakeHolds() *fakeHolds {
	return &fakeHolds{items: make(map[string]models.BookingHold)}
}

func (f *fakeHolds) Acquire(_ context.Context, hold *models.BookingHold) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	iv := models.Interval{Start: hold.StartAt, End: hold.EndAt}
	for _, h := range f.items {
		if h.SpotID == hold.SpotID && iv.Overlaps(models.Interval{Start: h.StartAt, End: h.EndAt}) {
			return apperr.Conflict("fake.hold", nil, "someone else is booking this spot for an overlapping time")
		}
	}
	f.items[hold.ID] = *hold
	return nil
}

func (f *fakeHolds) ReleaseByBooking(_ context.Context, bookingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, h := range f.items {
		if h.BookingID == bookingID {
			delete(f.items, id)
		}
	}
	return nil
}

func (f *fakeHolds) ListExpired(_ context.Context, now time.Time, limit int) ([]models.BookingHold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.BookingHold
	for _, h := range f.items {
		if !now.Before(h.ExpiresAt) && len(out) < limit {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeHolds) forBooking(bookingID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.items {
		if h.BookingID == bookingID {
			return true
		}
	}
	return false
}

func (f *fakeHolds) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

type fakeSpots struct {
	mu    sync.Mutex
	items map[string]*models.Spot
}

func (f *fakeSpots) GetByID(_ context.Context, id string) (*models.Spot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.items[id]; ok {
		c := *s
		return &c, nil
	}
	return nil, nil
}

type fakeCalendar struct {
	mu           sync.Mutex
	rules        map[string][]models.AvailabilityRule
	overrides    map[string]models.CalendarOverride
	bookings     *fakeBookings
	replaceCalls int
}

func newFakeCalendar(bookings *fakeBookings) *fakeCalendar {
	return &fakeCalendar{
		rules:     make(map[string][]models.AvailabilityRule),
		overrides: make(map[string]models.CalendarOverride),
		bookings:  bookings,
	}
}

func overrideKey(spotID, date string) string { return spotID + "|" + date }

func (f *fakeCalendar) GetRule(_ context.Context, spotID string, weekday time.Weekday) (*models.AvailabilityRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rules[spotID] {
		if r.DayOfWeek == int(weekday) {
			c := r
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeCalendar) GetOverride(_ context.Context, spotID, date string) (*models.CalendarOverride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.overrides[overrideKey(spotID, date)]; ok {
		return &o, nil
	}
	return nil, nil
}

func (f *fakeCalendar) FindBookingsInRange(_ context.Context, spotIDs []string, iv models.Interval, statuses []models.BookingStatus) ([]models.Booking, error) {
	f.bookings.mu.Lock()
	defer f.bookings.mu.Unlock()
	var out []models.Booking
	for _, b := range f.bookings.items {
		for _, id := range spotIDs {
			if b.SpotID == id && hasAny(statuses, b.Status) && b.Interval().Overlaps(iv) {
				out = append(out, *copyBooking(b))
			}
		}
	}
	return out, nil
}

func (f *fakeCalendar) ListRules(_ context.Context, spotID string) ([]models.AvailabilityRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.AvailabilityRule(nil), f.rules[spotID]...), nil
}

func (f *fakeCalendar) ReplaceRules(_ context.Context, spotID string, rules []models.AvailabilityRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[spotID] = append([]models.AvailabilityRule(nil), rules...)
	return nil
}

func (f *fakeCalendar) ListOverrides(_ context.Context, spotID string) ([]models.CalendarOverride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CalendarOverride
	for _, o := range f.overrides {
		if o.SpotID == spotID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeCalendar) ReplaceOverride(_ context.Context, o *models.CalendarOverride) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaceCalls++
	f.overrides[overrideKey(o.SpotID, o.OverrideDate)] = *o
	return nil
}

func (f *fakeCalendar) DeleteOverride(_ context.Context, spotID, date string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := overrideKey(spotID, date)
	if _, ok := f.overrides[key]; !ok {
		return false, nil
	}
	delete(f.overrides, key)
	return true, nil
}

const fakePendingTTL = 30 * time.Minute

type fakeExtensions struct {
	mu    sync.Mutex
	items map[string]models.PendingExtension
	now   func() time.Time
}

func (f *fakeExtensions) Save(_ context.Context, p *models.PendingExtension) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ExpiresAt = f.now().Add(fakePendingTTL)
	f.items[p.Token] = *p
	return nil
}

func (f *fakeExtensions) Get(_ context.Context, token string) (*models.PendingExtension, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.items[token]; ok && f.now().Before(p.ExpiresAt) {
		return &p, nil
	}
	return nil, nil
}

func (f *fakeExtensions) Delete(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, token)
	return nil
}

func (f *fakeExtensions) ListExpired(_ context.Context, now time.Time, limit int) ([]models.PendingExtension, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PendingExtension
	for _, p := range f.items {
		if !now.Before(p.ExpiresAt) && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeExtensions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

type fakeIntent struct {
	amount   int64
	status   string
	chargeID string
}

type refundCall struct {
	ChargeID string
	Amount   int64
}

// fakeGateway behaves like a processor: intents are captured at most once and idempotency
// keys replay earlier results
type fakeGateway struct {
	mu             sync.Mutex
	seq            int
	intents        map[string]*fakeIntent
	authKeys       map[string]string
	refundKeys     map[string]bool
	authorizeCalls int
	captureCalls   int
	voids          []string
	refunds        []refundCall
	captureErr     error
	failRefund     map[string]bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		intents:    make(map[string]*fakeIntent),
		authKeys:   make(map[string]string),
		refundKeys: make(map[string]bool),
		failRefund: make(map[string]bool),
	}
}

func (g *fakeGateway) Authorize(_ context.Context, key string, amount int64, _, paymentMethodID, _ string) (*external.AuthorizeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.authorizeCalls++

	if paymentMethodID == "pm_declined" {
		return nil, &external.GatewayError{StatusCode: 402, Code: external.CodeCardDeclined, Message: "declined"}
	}
	if id, ok := g.authKeys[key]; ok {
		in := g.intents[id]
		return &external.AuthorizeResult{IntentID: id, Status: in.status}, nil
	}

	g.seq++
	id := fmt.Sprintf("pi_%d", g.seq)
	status := external.IntentRequiresCapture
	res := &external.AuthorizeResult{IntentID: id, Status: status}
	if paymentMethodID == "pm_3ds" {
		status = external.IntentRequiresAction
		res.Status = status
		res.ClientSecret = "secret_" + id
	}
	g.intents[id] = &fakeIntent{amount: amount, status: status}
	g.authKeys[key] = id
	return res, nil
}

// confirm simulates the card holder completing a step-up challenge
func (g *fakeGateway) confirm(intentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[intentID].status = external.IntentRequiresCapture
}

func (g *fakeGateway) Capture(_ context.Context, _, intentID string) (*external.CaptureResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.captureCalls++

	if g.captureErr != nil {
		return nil, g.captureErr
	}
	in, ok := g.intents[intentID]
	if !ok {
		return nil, &external.GatewayError{StatusCode: 404, Code: external.CodeIntentNotFound}
	}
	switch in.status {
	case external.IntentSucceeded:
		return &external.CaptureResult{ChargeID: in.chargeID, AlreadyCaptured: true}, nil
	case external.IntentRequiresAction:
		return nil, &external.GatewayError{StatusCode: 402, Code: external.IntentRequiresAction}
	case external.IntentCanceled:
		return nil, &external.GatewayError{StatusCode: 409, Code: external.CodeInvalidState}
	}
	in.status = external.IntentSucceeded
	in.chargeID = "ch_" + intentID
	return &external.CaptureResult{ChargeID: in.chargeID}, nil
}

func (g *fakeGateway) Void(_ context.Context, _, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if in, ok := g.intents[intentID]; ok {
		if in.status == external.IntentSucceeded {
			return &external.GatewayError{StatusCode: 409, Code: external.CodeInvalidState}
		}
		in.status = external.IntentCanceled
	}
	g.voids = append(g.voids, intentID)
	return nil
}

func (g *fakeGateway) Refund(_ context.Context, key, chargeID string, amount int64, _ string) (*external.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failRefund[chargeID] {
		return nil, errors.New("gateway timeout")
	}
	if !g.refundKeys[key] {
		g.refundKeys[key] = true
		g.refunds = append(g.refunds, refundCall{ChargeID: chargeID, Amount: amount})
	}
	return &external.RefundResult{RefundID: "re_" + chargeID, Amount: amount}, nil
}

func (g *fakeGateway) intentStatus(id string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if in, ok := g.intents[id]; ok {
		return in.status
	}
	return ""
}

func (g *fakeGateway) charges() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, in := range g.intents {
		if in.chargeID != "" {
			n++
		}
	}
	return n
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authorizeCalls + g.captureCalls + len(g.voids) + len(g.refunds)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []models.NotificationEvent
	err    error
}

func (f *fakeNotifier) Notify(_ context.Context, e models.NotificationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.err
}

func (f *fakeNotifier) titlesFor(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var titles []string
	for _, e := range f.events {
		if e.UserID == userID {
			titles = append(titles, e.Title)
		}
	}
	return titles
}

type fakePublisher struct {
	mu     sync.Mutex
	events []interface{}
}

func (f *fakePublisher) Publish(_ string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, data)
	return nil
}

var (
	renter   = models.Caller{ID: "renter-1", Role: models.RoleRenter}
	stranger = models.Caller{ID: "renter-2", Role: models.RoleRenter}
	host     = models.Caller{ID: "host-1", Role: models.RoleHost}
)

type harness struct {
	svc       *Services
	bookings  *fakeBookings
	holds     *fakeHolds
	spots     *fakeSpots
	calendar  *fakeCalendar
	pending   *fakeExtensions
	gateway   *fakeGateway
	notifier  *fakeNotifier
	publisher *fakePublisher
	now       time.Time
}

// newHarness starts the clock at Monday 2024-06-03 12:00 UTC
func newHarness(t *testing.T) *harness {
	t.Helper()

	spots := &fakeSpots{items: map[string]*models.Spot{
		"spot-1":       {ID: "spot-1", HostID: "host-1", Title: "Driveway", HourlyRate: 1000, Currency: "usd", Timezone: "UTC"},
		"spot-2":       {ID: "spot-2", HostID: "host-1", Title: "Garage", HourlyRate: 1000, Currency: "usd", Timezone: "UTC"},
		"spot-instant": {ID: "spot-instant", HostID: "host-1", Title: "Lot", HourlyRate: 1000, Currency: "usd", InstantBook: true},
		"spot-other":   {ID: "spot-other", HostID: "host-2", Title: "Elsewhere", HourlyRate: 1000, Currency: "usd"},
	}}
	bookings := newFakeBookings(spots)

	h := &harness{
		bookings:  bookings,
		holds:     newFakeHolds(),
		spots:     spots,
		calendar:  newFakeCalendar(bookings),
		pending:   &fakeExtensions{items: make(map[string]models.PendingExtension)},
		gateway:   newFakeGateway(),
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
		now:       time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC),
	}

	h.svc = NewServices(Deps{
		Bookings:   h.bookings,
		Holds:      h.holds,
		Spots:      h.spots,
		Calendar:   h.calendar,
		Extensions: h.pending,
		Gateway:    h.gateway,
		Notifier:   h.notifier,
		Publisher:  h.publisher,
	}, Options{
		Fees:    FeePolicy{Version: "test-1", ServiceFeeBps: 1000, HostCommissionBps: 1500},
		HoldTTL: time.Hour,
	})
	h.svc.Bookings.now = func() time.Time { return h.now }
	h.pending.now = func() time.Time { return h.now }

	return h
}

func (h *harness) at(hour, minute int) time.Time {
	return time.Date(2024, 6, 3, hour, minute, 0, 0, time.UTC)
}

// create books spot-1 from the given hours today with a card
func (h *harness) create(t *testing.T, startHour, endHour int) *models.Booking {
	t.Helper()
	resp, err := h.svc.Bookings.Create(context.Background(), renter, &models.CreateBookingRequest{
		SpotID:          "spot-1",
		StartAt:         h.at(startHour, 0),
		EndAt:           h.at(endHour, 0),
		PaymentMethodID: "pm_card",
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return resp.Booking
}

// approved returns an active booking on spot-1
func (h *harness) approved(t *testing.T, startHour, endHour int) *models.Booking {
	t.Helper()
	b := h.create(t, startHour, endHour)
	approved, err := h.svc.Bookings.Approve(context.Background(), host, b.ID)
	if err != nil {
		t.Fatalf("approve booking: %v", err)
	}
	return approved
}

func strPtr(s string) *string { return &s }
