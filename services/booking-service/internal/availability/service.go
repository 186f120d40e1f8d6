// Package availability computes bookable slots from schedules, events,
// bookings, blackouts, buffers and external busy time.
package availability

import (
	"context"
	"errors"
	"log/slog"
	"time"

	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/blackout"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/cache"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/timezone"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ScheduleReader interface {
	WorkingWindows(ctx context.Context, isoWeekday int, f model.Filter) ([]model.ScheduleRule, error)
}

// EventReader returns one-off events on date and recurring events anchored
// on or before date.
type EventReader interface {
	Events(ctx context.Context, date model.Date, f model.Filter) ([]model.Event, error)
}

// BookingReader returns non-cancelled bookings whose native date is date.
type BookingReader interface {
	BookingsForDate(ctx context.Context, date model.Date, employeeID, serviceID *string) ([]model.Booking, error)
}

type BusyReader interface {
	BusyIntervals(ctx context.Context, date model.Date, employeeID string) ([]model.BusyInterval, error)
}

type ServiceCatalog interface {
	Service(ctx context.Context, id string) (model.Service, bool, error)
}

// Deps are the collaborators. Events, Busy, Catalog, Blackouts and Cache are
// optional.
type Deps struct {
	Schedules ScheduleReader
	Events    EventReader
	Bookings  BookingReader
	Busy      BusyReader
	Catalog   ServiceCatalog
	Blackouts *blackout.Service
	Cache     *cache.AvailabilityCache
}

type Config struct {
	DefaultTimezone    string
	DefaultSlotMinutes int
	MinAdvance         time.Duration
	// MaxAdvance of zero means no upper horizon.
	MaxAdvance time.Duration
}

type Service struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	tracer trace.Tracer
}

func New(deps Deps, cfg Config, logger *slog.Logger, now func() time.Time) *Service {
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	if cfg.DefaultSlotMinutes <= 0 {
		cfg.DefaultSlotMinutes = 30
	}
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		now:    now,
		tracer: otelx.Tracer("booking-service/availability"),
	}
}

// Request selects the slots to compute. Date is read in each employee's own
// zone; results are expressed in Timezone, or the default zone when empty.
type Request struct {
	Date       model.Date
	EmployeeID *string
	LocationID *string
	ServiceID  *string
	Quantity   int
	Timezone   string
}

func (r Request) filter() model.Filter {
	return model.Filter{EmployeeID: r.EmployeeID, LocationID: r.LocationID, ServiceID: r.ServiceID}
}

func (r Request) cacheQuery() cache.Query {
	return cache.Query{
		Date:       r.Date,
		EmployeeID: model.StringOr(r.EmployeeID, ""),
		ServiceID:  model.StringOr(r.ServiceID, ""),
		LocationID: model.StringOr(r.LocationID, ""),
	}
}

func (r Request) Validate() error {
	v := &model.ValidationError{}
	if r.Date.IsZero() {
		v.Add("date", "required")
	}
	if r.Quantity <= 0 {
		v.Add("quantity", "must be a positive integer")
	}
	if err := v.Err(); err != nil {
		return err
	}
	if r.Timezone != "" {
		if _, err := timezone.Load(r.Timezone); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) GetAvailableSlots(ctx context.Context, req Request) ([]model.Slot, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "availability.GetAvailableSlots", trace.WithAttributes(
		attribute.String("slot.date", req.Date.String()),
		attribute.String("slot.employee_id", model.StringOr(req.EmployeeID, "any")),
		attribute.String("slot.service_id", model.StringOr(req.ServiceID, "all")),
		attribute.Int("slot.quantity", req.Quantity),
	))
	defer span.End()

	q := req.cacheQuery()
	gen := s.deps.Cache.Generation()
	candidates, hit := s.deps.Cache.Get(ctx, q)
	span.SetAttributes(attribute.Bool("cache.hit", hit))
	if !hit {
		var err error
		candidates, err = s.candidates(ctx, req.Date, req.filter())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "compute failed")
			return nil, err
		}
		if !s.deps.Cache.SetFresh(ctx, q, candidates, gen) {
			s.logger.Debug("availability not cached: invalidated during computation", "key", q.Key())
		}
	}

	slots, err := s.finish(req, candidates)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("slot.count", len(slots)))
	return slots, nil
}

// FindSlot reads live state, never the cache, and returns the per-employee
// slot a booking starting at start would occupy. start is read in the
// request's zone. For "any provider" requests the first free employee wins.
func (s *Service) FindSlot(ctx context.Context, req Request, start model.Clock) (model.Slot, bool, error) {
	slots, err := s.FindSlots(ctx, req, start)
	if err != nil || len(slots) == 0 {
		return model.Slot{}, false, err
	}
	return slots[0], true, nil
}

// FindSlots is FindSlot returning every employee that could take the
// booking, in preference order. Capacity on each is the aggregate seat count
// for that start, or 1 when an employee was requested.
func (s *Service) FindSlots(ctx context.Context, req Request, start model.Clock) ([]model.Slot, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "availability.FindSlots", trace.WithAttributes(
		attribute.String("slot.date", req.Date.String()),
		attribute.String("slot.start", start.String()),
		attribute.String("slot.employee_id", model.StringOr(req.EmployeeID, "any")),
	))
	defer span.End()

	want, err := timezone.ToAbsolute(req.Date, start, s.outputZone(req))
	if errors.Is(err, timezone.ErrNonexistentTime) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	var found []model.Slot
	seen := map[string]bool{}
	// The native date can differ from the requested one when zones differ.
	for _, d := range []model.Date{req.Date, req.Date.AddDays(-1), req.Date.AddDays(1)} {
		candidates, err := s.candidates(ctx, d, req.filter())
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		for _, c := range candidates {
			at, err := timezone.ToAbsolute(c.Date, c.StartTime, c.Timezone)
			if err != nil || !at.Equal(want) || !s.bookableAt(c, now) {
				continue
			}
			if req.EmployeeID != nil {
				c.Capacity = 1
			}
			emp := model.StringOr(c.EmployeeID, "")
			if c.Capacity < req.Quantity || seen[emp] {
				continue
			}
			seen[emp] = true
			found = append(found, c)
		}
	}
	span.SetAttributes(attribute.Int("slot.count", len(found)))
	return found, nil
}

func (s *Service) IsSlotAvailable(ctx context.Context, req Request, start model.Clock) (bool, error) {
	_, ok, err := s.FindSlot(ctx, req, start)
	return ok, err
}

// DefaultTimezone is the zone used for output when a request names none.
func (s *Service) DefaultTimezone() string { return s.cfg.DefaultTimezone }

func (s *Service) outputZone(req Request) string {
	if req.Timezone != "" {
		return req.Timezone
	}
	return s.cfg.DefaultTimezone
}

// finish applies the time-relative and request-specific steps that are not
// cached: advance horizons, quantity, zone shift and provider collapse.
func (s *Service) finish(req Request, candidates []model.Slot) ([]model.Slot, error) {
	now := s.now()
	kept := make([]model.Slot, 0, len(candidates))
	for _, c := range candidates {
		if !s.bookableAt(c, now) {
			continue
		}
		if req.EmployeeID != nil {
			c.Capacity = 1
		}
		if c.Capacity < req.Quantity {
			continue
		}
		kept = append(kept, c)
	}

	shifted, err := timezone.ShiftSlots(kept, s.cfg.DefaultTimezone, s.outputZone(req))
	if err != nil {
		return nil, err
	}
	if req.EmployeeID == nil {
		return CollapseAnyProvider(shifted), nil
	}
	return shifted, nil
}

// bookableAt drops past dates unconditionally and applies the minimum
// (inclusive) and maximum advance horizons.
func (s *Service) bookableAt(slot model.Slot, now time.Time) bool {
	zone := slot.Timezone
	if zone == "" {
		zone = s.cfg.DefaultTimezone
	}
	start, err := timezone.ToAbsolute(slot.Date, slot.StartTime, zone)
	if err != nil {
		return false
	}
	today, _, err := timezone.FromAbsolute(now, zone)
	if err != nil || slot.Date.Before(today) {
		return false
	}
	if start.Before(now.Add(s.cfg.MinAdvance)) {
		return false
	}
	if s.cfg.MaxAdvance > 0 && start.After(now.Add(s.cfg.MaxAdvance)) {
		return false
	}
	return true
}

// CollapseAnyProvider merges slots that share a date and start time into one
// "any provider" slot. Its capacity is the number of distinct employees,
// capped by the aggregate seat count the slots carry, so unassigned bookings
// still count against it. First-seen order and metadata are kept.
func CollapseAnyProvider(slots []model.Slot) []model.Slot {
	type group struct {
		idx       int
		aggregate int
		employees map[string]struct{}
	}
	groups := map[string]*group{}
	var order []*group
	out := make([]model.Slot, 0, len(slots))
	for _, slot := range slots {
		key := slot.Date.String() + "T" + slot.StartTime.String()
		g, ok := groups[key]
		if !ok {
			merged := slot
			merged.EmployeeID = nil
			merged.EmployeeName = model.AnyProviderName
			out = append(out, merged)
			g = &group{idx: len(out) - 1, aggregate: slot.Capacity, employees: map[string]struct{}{}}
			groups[key] = g
			order = append(order, g)
		}
		g.aggregate = min(g.aggregate, slot.Capacity)
		g.employees[model.StringOr(slot.EmployeeID, "")] = struct{}{}
	}
	for _, g := range order {
		out[g.idx].Capacity = min(len(g.employees), g.aggregate)
	}
	return out
}
