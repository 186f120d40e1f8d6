package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/recurrence"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/timezone"
)

const dayMinutes = int(model.MinutesPerDay)

type window struct {
	model.TimeWindow
	locationID string
}

// employeeDay is one employee's working picture for a single native date.
type employeeDay struct {
	id      string
	name    string
	zone    string
	windows []window
	free    [dayMinutes]bool
}

type serviceShape struct {
	duration     int
	bufferBefore int
	bufferAfter  int
}

// candidates returns per-employee slots for date in each employee's zone,
// ordered by start time and then by roster order. Capacity is the aggregate
// number of free units over the slot.
func (s *Service) candidates(ctx context.Context, date model.Date, f model.Filter) ([]model.Slot, error) {
	shape, err := s.shape(ctx, f.ServiceID)
	if err != nil {
		return nil, err
	}
	roster, err := s.roster(ctx, date, f)
	if err != nil {
		return nil, err
	}
	if len(roster) == 0 {
		return nil, nil
	}

	blackouts, err := s.deps.Blackouts.ForDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load blackouts: %w", err)
	}
	for _, e := range roster {
		kept := e.windows[:0]
		for _, w := range e.windows {
			loc := f.LocationID
			if w.locationID != "" {
				loc = &w.locationID
			}
			if blackouts.Blocks(&e.id, loc) {
				continue
			}
			kept = append(kept, w)
		}
		e.windows = mergeWindows(kept)
		for _, w := range e.windows {
			setRange(e.free[:], int(w.Start), int(w.End), true)
		}
	}

	if s.deps.Busy != nil {
		for _, e := range roster {
			if len(e.windows) == 0 {
				continue
			}
			intervals, err := s.deps.Busy.BusyIntervals(ctx, date, e.id)
			if err != nil {
				return nil, fmt.Errorf("load busy intervals for %s: %w", e.id, err)
			}
			for _, iv := range intervals {
				from, to := minuteOn(iv.Start, date, e.zone, false), minuteOn(iv.End, date, e.zone, true)
				setRange(e.free[:], from, to, false)
			}
		}
	}

	consumed, err := s.applyBookings(ctx, date, f, roster)
	if err != nil {
		return nil, err
	}

	var aggregate [dayMinutes]int
	for m := 0; m < dayMinutes; m++ {
		n := -consumed[m]
		for _, e := range roster {
			if e.free[m] {
				n++
			}
		}
		aggregate[m] = n
	}

	var slots []model.Slot
	for _, e := range roster {
		for _, w := range e.windows {
			first := int(w.Start) + shape.bufferBefore
			for start := first; start+shape.duration+shape.bufferAfter <= int(w.End); start += shape.duration {
				end := start + shape.duration
				if !allSet(e.free[:], start-shape.bufferBefore, end+shape.bufferAfter) {
					continue
				}
				capacity := minOver(aggregate[:], start, end)
				if capacity <= 0 {
					continue
				}
				if _, err := timezone.ToAbsolute(date, model.Clock(start), e.zone); err != nil {
					continue
				}
				id := e.id
				slots = append(slots, model.Slot{
					Date:         date,
					StartTime:    model.Clock(start),
					EndTime:      model.Clock(end),
					EmployeeID:   &id,
					EmployeeName: e.name,
					ServiceID:    model.StringOr(f.ServiceID, ""),
					LocationID:   firstNonEmpty(w.locationID, model.StringOr(f.LocationID, "")),
					Timezone:     e.zone,
					Capacity:     capacity,
				})
			}
		}
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].StartTime < slots[j].StartTime })
	return slots, nil
}

func (s *Service) shape(ctx context.Context, serviceID *string) (serviceShape, error) {
	shape := serviceShape{duration: s.cfg.DefaultSlotMinutes}
	if serviceID == nil || s.deps.Catalog == nil {
		return shape, nil
	}
	svc, ok, err := s.deps.Catalog.Service(ctx, *serviceID)
	if err != nil {
		return serviceShape{}, fmt.Errorf("load service %s: %w", *serviceID, err)
	}
	if !ok {
		return serviceShape{}, &model.ValidationError{FieldErrors: map[string]string{"service_id": "unknown service"}}
	}
	if svc.DurationMinutes > 0 {
		shape.duration = svc.DurationMinutes
	}
	shape.bufferBefore = max(svc.BufferBeforeMinutes, 0)
	shape.bufferAfter = max(svc.BufferAfterMinutes, 0)
	return shape, nil
}

// roster gathers weekly rules and event occurrences for date, grouped by
// employee in first-seen order.
func (s *Service) roster(ctx context.Context, date model.Date, f model.Filter) ([]*employeeDay, error) {
	var roster []*employeeDay
	byID := map[string]*employeeDay{}
	add := func(employeeID, name, zone, locationID string, w model.TimeWindow) {
		if employeeID == "" || !w.Valid() {
			return
		}
		if zone == "" {
			zone = s.cfg.DefaultTimezone
		}
		e, ok := byID[employeeID]
		if !ok {
			e = &employeeDay{id: employeeID, name: name, zone: zone}
			byID[employeeID] = e
			roster = append(roster, e)
		} else if e.zone != zone {
			s.logger.Warn("employee has windows in more than one timezone", "employee_id", employeeID, "zone", e.zone, "ignored_zone", zone)
			return
		}
		e.windows = append(e.windows, window{TimeWindow: w, locationID: locationID})
	}

	weekday := date.ISOWeekday()
	rules, err := s.deps.Schedules.WorkingWindows(ctx, weekday, f)
	if err != nil {
		return nil, fmt.Errorf("load schedule rules: %w", err)
	}
	for _, r := range rules {
		if !r.AppliesOn(weekday) || !matchesFilter(f, r.EmployeeID, r.ServiceID, r.LocationID) {
			continue
		}
		add(r.EmployeeID, r.EmployeeName, r.Timezone, r.LocationID, r.Window())
	}

	if s.deps.Events != nil {
		events, err := s.deps.Events.Events(ctx, date, f)
		if err != nil {
			return nil, fmt.Errorf("load events: %w", err)
		}
		for _, ev := range events {
			if !matchesFilter(f, ev.EmployeeID, ev.ServiceID, ev.LocationID) {
				continue
			}
			occ, err := recurrence.ExpandEvent(ev, date, date)
			if err != nil {
				s.logger.Warn("skipping event with invalid recurrence", "err", err, "event_id", ev.ID)
				continue
			}
			if len(occ) == 0 {
				continue
			}
			add(ev.EmployeeID, ev.EmployeeName, ev.Timezone, ev.LocationID, ev.Window())
		}
	}
	return roster, nil
}

// applyBookings marks employee-assigned bookings as busy and returns the
// per-minute units consumed beyond that: unassigned bookings for the
// requested service plus the extra seats of multi-seat assigned bookings.
func (s *Service) applyBookings(ctx context.Context, date model.Date, f model.Filter, roster []*employeeDay) ([dayMinutes]int, error) {
	var consumed [dayMinutes]int
	bookings, err := s.deps.Bookings.BookingsForDate(ctx, date, nil, nil)
	if err != nil {
		return consumed, fmt.Errorf("load bookings: %w", err)
	}
	byID := make(map[string]*employeeDay, len(roster))
	for _, e := range roster {
		byID[e.id] = e
	}
	buffers := map[string]serviceShape{}

	for _, b := range bookings {
		if !b.Active() {
			continue
		}
		quantity := max(b.Quantity, 1)
		if b.EmployeeID != nil {
			e, ok := byID[*b.EmployeeID]
			if !ok {
				continue
			}
			start, end, ok := s.bookingSpan(b, date, e.zone)
			if !ok {
				continue
			}
			shape := s.bookingBuffers(ctx, b.ServiceID, buffers)
			setRange(e.free[:], start-shape.bufferBefore, end+shape.bufferAfter, false)
			addRange(consumed[:], start, end, quantity-1)
			continue
		}
		if f.ServiceID != nil && b.ServiceID != *f.ServiceID {
			continue
		}
		if f.LocationID != nil && b.LocationID != nil && *b.LocationID != *f.LocationID {
			continue
		}
		start, end, ok := s.bookingSpan(b, date, s.cfg.DefaultTimezone)
		if !ok {
			continue
		}
		addRange(consumed[:], start, end, quantity)
	}
	return consumed, nil
}

func (s *Service) bookingBuffers(ctx context.Context, serviceID string, memo map[string]serviceShape) serviceShape {
	if shape, ok := memo[serviceID]; ok {
		return shape
	}
	var shape serviceShape
	if s.deps.Catalog != nil && serviceID != "" {
		svc, ok, err := s.deps.Catalog.Service(ctx, serviceID)
		if err != nil {
			s.logger.Warn("booking buffers unavailable", "err", err, "service_id", serviceID)
		} else if ok {
			shape.bufferBefore = max(svc.BufferBeforeMinutes, 0)
			shape.bufferAfter = max(svc.BufferAfterMinutes, 0)
		}
	}
	memo[serviceID] = shape
	return shape
}

// bookingSpan expresses a booking as minutes of date in zone.
func (s *Service) bookingSpan(b model.Booking, date model.Date, zone string) (int, int, bool) {
	length := int(b.EndTime - b.StartTime)
	if length <= 0 {
		length += dayMinutes
	}
	bookingDate, start := b.Date, b.StartTime
	if b.Timezone != "" && b.Timezone != zone {
		var err error
		bookingDate, start, err = timezone.ConvertWallClock(b.Date, b.StartTime, b.Timezone, zone)
		if err != nil {
			return 0, 0, false
		}
	}
	if bookingDate != date {
		return 0, 0, false
	}
	return int(start), min(int(start)+length, dayMinutes), true
}

func matchesFilter(f model.Filter, employeeID, serviceID, locationID string) bool {
	if f.EmployeeID != nil && employeeID != *f.EmployeeID {
		return false
	}
	if f.ServiceID != nil && serviceID != "" && serviceID != *f.ServiceID {
		return false
	}
	if f.LocationID != nil && locationID != "" && locationID != *f.LocationID {
		return false
	}
	return true
}

// mergeWindows sorts and unions overlapping or touching windows.
func mergeWindows(ws []window) []window {
	if len(ws) < 2 {
		return ws
	}
	sort.SliceStable(ws, func(i, j int) bool { return ws[i].Start < ws[j].Start })
	out := []window{ws[0]}
	for _, w := range ws[1:] {
		last := &out[len(out)-1]
		if w.Start <= last.End {
			if w.End > last.End {
				last.End = w.End
			}
			continue
		}
		out = append(out, w)
	}
	return out
}

// minuteOn maps an instant to a minute of date in zone, clamped to the day.
// ceil rounds partial minutes up, for interval ends.
func minuteOn(t time.Time, date model.Date, zone string, ceil bool) int {
	d, c, err := timezone.FromAbsolute(t, zone)
	if err != nil {
		return 0
	}
	switch {
	case d.Before(date):
		return 0
	case d.After(date):
		return dayMinutes
	}
	m := int(c)
	if ceil && t.Truncate(time.Minute) != t {
		m++
	}
	return m
}

func setRange(xs []bool, from, to int, v bool) {
	from, to = max(from, 0), min(to, len(xs))
	for m := from; m < to; m++ {
		xs[m] = v
	}
}

func addRange(xs []int, from, to, n int) {
	if n == 0 {
		return
	}
	from, to = max(from, 0), min(to, len(xs))
	for m := from; m < to; m++ {
		xs[m] += n
	}
}

// allSet reports whether every minute of [from, to) is free. Spans reaching
// outside the day are never free.
func allSet(xs []bool, from, to int) bool {
	if from < 0 || to > len(xs) {
		return false
	}
	for m := from; m < to; m++ {
		if !xs[m] {
			return false
		}
	}
	return true
}

func minOver(xs []int, from, to int) int {
	low := xs[from]
	for m := from + 1; m < to; m++ {
		if xs[m] < low {
			low = xs[m]
		}
	}
	return low
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
