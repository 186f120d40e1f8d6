// Package testfixtures holds in-memory collaborators for engine tests.
package testfixtures

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

var ErrBookingNotFound = errors.New("testfixtures: booking not found")

// Store implements every reader the availability engine consumes, backed by
// slices that tests fill directly.
type Store struct {
	mu        sync.RWMutex
	rules     []model.ScheduleRule
	events    []model.Event
	bookings  []model.Booking
	busy      []model.BusyInterval
	blackouts []model.BlackoutPeriod
	services  map[string]model.Service

	scheduleReads atomic.Int64
}

func NewStore() *Store {
	return &Store{services: map[string]model.Service{}}
}

func (s *Store) AddRule(r model.ScheduleRule) *Store {
	s.mu.Lock()
	s.rules = append(s.rules, r)
	s.mu.Unlock()
	return s
}

func (s *Store) AddEvent(e model.Event) *Store {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return s
}

func (s *Store) AddBusy(b model.BusyInterval) *Store {
	s.mu.Lock()
	s.busy = append(s.busy, b)
	s.mu.Unlock()
	return s
}

func (s *Store) AddBlackout(p model.BlackoutPeriod) *Store {
	s.mu.Lock()
	s.blackouts = append(s.blackouts, p)
	s.mu.Unlock()
	return s
}

func (s *Store) AddService(svc model.Service) *Store {
	s.mu.Lock()
	s.services[svc.ID] = svc
	s.mu.Unlock()
	return s
}

// AddBooking appends b as committed state.
func (s *Store) AddBooking(b model.Booking) *Store {
	s.mu.Lock()
	s.bookings = append(s.bookings, b)
	s.mu.Unlock()
	return s
}

// PutBooking inserts or replaces the booking with b.ID.
func (s *Store) PutBooking(b model.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.bookings {
		if s.bookings[i].ID == b.ID {
			s.bookings[i] = b
			return
		}
	}
	s.bookings = append(s.bookings, b)
}

func (s *Store) Booking(id string) (model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bookings {
		if b.ID == id {
			return b, nil
		}
	}
	return model.Booking{}, ErrBookingNotFound
}

// ActiveBookings counts non-cancelled bookings.
func (s *Store) ActiveBookings() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, b := range s.bookings {
		if b.Active() {
			n++
		}
	}
	return n
}

// ScheduleReads reports how often WorkingWindows ran; tests use it to tell
// cache hits from recomputation.
func (s *Store) ScheduleReads() int64 { return s.scheduleReads.Load() }

func (s *Store) WorkingWindows(_ context.Context, isoWeekday int, f model.Filter) ([]model.ScheduleRule, error) {
	s.scheduleReads.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ScheduleRule
	for _, r := range s.rules {
		if r.AppliesOn(isoWeekday) && matches(f, r.EmployeeID, r.ServiceID, r.LocationID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) Events(_ context.Context, date model.Date, f model.Filter) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Event
	for _, e := range s.events {
		if e.Date.After(date) || (e.Rule == nil && e.Date != date) {
			continue
		}
		if matches(f, e.EmployeeID, e.ServiceID, e.LocationID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) BookingsForDate(_ context.Context, date model.Date, employeeID, serviceID *string) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.Date != date || !b.Active() {
			continue
		}
		if employeeID != nil && (b.EmployeeID == nil || *b.EmployeeID != *employeeID) {
			continue
		}
		if serviceID != nil && b.ServiceID != *serviceID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Store) BusyIntervals(_ context.Context, _ model.Date, employeeID string) ([]model.BusyInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.BusyInterval
	for _, b := range s.busy {
		if b.EmployeeID == employeeID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) ActivePeriods(_ context.Context, date model.Date) ([]model.BlackoutPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.BlackoutPeriod
	for _, p := range s.blackouts {
		if p.IsActive && p.Covers(date) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) Service(_ context.Context, id string) (model.Service, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[id]
	return svc, ok, nil
}

func matches(f model.Filter, employeeID, serviceID, locationID string) bool {
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

// Ptr returns a pointer to s.
func Ptr(s string) *string { return &s }

// MustDate parses an ISO date and panics on malformed fixtures.
func MustDate(s string) model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// MustClock parses HH:MM and panics on malformed fixtures.
func MustClock(s string) model.Clock {
	c, err := model.ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}
