// Package blackout answers whether a date is excluded for an employee or
// location.
package blackout

import (
	"context"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// Reader returns the active periods covering date.
type Reader interface {
	ActivePeriods(ctx context.Context, date model.Date) ([]model.BlackoutPeriod, error)
}

type Service struct {
	reader Reader
}

func NewService(reader Reader) *Service {
	return &Service{reader: reader}
}

// IsBlackedOut reports whether any active period covers date for the given
// employee and location. A period without an employee (or location) applies
// to all of them.
func (s *Service) IsBlackedOut(ctx context.Context, date model.Date, employeeID, locationID *string) (bool, error) {
	set, err := s.ForDate(ctx, date)
	if err != nil {
		return false, err
	}
	return set.Blocks(employeeID, locationID), nil
}

// ForDate loads the periods for one date so callers can test many employees
// with a single read.
func (s *Service) ForDate(ctx context.Context, date model.Date) (Set, error) {
	if s == nil || s.reader == nil {
		return Set{}, nil
	}
	periods, err := s.reader.ActivePeriods(ctx, date)
	if err != nil {
		return Set{}, err
	}
	var set Set
	for _, p := range periods {
		if p.IsActive && p.Covers(date) {
			set.periods = append(set.periods, p)
		}
	}
	return set, nil
}

type Set struct {
	periods []model.BlackoutPeriod
}

func (s Set) Blocks(employeeID, locationID *string) bool {
	for _, p := range s.periods {
		if matches(p.EmployeeID, employeeID) && matches(p.LocationID, locationID) {
			return true
		}
	}
	return false
}

func (s Set) Len() int { return len(s.periods) }

func matches(scope, requested *string) bool {
	if scope == nil {
		return true
	}
	return requested != nil && *requested == *scope
}
