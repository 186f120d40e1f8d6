// Package softlock provides short checkout holds on a slot. Holds are
// first-writer-wins and never block.
package softlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

var ErrAlreadyLocked = errors.New("softlock: slot already held")

// Key is the exclusivity tuple of a hold.
type Key struct {
	ServiceID  string
	EmployeeID *string
	LocationID *string
	Date       model.Date
	StartTime  model.Clock
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s",
		k.ServiceID, model.StringOr(k.EmployeeID, "any"), model.StringOr(k.LocationID, "any"), k.Date, k.StartTime)
}

func KeyOf(l model.SoftLock) Key {
	return Key{ServiceID: l.ServiceID, EmployeeID: l.EmployeeID, LocationID: l.LocationID, Date: l.Date, StartTime: l.StartTime}
}

// Store persists holds. Expiry is always judged against the now passed in.
type Store interface {
	// Create stores lock under key unless an unexpired hold exists.
	Create(ctx context.Context, key string, lock model.SoftLock, now time.Time) (bool, error)
	Get(ctx context.Context, key string, now time.Time) (model.SoftLock, bool, error)
	DeleteToken(ctx context.Context, token string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type AcquireRequest struct {
	ServiceID  string
	EmployeeID *string
	LocationID *string
	Date       model.Date
	StartTime  model.Clock
	EndTime    model.Clock
}

type Service struct {
	store    Store
	ttl      time.Duration
	now      func() time.Time
	newToken func() string
}

func NewService(store Store, ttl time.Duration, now func() time.Time) *Service {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, ttl: ttl, now: now, newToken: uuid.NewString}
}

func (s *Service) TTL() time.Duration { return s.ttl }

func (s *Service) Acquire(ctx context.Context, req AcquireRequest) (model.SoftLock, error) {
	v := &model.ValidationError{}
	if req.ServiceID == "" {
		v.Add("service_id", "required")
	}
	if req.Date.IsZero() {
		v.Add("date", "required")
	}
	if req.EndTime <= req.StartTime {
		v.Add("end_time", "must be after start_time")
	}
	if err := v.Err(); err != nil {
		return model.SoftLock{}, err
	}

	now := s.now()
	lock := model.SoftLock{
		Token:      s.newToken(),
		ServiceID:  req.ServiceID,
		EmployeeID: req.EmployeeID,
		LocationID: req.LocationID,
		Date:       req.Date,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		ExpiresAt:  now.Add(s.ttl),
	}
	ok, err := s.store.Create(ctx, KeyOf(lock).String(), lock, now)
	if err != nil {
		return model.SoftLock{}, fmt.Errorf("create soft lock: %w", err)
	}
	if !ok {
		return model.SoftLock{}, ErrAlreadyLocked
	}
	return lock, nil
}

// Release deletes the hold for token. Unknown or already released tokens
// return false without an error.
func (s *Service) Release(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	return s.store.DeleteToken(ctx, token)
}

func (s *Service) IsHeld(ctx context.Context, key Key) (bool, error) {
	_, ok, err := s.Holder(ctx, key)
	return ok, err
}

// Holder returns the unexpired hold on key, if any.
func (s *Service) Holder(ctx context.Context, key Key) (model.SoftLock, bool, error) {
	return s.store.Get(ctx, key.String(), s.now())
}

func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	return s.store.DeleteExpired(ctx, s.now())
}
