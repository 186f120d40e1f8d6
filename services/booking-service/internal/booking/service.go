// Package booking commits bookings under a per-slot mutex after re-checking
// live availability.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/cache"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/lock"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/softlock"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/timezone"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Deps struct {
	Store     Store
	Slots     SlotFinder
	Mutex     lock.Mutex
	SoftLocks *softlock.Service
	Cache     *cache.AvailabilityCache
	Events    EventSink
}

type Config struct {
	LockTimeout         time.Duration
	CancellationHorizon time.Duration
	DefaultTimezone     string
}

type Service struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
	tracer trace.Tracer
}

func New(deps Deps, cfg Config, logger *slog.Logger, now func() time.Time) *Service {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 5 * time.Second
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	if deps.Mutex == nil {
		deps.Mutex = lock.NewLocalMutex()
	}
	return &Service{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		now:    now,
		newID:  uuid.NewString,
		tracer: otelx.Tracer("booking-service/booking"),
	}
}

// CreateRequest books Quantity seats starting at StartTime on Date, both read
// in Timezone (the default zone when empty). A nil EmployeeID books any free
// provider. SoftLockToken lets the holder of a checkout hold book through it.
type CreateRequest struct {
	Date          model.Date
	StartTime     model.Clock
	ServiceID     string
	EmployeeID    *string
	LocationID    *string
	Quantity      int
	Timezone      string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	SoftLockToken string
}

func (r CreateRequest) Validate() error {
	v := &model.ValidationError{}
	if r.Date.IsZero() {
		v.Add("date", "required")
	}
	if r.StartTime < 0 || r.StartTime >= model.MinutesPerDay {
		v.Add("start_time", "must be within the day")
	}
	if r.ServiceID == "" {
		v.Add("service_id", "required")
	}
	if r.Quantity <= 0 {
		v.Add("quantity", "must be a positive integer")
	}
	if r.CustomerName == "" {
		v.Add("customer_name", "required")
	}
	if r.CustomerEmail != "" {
		if _, err := mail.ParseAddress(r.CustomerEmail); err != nil {
			v.Add("customer_email", "invalid email address")
		}
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

// Key is the mutex key for the requested start. It names the absolute
// instant and the service only, so named and "any provider" requests, and
// requests made from different zones, serialise on the same key.
func (r CreateRequest) Key(defaultZone string) (string, error) {
	zone := r.Timezone
	if zone == "" {
		zone = defaultZone
	}
	start, err := timezone.ToAbsolute(r.Date, r.StartTime, zone)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("booking:%s:%s", start.UTC().Format(time.RFC3339), r.ServiceID), nil
}

func (r CreateRequest) availabilityRequest() availability.Request {
	return availability.Request{
		Date:       r.Date,
		EmployeeID: r.EmployeeID,
		LocationID: r.LocationID,
		ServiceID:  &r.ServiceID,
		Quantity:   r.Quantity,
		Timezone:   r.Timezone,
	}
}

func (r CreateRequest) softLockKey() softlock.Key {
	return softlock.Key{
		ServiceID:  r.ServiceID,
		EmployeeID: r.EmployeeID,
		LocationID: r.LocationID,
		Date:       r.Date,
		StartTime:  r.StartTime,
	}
}

func (s *Service) CreateBooking(ctx context.Context, req CreateRequest) (model.Booking, error) {
	if err := req.Validate(); err != nil {
		return model.Booking{}, err
	}
	key, err := req.Key(s.cfg.DefaultTimezone)
	if errors.Is(err, timezone.ErrNonexistentTime) {
		return model.Booking{}, ErrSlotUnavailable
	}
	if err != nil {
		return model.Booking{}, err
	}
	ctx, span := s.tracer.Start(ctx, "booking.CreateBooking", trace.WithAttributes(
		attribute.String("booking.key", key),
		attribute.Int("booking.quantity", req.Quantity),
	))
	defer span.End()

	b, err := s.createLocked(ctx, req, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return model.Booking{}, err
	}
	span.SetAttributes(attribute.String("booking.id", b.ID))

	if req.SoftLockToken != "" && s.deps.SoftLocks != nil {
		if _, err := s.deps.SoftLocks.Release(ctx, req.SoftLockToken); err != nil {
			s.logger.Warn("soft lock release failed", "err", err, "booking_id", b.ID)
		}
	}
	s.emit(ctx, EventCreated, b)
	return b, nil
}

// createLocked runs the check-and-insert under the slot mutex and releases it
// before returning.
func (s *Service) createLocked(ctx context.Context, req CreateRequest, key string) (model.Booking, error) {
	ok, err := s.deps.Mutex.Acquire(ctx, key, s.cfg.LockTimeout)
	if err != nil {
		return model.Booking{}, fmt.Errorf("acquire booking lock: %w", err)
	}
	if !ok {
		return model.Booking{}, ErrConflict
	}
	defer func() {
		if err := s.deps.Mutex.Release(context.WithoutCancel(ctx), key); err != nil {
			s.logger.Error("booking lock release failed", "err", err, "key", key)
		}
	}()

	held, err := s.heldByOther(ctx, req.softLockKey(), req.SoftLockToken)
	if err != nil {
		return model.Booking{}, err
	}
	if held {
		return model.Booking{}, fmt.Errorf("%w: slot is held by another checkout", ErrSlotUnavailable)
	}

	slots, err := s.deps.Slots.FindSlots(ctx, req.availabilityRequest(), req.StartTime)
	if err != nil {
		return model.Booking{}, fmt.Errorf("check availability: %w", err)
	}
	if len(slots) == 0 {
		return model.Booking{}, ErrSlotUnavailable
	}
	slot, err := s.pickUnheld(ctx, req, slots)
	if err != nil {
		return model.Booking{}, err
	}

	b := model.Booking{
		ID:            s.newID(),
		Date:          slot.Date,
		StartTime:     slot.StartTime,
		EndTime:       slot.EndTime,
		Timezone:      slot.Timezone,
		EmployeeID:    slot.EmployeeID,
		ServiceID:     req.ServiceID,
		LocationID:    req.LocationID,
		Quantity:      req.Quantity,
		Status:        model.StatusConfirmed,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		CreatedAt:     s.now().UTC(),
	}
	if b.LocationID == nil && slot.LocationID != "" {
		b.LocationID = model.OptionalString(slot.LocationID)
	}

	err = s.inTx(ctx, func(tx Tx) error { return tx.Insert(ctx, b) })
	if errors.Is(err, ErrConflict) {
		return model.Booking{}, ErrSlotUnavailable
	}
	if err != nil {
		return model.Booking{}, fmt.Errorf("insert booking: %w", err)
	}

	s.invalidate(ctx, b)
	if b.Date != req.Date {
		s.deps.Cache.Invalidate(ctx, cache.DateTag(req.Date))
	}
	return b, nil
}

// pickUnheld returns the first slot whose employee is not held by another
// checkout. A named-employee booking is also refused while an "any provider"
// hold on the same start would be left without a free employee.
func (s *Service) pickUnheld(ctx context.Context, req CreateRequest, slots []model.Slot) (model.Slot, error) {
	if s.deps.SoftLocks == nil {
		return slots[0], nil
	}
	if req.EmployeeID != nil {
		anyKey := req.softLockKey()
		anyKey.EmployeeID = nil
		held, err := s.heldByOther(ctx, anyKey, req.SoftLockToken)
		if err != nil {
			return model.Slot{}, err
		}
		if held {
			anyReq := req.availabilityRequest()
			anyReq.EmployeeID = nil
			anyReq.Quantity = 1
			free, err := s.deps.Slots.FindSlots(ctx, anyReq, req.StartTime)
			if err != nil {
				return model.Slot{}, fmt.Errorf("check availability: %w", err)
			}
			seats := len(free)
			if seats > 0 {
				seats = min(seats, free[0].Capacity)
			}
			if seats-1 < 1 {
				return model.Slot{}, fmt.Errorf("%w: last provider is held by another checkout", ErrSlotUnavailable)
			}
		}
		return slots[0], nil
	}

	for _, slot := range slots {
		key := req.softLockKey()
		key.EmployeeID = slot.EmployeeID
		held, err := s.heldByOther(ctx, key, req.SoftLockToken)
		if err != nil {
			return model.Slot{}, err
		}
		if !held {
			return slot, nil
		}
	}
	return model.Slot{}, fmt.Errorf("%w: every free provider is held by another checkout", ErrSlotUnavailable)
}

func (s *Service) heldByOther(ctx context.Context, key softlock.Key, token string) (bool, error) {
	if s.deps.SoftLocks == nil {
		return false, nil
	}
	hold, held, err := s.deps.SoftLocks.Holder(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check soft lock: %w", err)
	}
	return held && hold.Token != token, nil
}

// CancelBooking cancels an active booking whose start is further away than
// the cancellation horizon.
func (s *Service) CancelBooking(ctx context.Context, id, reason string) (model.Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.CancelBooking", trace.WithAttributes(attribute.String("booking.id", id)))
	defer span.End()

	var cancelled model.Booking
	err := s.inTx(ctx, func(tx Tx) error {
		b, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !b.Active() {
			return fmt.Errorf("%w: booking already cancelled", ErrCancellationWindowClosed)
		}
		now := s.now()
		start, err := s.startOf(b)
		if err != nil {
			return err
		}
		if !start.After(now.Add(s.cfg.CancellationHorizon)) {
			return ErrCancellationWindowClosed
		}
		if err := tx.Cancel(ctx, id, reason, now); err != nil {
			return err
		}
		at := now.UTC()
		b.Status = model.StatusCancelled
		b.CancelledAt = &at
		b.CancelReason = reason
		cancelled = b
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel failed")
		return model.Booking{}, err
	}

	s.invalidate(ctx, cancelled)
	s.emit(ctx, EventCancelled, cancelled)
	return cancelled, nil
}

func (s *Service) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	return s.deps.Store.Get(ctx, id)
}

func (s *Service) inTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.deps.Store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Service) startOf(b model.Booking) (time.Time, error) {
	zone := b.Timezone
	if zone == "" {
		zone = s.cfg.DefaultTimezone
	}
	return timezone.ToAbsolute(b.Date, b.StartTime, zone)
}

func (s *Service) invalidate(ctx context.Context, b model.Booking) {
	n := s.deps.Cache.InvalidateBooking(ctx, b.Date, b.EmployeeID, b.ServiceID)
	s.logger.Debug("availability cache invalidated", "booking_id", b.ID, "entries", n)
}

func (s *Service) emit(ctx context.Context, eventType string, b model.Booking) {
	if s.deps.Events == nil {
		return
	}
	evt := Event{Type: eventType, Booking: b, OccurredAt: s.now().UTC()}
	if err := s.deps.Events.Emit(ctx, evt); err != nil {
		s.logger.Error("booking event emit failed", "err", err, "event_type", eventType, "booking_id", b.ID)
	}
}
