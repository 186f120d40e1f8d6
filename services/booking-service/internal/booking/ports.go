package booking

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// Store opens transactions and serves plain reads. Implementations return
// ErrNotFound for unknown ids and ErrConflict when the database rejects an
// overlapping row.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Get(ctx context.Context, id string) (model.Booking, error)
}

// Tx is a single unit of work. Rollback after Commit is a no-op.
type Tx interface {
	Insert(ctx context.Context, b model.Booking) error
	GetForUpdate(ctx context.Context, id string) (model.Booking, error)
	Cancel(ctx context.Context, id, reason string, at time.Time) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

const (
	EventCreated   = "booking.created"
	EventCancelled = "booking.cancelled"
)

type Event struct {
	Type       string        `json:"event_type"`
	Booking    model.Booking `json:"booking"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// EventSink receives events after commit. Errors are logged by the caller.
type EventSink interface {
	Emit(ctx context.Context, evt Event) error
}

// SlotFinder re-validates a slot against live state. FindSlots lists every
// employee that could take the booking, preferred first.
type SlotFinder interface {
	FindSlots(ctx context.Context, req availability.Request, start model.Clock) ([]model.Slot, error)
}
