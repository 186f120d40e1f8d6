package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
)

// Entry is a booking_outbox row before it is written. AggregateID is the
// booking id and becomes the Kafka key, which keeps one booking's events in
// order on a single partition.
type Entry struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Sink records booking events in the outbox after the booking commits.
type Sink struct {
	pool *db.Pool
	repo *Repository
}

func NewSink(pool *db.Pool, repo *Repository) *Sink {
	return &Sink{pool: pool, repo: repo}
}

func (s *Sink) Emit(ctx context.Context, evt booking.Event) error {
	out, err := EntryFor(evt)
	if err != nil {
		return err
	}
	return s.pool.InTx(ctx, func(tx pgx.Tx) error {
		_, err := s.repo.Insert(ctx, tx, out)
		return err
	})
}

func EntryFor(evt booking.Event) (Entry, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal %s: %w", evt.Type, err)
	}
	return Entry{
		AggregateType: "booking",
		AggregateID:   evt.Booking.ID,
		EventType:     evt.Type,
		Payload:       payload,
	}, nil
}
