package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
)

// Repository works inside caller transactions so rows can be claimed with
// FOR UPDATE SKIP LOCKED by several publishers.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Insert stores e together with the trace context of ctx.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, e Entry) (string, error) {
	tc := otelx.CurrentTraceContext(ctx)
	var eventID string
	err := tx.QueryRow(ctx, `
		INSERT INTO booking_outbox (aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING event_id::text
	`, e.AggregateType, e.AggregateID, e.EventType, e.Payload, tc.Parent, tc.State).Scan(&eventID)
	return eventID, err
}

type Record struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}

func (r *Repository) FetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_id::text, aggregate_type, aggregate_id, event_type, payload,
			COALESCE(traceparent, ''), COALESCE(tracestate, ''), created_at
		FROM booking_outbox
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rcd Record
		if err := rows.Scan(&rcd.ID, &rcd.EventID, &rcd.AggregateType, &rcd.AggregateID, &rcd.EventType,
			&rcd.Payload, &rcd.Traceparent, &rcd.Tracestate, &rcd.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rcd)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func (r *Repository) MarkPublished(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE booking_outbox
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}
