// Package inbox remembers which calendar-sync events were already applied,
// so Kafka redeliveries are ignored.
package inbox

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/db"
)

const defaultRetention = 7 * 24 * time.Hour

type Repository struct {
	pool      *db.Pool
	retention time.Duration
	now       func() time.Time
}

// NewRepository keeps ids for retention, which must outlast the longest
// redelivery window of the topic.
func NewRepository(pool *db.Pool, retention time.Duration) *Repository {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Repository{pool: pool, retention: retention, now: time.Now}
}

// Record claims eventID. False means another delivery already claimed it.
func (r *Repository) Record(ctx context.Context, eventID, eventType string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Forget releases the claim after a failed handler so the redelivery runs.
func (r *Repository) Forget(ctx context.Context, eventID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM inbox_events WHERE event_id = $1`, eventID)
	return err
}

// SweepExpired drops ids older than the retention window.
func (r *Repository) SweepExpired(ctx context.Context) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM inbox_events WHERE received_at < $1`, r.now().Add(-r.retention))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
