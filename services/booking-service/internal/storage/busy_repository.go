package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// BusyRepository stores busy time pushed by external calendars.
type BusyRepository struct {
	pool *db.Pool
}

func NewBusyRepository(pool *db.Pool) *BusyRepository {
	return &BusyRepository{pool: pool}
}

// BusyIntervals returns intervals that can touch date in any zone; the
// engine clips them to the employee's day.
func (r *BusyRepository) BusyIntervals(ctx context.Context, date model.Date, employeeID string) ([]model.BusyInterval, error) {
	from := date.Time().Add(-14 * time.Hour)
	to := date.Time().Add(24*time.Hour + 14*time.Hour)
	rows, err := r.pool.Query(ctx, `
		SELECT employee_id, starts_at, ends_at, source
		FROM external_busy_intervals
		WHERE employee_id = $1 AND starts_at < $3 AND ends_at > $2
		ORDER BY starts_at
	`, employeeID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.BusyInterval, error) {
		var iv model.BusyInterval
		err := row.Scan(&iv.EmployeeID, &iv.Start, &iv.End, &iv.Source)
		return iv, err
	})
}

// Upsert replaces the interval identified by source and externalID.
func (r *BusyRepository) Upsert(ctx context.Context, externalID string, iv model.BusyInterval) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO external_busy_intervals (source, external_id, employee_id, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source, external_id) DO UPDATE
		SET employee_id = EXCLUDED.employee_id,
			starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at,
			updated_at = now()
	`, iv.Source, externalID, iv.EmployeeID, iv.Start, iv.End)
	return err
}

// Delete removes an interval and returns what was stored, if anything.
func (r *BusyRepository) Delete(ctx context.Context, source, externalID string) (model.BusyInterval, bool, error) {
	var iv model.BusyInterval
	err := r.pool.QueryRow(ctx, `
		DELETE FROM external_busy_intervals
		WHERE source = $1 AND external_id = $2
		RETURNING employee_id, starts_at, ends_at, source
	`, source, externalID).Scan(&iv.EmployeeID, &iv.Start, &iv.End, &iv.Source)
	if IsNotFound(err) {
		return model.BusyInterval{}, false, nil
	}
	if err != nil {
		return model.BusyInterval{}, false, err
	}
	return iv, true, nil
}
