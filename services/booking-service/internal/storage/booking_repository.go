package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

const bookingColumns = `id::text, booking_date, start_minute, end_minute, timezone, employee_id, service_id, location_id,
	quantity, status, customer_name, customer_email, customer_phone, cancelled_at, COALESCE(cancel_reason, ''), created_at`

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (booking.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &bookingTx{tx: tx}, nil
}

func (r *BookingRepository) Get(ctx context.Context, id string) (model.Booking, error) {
	b, err := scanBooking(r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id::text = $1`, id))
	return b, classify(err)
}

// BookingsForDate returns active bookings on a native date.
func (r *BookingRepository) BookingsForDate(ctx context.Context, date model.Date, employeeID, serviceID *string) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE booking_date = $1
			AND status <> 'cancelled'
			AND ($2::text IS NULL OR employee_id = $2)
			AND ($3::text IS NULL OR service_id = $3)
		ORDER BY start_minute ASC
	`, date.Time(), employeeID, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

type bookingTx struct {
	tx pgx.Tx
}

func (t *bookingTx) Insert(ctx context.Context, b model.Booking) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO bookings
			(id, booking_date, start_minute, end_minute, timezone, employee_id, service_id, location_id,
			 quantity, status, customer_name, customer_email, customer_phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, b.ID, b.Date.Time(), int(b.StartTime), int(b.EndTime), b.Timezone, b.EmployeeID, b.ServiceID, b.LocationID,
		b.Quantity, string(b.Status), b.CustomerName, b.CustomerEmail, b.CustomerPhone, b.CreatedAt)
	return classify(err)
}

func (t *bookingTx) GetForUpdate(ctx context.Context, id string) (model.Booking, error) {
	b, err := scanBooking(t.tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id::text = $1 FOR UPDATE`, id))
	return b, classify(err)
}

func (t *bookingTx) Cancel(ctx context.Context, id, reason string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = $2,
			cancel_reason = NULLIF($3, '')
		WHERE id::text = $1
	`, id, at, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func (t *bookingTx) Commit(ctx context.Context) error {
	return classify(t.tx.Commit(ctx))
}

func (t *bookingTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func scanBooking(row pgx.Row) (model.Booking, error) {
	var (
		b           model.Booking
		date        time.Time
		start, end  int
		status      string
		cancelledAt *time.Time
	)
	err := row.Scan(
		&b.ID,
		&date,
		&start,
		&end,
		&b.Timezone,
		&b.EmployeeID,
		&b.ServiceID,
		&b.LocationID,
		&b.Quantity,
		&status,
		&b.CustomerName,
		&b.CustomerEmail,
		&b.CustomerPhone,
		&cancelledAt,
		&b.CancelReason,
		&b.CreatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	b.Date = model.DateOf(date)
	b.StartTime, b.EndTime = model.Clock(start), model.Clock(end)
	b.Status = model.BookingStatus(status)
	b.CancelledAt = cancelledAt
	return b, nil
}

// classify maps driver errors onto booking sentinels.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case IsNotFound(err):
		return booking.ErrNotFound
	case IsConflict(err):
		return fmt.Errorf("%w: %v", booking.ErrConflict, err)
	}
	return err
}
