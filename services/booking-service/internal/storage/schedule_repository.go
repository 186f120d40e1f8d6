package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/recurrence"
)

// ScheduleRepository serves working rules, events and the service catalog.
type ScheduleRepository struct {
	pool   *db.Pool
	logger *slog.Logger
}

func NewScheduleRepository(pool *db.Pool, logger *slog.Logger) *ScheduleRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleRepository{pool: pool, logger: logger}
}

func (r *ScheduleRepository) WorkingWindows(ctx context.Context, isoWeekday int, f model.Filter) ([]model.ScheduleRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, days_of_week, start_minute, end_minute, employee_id, employee_name,
			COALESCE(service_id, ''), COALESCE(location_id, ''), COALESCE(timezone, '')
		FROM schedule_rules
		WHERE $1 = ANY(days_of_week)
			AND ($2::text IS NULL OR employee_id = $2)
			AND ($3::text IS NULL OR location_id IS NULL OR location_id = $3)
			AND ($4::text IS NULL OR service_id IS NULL OR service_id = $4)
		ORDER BY employee_id, start_minute
	`, isoWeekday, f.EmployeeID, f.LocationID, f.ServiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []model.ScheduleRule
	for rows.Next() {
		var (
			rule       model.ScheduleRule
			days       []int32
			start, end int
		)
		if err := rows.Scan(&rule.ID, &days, &start, &end, &rule.EmployeeID, &rule.EmployeeName,
			&rule.ServiceID, &rule.LocationID, &rule.Timezone); err != nil {
			return nil, err
		}
		for _, d := range days {
			rule.DaysOfWeek = append(rule.DaysOfWeek, int(d))
		}
		rule.StartTime, rule.EndTime = model.Clock(start), model.Clock(end)
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rules, nil
}

// Events returns one-off events on date and series anchored on or before it.
// Rows with an unparseable rrule are logged and left out.
func (r *ScheduleRepository) Events(ctx context.Context, date model.Date, f model.Filter) ([]model.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, anchor_date, start_minute, end_minute, employee_id, employee_name,
			COALESCE(service_id, ''), COALESCE(location_id, ''), COALESCE(timezone, ''), COALESCE(rrule, '')
		FROM schedule_events
		WHERE ((rrule IS NULL AND anchor_date = $1) OR (rrule IS NOT NULL AND anchor_date <= $1))
			AND ($2::text IS NULL OR employee_id = $2)
			AND ($3::text IS NULL OR location_id IS NULL OR location_id = $3)
			AND ($4::text IS NULL OR service_id IS NULL OR service_id = $4)
		ORDER BY employee_id, start_minute
	`, date.Time(), f.EmployeeID, f.LocationID, f.ServiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var (
			ev         model.Event
			anchor     time.Time
			start, end int
			rrule      string
		)
		if err := rows.Scan(&ev.ID, &anchor, &start, &end, &ev.EmployeeID, &ev.EmployeeName,
			&ev.ServiceID, &ev.LocationID, &ev.Timezone, &rrule); err != nil {
			return nil, err
		}
		ev.Date = model.DateOf(anchor)
		ev.StartTime, ev.EndTime = model.Clock(start), model.Clock(end)
		if rrule != "" {
			rule, err := recurrence.Parse(rrule)
			if err != nil {
				r.logger.Warn("skipping event with invalid rrule", "err", err, "event_id", ev.ID)
				continue
			}
			ev.Rule = &rule
		}
		events = append(events, ev)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

func (r *ScheduleRepository) Service(ctx context.Context, id string) (model.Service, bool, error) {
	var svc model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, duration_minutes, buffer_before_minutes, buffer_after_minutes
		FROM services
		WHERE id::text = $1 AND is_active
	`, id).Scan(&svc.ID, &svc.Name, &svc.DurationMinutes, &svc.BufferBeforeMinutes, &svc.BufferAfterMinutes)
	if IsNotFound(err) {
		return model.Service{}, false, nil
	}
	if err != nil {
		return model.Service{}, false, err
	}
	return svc, true, nil
}

// ActivePeriods returns active blackout periods covering date.
func (r *ScheduleRepository) ActivePeriods(ctx context.Context, date model.Date) ([]model.BlackoutPeriod, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, start_date, end_date, employee_id, location_id, is_active, COALESCE(reason, '')
		FROM blackout_periods
		WHERE is_active AND start_date <= $1 AND end_date >= $1
	`, date.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.BlackoutPeriod, error) {
		var (
			p          model.BlackoutPeriod
			start, end time.Time
		)
		err := row.Scan(&p.ID, &start, &end, &p.EmployeeID, &p.LocationID, &p.IsActive, &p.Reason)
		p.StartDate, p.EndDate = model.DateOf(start), model.DateOf(end)
		return p, err
	})
}
