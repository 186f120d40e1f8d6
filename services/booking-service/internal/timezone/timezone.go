// Package timezone converts between wall-clock (date, time, zone) triples and
// absolute instants. Wall times inside a spring-forward gap are rejected and
// fall-back overlaps resolve to the earlier instant.
package timezone

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

var (
	ErrInvalidTimezone = errors.New("timezone: invalid timezone")
	ErrNonexistentTime = errors.New("timezone: wall-clock time does not exist in zone")
)

// Only IANA Area/Location names, UTC and Etc/GMT±N are accepted. Offset forms
// ("UTC+5") and abbreviations ("PST") are not.
var zonePattern = regexp.MustCompile(`^(UTC|Etc/GMT[+-]([0-9]|1[0-4])|[A-Z][A-Za-z_-]*(/[A-Za-z0-9_+-]+)+)$`)

var locations sync.Map

func Load(zone string) (*time.Location, error) {
	if v, ok := locations.Load(zone); ok {
		return v.(*time.Location), nil
	}
	if !zonePattern.MatchString(zone) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, zone)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, zone)
	}
	locations.Store(zone, loc)
	return loc, nil
}

// Valid reports whether zone would be accepted by Load.
func Valid(zone string) bool {
	_, err := Load(zone)
	return err == nil
}

func ToAbsolute(date model.Date, clock model.Clock, zone string) (time.Time, error) {
	loc, err := Load(zone)
	if err != nil {
		return time.Time{}, err
	}
	return resolve(date, clock, loc)
}

func FromAbsolute(instant time.Time, zone string) (model.Date, model.Clock, error) {
	loc, err := Load(zone)
	if err != nil {
		return model.Date{}, 0, err
	}
	local := instant.In(loc)
	return model.DateOf(local), model.ClockOf(local), nil
}

// ConvertWallClock re-expresses a wall-clock pair in another zone. The date
// may roll forward or back.
func ConvertWallClock(date model.Date, clock model.Clock, fromZone, toZone string) (model.Date, model.Clock, error) {
	instant, err := ToAbsolute(date, clock, fromZone)
	if err != nil {
		return model.Date{}, 0, err
	}
	return FromAbsolute(instant, toZone)
}

// ShiftSlots re-expresses every slot in toZone, preserving order and slot
// metadata. A slot's own Timezone wins over fromZone when set. Slots that
// start inside a DST gap are dropped.
func ShiftSlots(slots []model.Slot, fromZone, toZone string) ([]model.Slot, error) {
	if _, err := Load(toZone); err != nil {
		return nil, err
	}
	out := make([]model.Slot, 0, len(slots))
	for _, s := range slots {
		zone := s.Timezone
		if zone == "" {
			zone = fromZone
		}
		if zone == toZone {
			s.Timezone = toZone
			out = append(out, s)
			continue
		}
		start, err := ToAbsolute(s.Date, s.StartTime, zone)
		if errors.Is(err, ErrNonexistentTime) {
			continue
		}
		if err != nil {
			return nil, err
		}
		end := start.Add(time.Duration(s.DurationMinutes()) * time.Minute)

		s.Date, s.StartTime, _ = FromAbsolute(start, toZone)
		_, s.EndTime, _ = FromAbsolute(end, toZone)
		s.Timezone = toZone
		out = append(out, s)
	}
	return out, nil
}

func resolve(date model.Date, clock model.Clock, loc *time.Location) (time.Time, error) {
	if clock < 0 || clock > model.MinutesPerDay {
		return time.Time{}, fmt.Errorf("timezone: clock %d out of range", clock)
	}
	if clock == model.MinutesPerDay {
		date, clock = date.AddDays(1), 0
	}
	h, m := clock.Hour(), clock.Minute()
	naive := time.Date(date.Year, date.Month, date.Day, h, m, 0, 0, time.UTC)

	// Try every offset in effect within a day of the wall time; the ones whose
	// instant reads back as the same wall time are the valid interpretations.
	var best time.Time
	found := false
	for _, guess := range []time.Time{naive.Add(-24 * time.Hour), naive, naive.Add(24 * time.Hour)} {
		_, offset := guess.In(loc).Zone()
		candidate := naive.Add(-time.Duration(offset) * time.Second)
		wall := candidate.In(loc)
		if model.DateOf(wall) != date || wall.Hour() != h || wall.Minute() != m {
			continue
		}
		if !found || candidate.Before(best) {
			best, found = candidate, true
		}
	}
	if !found {
		return time.Time{}, fmt.Errorf("%w: %s %s in %s", ErrNonexistentTime, date, clock, loc)
	}
	return best.In(loc), nil
}
