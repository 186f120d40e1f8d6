// Package recurrence expands RFC 5545 style rules into concrete dates inside a
// bounded range.
package recurrence

import (
	"bufio"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/teambition/rrule-go"
)

var ErrInvalidRule = errors.New("recurrence: invalid rule")

// Occurrence is one expanded date. Sequence is the zero-based position in the
// full series, counting dates later removed as exceptions.
type Occurrence struct {
	Date     model.Date
	Sequence int
	EventID  string
}

var frequencies = map[model.Frequency]rrule.Frequency{
	model.Daily:   rrule.DAILY,
	model.Weekly:  rrule.WEEKLY,
	model.Monthly: rrule.MONTHLY,
	model.Yearly:  rrule.YEARLY,
}

var weekdays = map[string]rrule.Weekday{
	"MO": rrule.MO, "TU": rrule.TU, "WE": rrule.WE, "TH": rrule.TH,
	"FR": rrule.FR, "SA": rrule.SA, "SU": rrule.SU,
}

// Expand returns the occurrences of rule anchored at anchor that fall inside
// [rangeStart, rangeEnd], ascending. Both ends are inclusive. rangeEnd must be
// set, even for open-ended rules.
func Expand(rule model.RecurrenceRule, anchor, rangeStart, rangeEnd model.Date) ([]Occurrence, error) {
	if rangeEnd.IsZero() {
		return nil, fmt.Errorf("%w: range end is required", ErrInvalidRule)
	}
	if anchor.IsZero() {
		return nil, fmt.Errorf("%w: anchor date is required", ErrInvalidRule)
	}
	opt, err := toOption(rule, anchor)
	if err != nil {
		return nil, err
	}

	// Stop the iterator at the earliest of UNTIL and the range end so an
	// unbounded rule never runs past what was asked for.
	stop := rangeEnd
	if rule.Until != nil && rule.Until.Before(stop) {
		stop = *rule.Until
	}
	if stop.Before(anchor) || rangeEnd.Before(rangeStart) {
		return nil, nil
	}
	opt.Until = stop.Time()

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	excluded := make(map[model.Date]struct{}, len(rule.Exceptions))
	for _, d := range rule.Exceptions {
		excluded[d] = struct{}{}
	}

	var out []Occurrence
	for i, t := range r.All() {
		d := model.DateOf(t)
		if d.Before(anchor) || d.Before(rangeStart) {
			continue
		}
		if _, skip := excluded[d]; skip {
			continue
		}
		out = append(out, Occurrence{Date: d, Sequence: i})
	}
	return out, nil
}

// ExpandEvent expands a recurring event, or returns its single date when it
// does not recur.
func ExpandEvent(ev model.Event, rangeStart, rangeEnd model.Date) ([]Occurrence, error) {
	if ev.Rule == nil {
		if ev.Date.Before(rangeStart) || ev.Date.After(rangeEnd) {
			return nil, nil
		}
		return []Occurrence{{Date: ev.Date, EventID: ev.ID}}, nil
	}
	occ, err := Expand(*ev.Rule, ev.Date, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", ev.ID, err)
	}
	for i := range occ {
		occ[i].EventID = ev.ID
	}
	return occ, nil
}

func OccursOn(rule model.RecurrenceRule, anchor, date model.Date) (bool, error) {
	occ, err := Expand(rule, anchor, date, date)
	if err != nil {
		return false, err
	}
	return len(occ) > 0, nil
}

// Validate reports whether rule can be expanded.
func Validate(rule model.RecurrenceRule) error {
	opt, err := toOption(rule, model.Date{Year: 2000, Month: time.January, Day: 1})
	if err != nil {
		return err
	}
	if _, err := rrule.NewRRule(opt); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return nil
}

func toOption(rule model.RecurrenceRule, anchor model.Date) (rrule.ROption, error) {
	freq, ok := frequencies[model.Frequency(strings.ToUpper(string(rule.Frequency)))]
	if !ok {
		return rrule.ROption{}, fmt.Errorf("%w: unsupported frequency %q", ErrInvalidRule, rule.Frequency)
	}
	if rule.Interval < 0 || rule.Count < 0 {
		return rrule.ROption{}, fmt.Errorf("%w: interval and count must not be negative", ErrInvalidRule)
	}
	days := make([]rrule.Weekday, 0, len(rule.ByDay))
	for _, raw := range rule.ByDay {
		wd, err := parseWeekday(raw)
		if err != nil {
			return rrule.ROption{}, err
		}
		days = append(days, wd)
	}
	return rrule.ROption{
		Freq:       freq,
		Dtstart:    anchor.Time(),
		Interval:   rule.Interval,
		Count:      rule.Count,
		Wkst:       rrule.MO,
		Byweekday:  days,
		Bymonth:    rule.ByMonth,
		Bymonthday: rule.ByMonthDay,
		Byweekno:   rule.ByWeekNo,
		Bysetpos:   rule.BySetPos,
	}, nil
}

// parseWeekday accepts "MO", "1MO", "+2TU" and "-1FR".
func parseWeekday(raw string) (rrule.Weekday, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if len(s) < 2 {
		return rrule.Weekday{}, fmt.Errorf("%w: bad weekday %q", ErrInvalidRule, raw)
	}
	base, ok := weekdays[s[len(s)-2:]]
	if !ok {
		return rrule.Weekday{}, fmt.Errorf("%w: bad weekday %q", ErrInvalidRule, raw)
	}
	if len(s) == 2 {
		return base, nil
	}
	n, err := strconv.Atoi(s[:len(s)-2])
	if err != nil || n == 0 || n > 53 || n < -53 {
		return rrule.Weekday{}, fmt.Errorf("%w: bad weekday ordinal %q", ErrInvalidRule, raw)
	}
	return base.Nth(n), nil
}

// Parse reads an RRULE line, optionally followed by EXDATE lines, into a rule.
// DTSTART is ignored; the anchor is supplied at expansion time.
func Parse(text string) (model.RecurrenceRule, error) {
	var rule model.RecurrenceRule
	var rruleLine string

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "RRULE:"), strings.HasPrefix(line, "FREQ="):
			if rruleLine != "" {
				return model.RecurrenceRule{}, fmt.Errorf("%w: multiple RRULE lines", ErrInvalidRule)
			}
			rruleLine = line
		case strings.HasPrefix(line, "EXDATE"):
			dates, err := parseExdate(line)
			if err != nil {
				return model.RecurrenceRule{}, err
			}
			rule.Exceptions = append(rule.Exceptions, dates...)
		case strings.HasPrefix(line, "DTSTART"):
		default:
			return model.RecurrenceRule{}, fmt.Errorf("%w: unexpected line %q", ErrInvalidRule, line)
		}
	}
	if rruleLine == "" {
		return model.RecurrenceRule{}, fmt.Errorf("%w: missing RRULE", ErrInvalidRule)
	}

	opt, err := rrule.StrToROption(rruleLine)
	if err != nil {
		return model.RecurrenceRule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if len(opt.Byhour) > 0 || len(opt.Byminute) > 0 || len(opt.Bysecond) > 0 {
		return model.RecurrenceRule{}, fmt.Errorf("%w: sub-daily parts are not supported", ErrInvalidRule)
	}
	switch opt.Freq {
	case rrule.DAILY, rrule.WEEKLY, rrule.MONTHLY, rrule.YEARLY:
	default:
		return model.RecurrenceRule{}, fmt.Errorf("%w: unsupported frequency %s", ErrInvalidRule, opt.Freq)
	}

	rule.Frequency = model.Frequency(opt.Freq.String())
	rule.Interval = opt.Interval
	rule.Count = opt.Count
	rule.ByMonth = opt.Bymonth
	rule.ByMonthDay = opt.Bymonthday
	rule.ByWeekNo = opt.Byweekno
	rule.BySetPos = opt.Bysetpos
	for _, wd := range opt.Byweekday {
		rule.ByDay = append(rule.ByDay, wd.String())
	}
	if !opt.Until.IsZero() {
		until := model.DateOf(opt.Until.UTC())
		rule.Until = &until
	}
	sort.Slice(rule.Exceptions, func(i, j int) bool { return rule.Exceptions[i].Before(rule.Exceptions[j]) })
	return rule, nil
}

func parseExdate(line string) ([]model.Date, error) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return nil, fmt.Errorf("%w: bad EXDATE %q", ErrInvalidRule, line)
	}
	var out []model.Date
	for _, v := range strings.Split(line[idx+1:], ",") {
		v = strings.TrimSpace(v)
		if len(v) < 8 {
			return nil, fmt.Errorf("%w: bad EXDATE value %q", ErrInvalidRule, v)
		}
		t, err := time.Parse("20060102", v[:8])
		if err != nil {
			return nil, fmt.Errorf("%w: bad EXDATE value %q", ErrInvalidRule, v)
		}
		out = append(out, model.DateOf(t))
	}
	return out, nil
}
