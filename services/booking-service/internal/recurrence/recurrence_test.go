package recurrence

import (
	"errors"
	"testing"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

func d(t *testing.T, s string) model.Date {
	t.Helper()
	v, err := model.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return v
}

func dates(occ []Occurrence) []string {
	out := make([]string, 0, len(occ))
	for _, o := range occ {
		out = append(out, o.Date.String())
	}
	return out
}

func assertDates(t *testing.T, occ []Occurrence, want ...string) {
	t.Helper()
	got := dates(occ)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestMonthlyByMonthDay(t *testing.T) {
	rule := model.RecurrenceRule{Frequency: model.Monthly, ByMonthDay: []int{15}}
	occ, err := Expand(rule, d(t, "2025-01-01"), d(t, "2025-01-01"), d(t, "2025-06-30"))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	assertDates(t, occ, "2025-01-15", "2025-02-15", "2025-03-15", "2025-04-15", "2025-05-15", "2025-06-15")
}

func TestOrdinalWeekdays(t *testing.T) {
	first := model.RecurrenceRule{Frequency: model.Monthly, ByDay: []string{"1MO"}}
	occ, err := Expand(first, d(t, "2025-01-01"), d(t, "2025-01-01"), d(t, "2025-03-31"))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	assertDates(t, occ, "2025-01-06", "2025-02-03", "2025-03-03")

	last := model.RecurrenceRule{Frequency: model.Monthly, ByDay: []string{"-1FR"}}
	occ, err = Expand(last, d(t, "2025-01-01"), d(t, "2025-01-01"), d(t, "2025-03-31"))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	assertDates(t, occ, "2025-01-31", "2025-02-28", "2025-03-28")
}

func TestBySetPosLastWeekday(t *testing.T) {
	rule := model.RecurrenceRule{
		Frequency: model.Monthly,
		ByDay:     []string{"MO", "TU", "WE", "TH", "FR"},
		BySetPos:  []int{-1},
	}
	occ, err := Expand(rule, d(t, "2025-01-01"), d(t, "2025-01-01"), d(t, "2025-03-31"))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	assertDates(t, occ, "2025-01-31", "2025-02-28", "2025-03-31")
}

func TestIntervalWeekly(t *testing.T) {
	rule := model.RecurrenceRule{Frequency: model.Weekly, Interval: 2, ByDay: []string{"TU"}}
	occ, err := Expand(rule, d(t, "2025-01-07"), d(t, "2025-01-01"), d(t, "2025-02-28"))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	assertDates(t, occ, "2025-01-07", "2025-01-21", "2025-02-04", "2025-02-18")
}

func TestExceptionsRemoved(t *testing.T) {
	rule := model.RecurrenceRule{
		Frequency:  model.Weekly,
		ByDay:      []string{"MO", "WE"},
		Exceptions: []model.Date{d(t, "2025-01-08")},
	}
	occ, err := Expand(rule, d(t, "2025-01-06"), d(t, "2025-01-01"), d(t, "2025-01-19"))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	assertDates(t, occ, "2025-01-06", "2025-01-13", "2025-01-15")
	if occ[1].Sequence != 2 {
		t.Fatalf("expected excluded date to keep its sequence slot, got %d", occ[1].Sequence)
	}
}

func TestCountAndUntilWhicheverFirst(t *testing.T) {
	until := d(t, "2025-01-03")
	rule := model.RecurrenceRule{Frequency: model.Daily, Count: 5, Until: &until}
	occ, err := Expand(rule, d(t, "2025-01-01"), d(t, "2025-01-01"), d(t, "2025-12-31"))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	assertDates(t, occ, "2025-01-01", "2025-01-02", "2025-01-03")

	later := d(t, "2025-01-10")
	rule = model.RecurrenceRule{Frequency: model.Daily, Count: 2, Until: &later}
	occ, err = Expand(rule, d(t, "2025-01-01"), d(t, "2025-01-01"), d(t, "2025-12-31"))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	assertDates(t, occ, "2025-01-01", "2025-01-02")
}

func TestCountIsCountedFromAnchor(t *testing.T) {
	rule := model.RecurrenceRule{Frequency: model.Daily, Count: 3}
	occ, err := Expand(rule, d(t, "2025-01-01"), d(t, "2025-01-03"), d(t, "2025-01-31"))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	assertDates(t, occ, "2025-01-03")
}

func TestLeapDayAnchor(t *testing.T) {
	rule := model.RecurrenceRule{Frequency: model.Yearly}
	occ, err := Expand(rule, d(t, "2024-02-29"), d(t, "2024-01-01"), d(t, "2031-12-31"))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	assertDates(t, occ, "2024-02-29", "2028-02-29")
}

func TestNeverBeforeAnchorOrAfterRange(t *testing.T) {
	rule := model.RecurrenceRule{Frequency: model.Daily}
	anchor := d(t, "2025-03-10")
	end := d(t, "2025-03-12")
	occ, err := Expand(rule, anchor, d(t, "2025-03-01"), end)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	for _, o := range occ {
		if o.Date.Before(anchor) || o.Date.After(end) {
			t.Fatalf("occurrence %s outside [%s, %s]", o.Date, anchor, end)
		}
	}
	assertDates(t, occ, "2025-03-10", "2025-03-11", "2025-03-12")
}

func TestExpandRequiresRangeEnd(t *testing.T) {
	_, err := Expand(model.RecurrenceRule{Frequency: model.Daily}, d(t, "2025-01-01"), d(t, "2025-01-01"), model.Date{})
	if !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
}

func TestInvalidRules(t *testing.T) {
	bad := []model.RecurrenceRule{
		{Frequency: "HOURLY"},
		{Frequency: model.Monthly, ByDay: []string{"XX"}},
		{Frequency: model.Monthly, ByDay: []string{"0MO"}},
		{Frequency: model.Monthly, ByMonthDay: []int{32}},
		{Frequency: model.Yearly, ByWeekNo: []int{60}},
	}
	for _, rule := range bad {
		if err := Validate(rule); !errors.Is(err, ErrInvalidRule) {
			t.Fatalf("expected ErrInvalidRule for %+v, got %v", rule, err)
		}
	}
}

func TestOccursOn(t *testing.T) {
	rule := model.RecurrenceRule{Frequency: model.Weekly, ByDay: []string{"FR"}}
	ok, err := OccursOn(rule, d(t, "2025-01-03"), d(t, "2025-01-17"))
	if err != nil || !ok {
		t.Fatalf("expected Friday occurrence, got %v %v", ok, err)
	}
	ok, err = OccursOn(rule, d(t, "2025-01-03"), d(t, "2025-01-16"))
	if err != nil || ok {
		t.Fatalf("expected no Thursday occurrence, got %v %v", ok, err)
	}
}

func TestExpandEvent(t *testing.T) {
	oneOff := model.Event{ID: "ev-1", Date: d(t, "2025-05-05")}
	occ, err := ExpandEvent(oneOff, d(t, "2025-05-01"), d(t, "2025-05-31"))
	if err != nil || len(occ) != 1 || occ[0].EventID != "ev-1" {
		t.Fatalf("expected single occurrence for one-off event, got %+v %v", occ, err)
	}

	recurring := model.Event{ID: "ev-2", Date: d(t, "2025-05-01"), Rule: &model.RecurrenceRule{Frequency: model.Weekly, ByDay: []string{"TH"}}}
	occ, err = ExpandEvent(recurring, d(t, "2025-05-01"), d(t, "2025-05-31"))
	if err != nil {
		t.Fatalf("ExpandEvent: %v", err)
	}
	assertDates(t, occ, "2025-05-01", "2025-05-08", "2025-05-15", "2025-05-22", "2025-05-29")
	for _, o := range occ {
		if o.EventID != "ev-2" {
			t.Fatalf("expected event id on every occurrence, got %+v", o)
		}
	}
}

func TestParse(t *testing.T) {
	rule, err := Parse("RRULE:FREQ=MONTHLY;BYMONTHDAY=15\nEXDATE:20250315")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rule.Frequency != model.Monthly || len(rule.ByMonthDay) != 1 || rule.ByMonthDay[0] != 15 {
		t.Fatalf("unexpected rule %+v", rule)
	}
	occ, err := Expand(rule, d(t, "2025-01-01"), d(t, "2025-01-01"), d(t, "2025-06-30"))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(occ) != 5 {
		t.Fatalf("expected 5 occurrences with one exception, got %v", dates(occ))
	}

	rule, err = Parse("FREQ=WEEKLY;BYDAY=MO,-1FR;UNTIL=20250120T000000Z;COUNT=10")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rule.Until == nil || rule.Until.String() != "2025-01-20" || rule.Count != 10 || len(rule.ByDay) != 2 {
		t.Fatalf("unexpected rule %+v", rule)
	}
	if rule.ByDay[1] != "-1FR" {
		t.Fatalf("expected ordinal weekday preserved, got %q", rule.ByDay[1])
	}

	for _, bad := range []string{"", "FREQ=HOURLY", "BYDAY=MO", "RRULE:FREQ=DAILY;BYHOUR=9", "RRULE:FREQ=DAILY\nRRULE:FREQ=WEEKLY"} {
		if _, err := Parse(bad); !errors.Is(err, ErrInvalidRule) {
			t.Fatalf("expected ErrInvalidRule for %q, got %v", bad, err)
		}
	}
}
