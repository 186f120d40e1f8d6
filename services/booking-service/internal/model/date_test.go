package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Year != 2024 || d.Month != time.February || d.Day != 29 {
		t.Fatalf("unexpected date %+v", d)
	}
	if d.ISOWeekday() != 4 {
		t.Fatalf("expected Thursday (4), got %d", d.ISOWeekday())
	}
	if got := d.AddDays(1).String(); got != "2024-03-01" {
		t.Fatalf("expected 2024-03-01, got %s", got)
	}
	if _, err := ParseDate("2023-02-29"); err == nil {
		t.Fatal("expected error for non-leap Feb 29")
	}
	if _, err := ParseDate("29/02/2024"); err == nil {
		t.Fatal("expected error for wrong layout")
	}
}

func TestDateOrdering(t *testing.T) {
	a, _ := ParseDate("2025-01-31")
	b, _ := ParseDate("2025-02-01")
	if !a.Before(b) || !b.After(a) || a.Compare(a) != 0 {
		t.Fatalf("ordering broken for %s and %s", a, b)
	}
	sunday, _ := ParseDate("2025-06-01")
	if sunday.ISOWeekday() != 7 {
		t.Fatalf("expected Sunday as 7, got %d", sunday.ISOWeekday())
	}
}

func TestParseClock(t *testing.T) {
	cases := map[string]Clock{
		"00:00":    0,
		"09:30":    570,
		"24:00":    1440,
		"17:45:00": 1065,
	}
	for in, want := range cases {
		got, err := ParseClock(in)
		if err != nil || got != want {
			t.Fatalf("ParseClock(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	for _, bad := range []string{"9:30", "24:30", "12:60", "noon", "10:00:30"} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	if Clock(570).String() != "09:30" {
		t.Fatalf("unexpected clock string %s", Clock(570))
	}
}

func TestSlotJSON(t *testing.T) {
	emp := "emp-1"
	slot := Slot{
		Date:       Date{Year: 2025, Month: time.March, Day: 3},
		StartTime:  600,
		EndTime:    630,
		EmployeeID: &emp,
		Timezone:   "Europe/Berlin",
		Capacity:   1,
	}
	raw, err := json.Marshal(slot)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["date"] != "2025-03-03" || decoded["start_time"] != "10:00" || decoded["end_time"] != "10:30" {
		t.Fatalf("unexpected wire form: %s", raw)
	}
	if slot.DurationMinutes() != 30 {
		t.Fatalf("expected 30 minute slot, got %d", slot.DurationMinutes())
	}
	wrapped := Slot{StartTime: 1410, EndTime: 15}
	if wrapped.DurationMinutes() != 45 {
		t.Fatalf("expected wrapped duration 45, got %d", wrapped.DurationMinutes())
	}
}

func TestValidationError(t *testing.T) {
	v := &ValidationError{}
	if v.Err() != nil {
		t.Fatal("expected nil error without fields")
	}
	v.Add("quantity", "must be positive")
	v.Add("date", "required")
	err := v.Err()
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.FieldErrors) != 2 {
		t.Fatalf("expected validation error with 2 fields, got %v", err)
	}
	if err.Error() != "validation failed: date: required; quantity: must be positive" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestBlackoutCovers(t *testing.T) {
	start, _ := ParseDate("2025-12-24")
	end, _ := ParseDate("2025-12-26")
	p := BlackoutPeriod{StartDate: start, EndDate: end, IsActive: true}
	for _, s := range []string{"2025-12-24", "2025-12-25", "2025-12-26"} {
		d, _ := ParseDate(s)
		if !p.Covers(d) {
			t.Fatalf("expected %s covered", s)
		}
	}
	after, _ := ParseDate("2025-12-27")
	if p.Covers(after) {
		t.Fatal("expected 2025-12-27 outside range")
	}
}
