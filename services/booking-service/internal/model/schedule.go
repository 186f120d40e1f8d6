package model

import "time"

// TimeWindow is a half-open span [Start, End) of wall-clock minutes on an
// implicit date.
type TimeWindow struct {
	Start Clock
	End   Clock
}

func (w TimeWindow) Valid() bool { return w.Start >= 0 && w.Start < w.End && w.End <= MinutesPerDay }

func (w TimeWindow) Minutes() int { return int(w.End - w.Start) }

// Filter narrows reader queries. A nil field matches everything.
type Filter struct {
	EmployeeID *string
	LocationID *string
	ServiceID  *string
}

// ScheduleRule is a recurring weekly working window for one employee.
type ScheduleRule struct {
	ID           string
	DaysOfWeek   []int // 1=Monday .. 7=Sunday
	StartTime    Clock
	EndTime      Clock
	EmployeeID   string
	EmployeeName string
	ServiceID    string // empty: any service
	LocationID   string // empty: any location
	Timezone     string // empty: service default
}

func (r ScheduleRule) AppliesOn(isoWeekday int) bool {
	for _, d := range r.DaysOfWeek {
		if d == isoWeekday {
			return true
		}
	}
	return false
}

func (r ScheduleRule) Window() TimeWindow { return TimeWindow{Start: r.StartTime, End: r.EndTime} }

type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

// RecurrenceRule is the RFC 5545 subset the engine expands. ByDay entries are
// two-letter weekday codes with an optional signed ordinal ("MO", "1MO",
// "-1FR").
type RecurrenceRule struct {
	Frequency  Frequency
	Interval   int
	ByDay      []string
	ByMonth    []int
	ByMonthDay []int
	ByWeekNo   []int
	BySetPos   []int
	Count      int
	Until      *Date
	Exceptions []Date
}

// Event is a one-off availability window, or a recurring one when Rule is set.
// Date is the anchor of the series.
type Event struct {
	ID           string
	Date         Date
	StartTime    Clock
	EndTime      Clock
	EmployeeID   string
	EmployeeName string
	ServiceID    string
	LocationID   string
	Timezone     string
	Rule         *RecurrenceRule
}

func (e Event) Window() TimeWindow { return TimeWindow{Start: e.StartTime, End: e.EndTime} }

// Service is the catalog entry that drives slot length and buffers.
type Service struct {
	ID                  string
	Name                string
	DurationMinutes     int
	BufferBeforeMinutes int
	BufferAfterMinutes  int
}

// BusyInterval is an absolute span reported busy by an external calendar.
type BusyInterval struct {
	EmployeeID string
	Start      time.Time
	End        time.Time
	Source     string
}

type BlackoutPeriod struct {
	ID         string
	StartDate  Date
	EndDate    Date
	EmployeeID *string
	LocationID *string
	IsActive   bool
	Reason     string
}

// Covers reports whether d falls inside the inclusive date range.
func (p BlackoutPeriod) Covers(d Date) bool {
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}
