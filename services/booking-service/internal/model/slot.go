package model

const AnyProviderName = "Any provider"

// Slot is one bookable interval. EmployeeID is nil for "any provider" slots.
// EndTime may be numerically smaller than StartTime when a shifted slot
// crosses midnight in the display zone.
type Slot struct {
	Date         Date    `json:"date"`
	StartTime    Clock   `json:"start_time"`
	EndTime      Clock   `json:"end_time"`
	EmployeeID   *string `json:"employee_id"`
	EmployeeName string  `json:"employee_name,omitempty"`
	ServiceID    string  `json:"service_id,omitempty"`
	LocationID   string  `json:"location_id,omitempty"`
	Timezone     string  `json:"timezone"`
	Capacity     int     `json:"capacity"`
}

// DurationMinutes handles slots that wrap past midnight.
func (s Slot) DurationMinutes() int {
	d := int(s.EndTime - s.StartTime)
	if d <= 0 {
		d += int(MinutesPerDay)
	}
	return d
}
