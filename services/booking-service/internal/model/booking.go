package model

import "time"

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
)

// Booking dates and times are wall-clock values in Timezone, which is the
// native zone of the assigned employee.
type Booking struct {
	ID            string        `json:"id"`
	Date          Date          `json:"date"`
	StartTime     Clock         `json:"start_time"`
	EndTime       Clock         `json:"end_time"`
	Timezone      string        `json:"timezone"`
	EmployeeID    *string       `json:"employee_id"`
	ServiceID     string        `json:"service_id"`
	LocationID    *string       `json:"location_id,omitempty"`
	Quantity      int           `json:"quantity"`
	Status        BookingStatus `json:"status"`
	CustomerName  string        `json:"customer_name"`
	CustomerEmail string        `json:"customer_email,omitempty"`
	CustomerPhone string        `json:"customer_phone,omitempty"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty"`
	CancelReason  string        `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

func (b Booking) Active() bool { return b.Status != StatusCancelled }

// SoftLock is a short checkout hold on one slot.
type SoftLock struct {
	Token      string    `json:"token"`
	ServiceID  string    `json:"service_id"`
	EmployeeID *string   `json:"employee_id,omitempty"`
	LocationID *string   `json:"location_id,omitempty"`
	Date       Date      `json:"date"`
	StartTime  Clock     `json:"start_time"`
	EndTime    Clock     `json:"end_time"`
	ExpiresAt  time.Time `json:"expires_at"`
}
