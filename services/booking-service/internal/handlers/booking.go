package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/softlock"
)

type SlotQuerier interface {
	GetAvailableSlots(ctx context.Context, req availability.Request) ([]model.Slot, error)
}

type Booker interface {
	CreateBooking(ctx context.Context, req booking.CreateRequest) (model.Booking, error)
	CancelBooking(ctx context.Context, id, reason string) (model.Booking, error)
	GetBooking(ctx context.Context, id string) (model.Booking, error)
}

type Holder interface {
	Acquire(ctx context.Context, req softlock.AcquireRequest) (model.SoftLock, error)
	Release(ctx context.Context, token string) (bool, error)
}

type BookingHandler struct {
	slots    SlotQuerier
	bookings Booker
	holds    Holder
	logger   *slog.Logger
}

func NewBookingHandler(slots SlotQuerier, bookings Booker, holds Holder, logger *slog.Logger) *BookingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingHandler{slots: slots, bookings: bookings, holds: holds, logger: logger}
}

type slotsResponse struct {
	Date  model.Date   `json:"date"`
	Slots []model.Slot `json:"slots"`
}

// Slots serves GET /api/v1/public/slots.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	date, err := model.ParseDate(strings.TrimSpace(q.Get("date")))
	if err != nil {
		badRequest(w, "date must be YYYY-MM-DD")
		return
	}
	quantity := 1
	if raw := strings.TrimSpace(q.Get("quantity")); raw != "" {
		quantity, err = strconv.Atoi(raw)
		if err != nil {
			badRequest(w, "quantity must be an integer")
			return
		}
	}

	slots, err := h.slots.GetAvailableSlots(r.Context(), availability.Request{
		Date:       date,
		EmployeeID: optionalParam(q.Get("employee_id")),
		LocationID: optionalParam(q.Get("location_id")),
		ServiceID:  optionalParam(q.Get("service_id")),
		Quantity:   quantity,
		Timezone:   strings.TrimSpace(q.Get("timezone")),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if slots == nil {
		slots = []model.Slot{}
	}
	httpx.WriteJSON(w, http.StatusOK, slotsResponse{Date: date, Slots: slots})
}

type createBookingRequest struct {
	Date          model.Date  `json:"date"`
	StartTime     model.Clock `json:"start_time"`
	ServiceID     string      `json:"service_id"`
	EmployeeID    string      `json:"employee_id"`
	LocationID    string      `json:"location_id"`
	Quantity      int         `json:"quantity"`
	Timezone      string      `json:"timezone"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	CustomerPhone string      `json:"customer_phone"`
	HoldToken     string      `json:"hold_token"`
}

// Create serves POST /api/v1/public/book.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	b, err := h.bookings.CreateBooking(r.Context(), booking.CreateRequest{
		Date:          req.Date,
		StartTime:     req.StartTime,
		ServiceID:     strings.TrimSpace(req.ServiceID),
		EmployeeID:    optionalParam(req.EmployeeID),
		LocationID:    optionalParam(req.LocationID),
		Quantity:      req.Quantity,
		Timezone:      strings.TrimSpace(req.Timezone),
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		SoftLockToken: strings.TrimSpace(req.HoldToken),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, b)
}

// Get serves GET /api/v1/appointments/get?id=.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		badRequest(w, "id required")
		return
	}
	b, err := h.bookings.GetBooking(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

type cancelBookingRequest struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

// Cancel serves POST /api/v1/appointments/cancel.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		badRequest(w, "booking_id required")
		return
	}
	b, err := h.bookings.CancelBooking(r.Context(), req.BookingID, strings.TrimSpace(req.Reason))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

type holdRequest struct {
	Date       model.Date  `json:"date"`
	StartTime  model.Clock `json:"start_time"`
	EndTime    model.Clock `json:"end_time"`
	ServiceID  string      `json:"service_id"`
	EmployeeID string      `json:"employee_id"`
	LocationID string      `json:"location_id"`
}

// Holds serves POST (acquire) and DELETE (release) on /api/v1/public/holds.
func (h *BookingHandler) Holds(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.acquireHold(w, r)
	case http.MethodDelete:
		h.releaseHold(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *BookingHandler) acquireHold(w http.ResponseWriter, r *http.Request) {
	var req holdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	lock, err := h.holds.Acquire(r.Context(), softlock.AcquireRequest{
		ServiceID:  strings.TrimSpace(req.ServiceID),
		EmployeeID: optionalParam(req.EmployeeID),
		LocationID: optionalParam(req.LocationID),
		Date:       req.Date,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, lock)
}

func (h *BookingHandler) releaseHold(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		badRequest(w, "token required")
		return
	}
	released, err := h.holds.Release(r.Context(), token)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"released": released})
}

func optionalParam(raw string) *string {
	return model.OptionalString(strings.TrimSpace(raw))
}
