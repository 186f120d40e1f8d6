package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/cache"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/segmentio/kafka-go"
)

const (
	BusyUpserted = "calendar.busy.upserted"
	BusyDeleted  = "calendar.busy.deleted"
)

var ErrMalformedEvent = errors.New("consumer: malformed busy event")

// BusyEvent is the payload published by calendar sync.
type BusyEvent struct {
	Type       string    `json:"event_type"`
	Source     string    `json:"source"`
	ExternalID string    `json:"external_id"`
	EmployeeID string    `json:"employee_id"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
}

type BusyStore interface {
	Upsert(ctx context.Context, externalID string, iv model.BusyInterval) error
	Delete(ctx context.Context, source, externalID string) (model.BusyInterval, bool, error)
}

// BusyHandler applies busy-time events and drops cached availability for
// the affected employee.
type BusyHandler struct {
	store  BusyStore
	cache  *cache.AvailabilityCache
	logger *slog.Logger
}

func NewBusyHandler(store BusyStore, c *cache.AvailabilityCache, logger *slog.Logger) *BusyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BusyHandler{store: store, cache: c, logger: logger}
}

func (h *BusyHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var evt BusyEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if evt.Source == "" || evt.ExternalID == "" {
		return fmt.Errorf("%w: source and external_id are required", ErrMalformedEvent)
	}

	switch evt.Type {
	case BusyUpserted:
		if evt.EmployeeID == "" || !evt.StartsAt.Before(evt.EndsAt) {
			return fmt.Errorf("%w: employee_id and a positive interval are required", ErrMalformedEvent)
		}
		err := h.store.Upsert(ctx, evt.ExternalID, model.BusyInterval{
			EmployeeID: evt.EmployeeID,
			Start:      evt.StartsAt,
			End:        evt.EndsAt,
			Source:     evt.Source,
		})
		if err != nil {
			return fmt.Errorf("upsert busy interval: %w", err)
		}
		h.invalidate(ctx, evt.EmployeeID)
	case BusyDeleted:
		old, ok, err := h.store.Delete(ctx, evt.Source, evt.ExternalID)
		if err != nil {
			return fmt.Errorf("delete busy interval: %w", err)
		}
		if ok {
			h.invalidate(ctx, old.EmployeeID)
		}
	default:
		h.logger.Warn("ignoring unknown busy event", "event_type", evt.Type)
	}
	return nil
}

func (h *BusyHandler) invalidate(ctx context.Context, employeeID string) {
	n := h.cache.InvalidateEmployee(ctx, employeeID)
	h.logger.Debug("availability cache invalidated", "employee_id", employeeID, "entries", n)
}
