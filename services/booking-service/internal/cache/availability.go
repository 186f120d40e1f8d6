package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

const all = "all"

// Query identifies one cached slot list. Empty fields mean "all".
type Query struct {
	Date       model.Date
	EmployeeID string
	ServiceID  string
	LocationID string
}

func (q Query) Key() string {
	return q.Date.String() + ":" + orAll(q.EmployeeID) + ":" + orAll(q.ServiceID) + ":" + orAll(q.LocationID)
}

func (q Query) Tags() []string {
	return []string{DateTag(q.Date), EmployeeTag(q.EmployeeID), ServiceTag(q.ServiceID)}
}

func DateTag(d model.Date) string  { return "date:" + d.String() }
func EmployeeTag(id string) string { return "employee:" + orAll(id) }
func ServiceTag(id string) string  { return "service:" + orAll(id) }

// AvailabilityCache is advisory. Store failures are logged and reported as a
// miss so callers always fall back to a full computation.
type AvailabilityCache struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
	gen    atomic.Uint64
}

func NewAvailabilityCache(store Store, ttl time.Duration, logger *slog.Logger) *AvailabilityCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &AvailabilityCache{store: store, ttl: ttl, logger: logger}
}

func (c *AvailabilityCache) Get(ctx context.Context, q Query) ([]model.Slot, bool) {
	if c == nil || c.store == nil {
		return nil, false
	}
	raw, ok, err := c.store.Get(ctx, q.Key())
	if err != nil {
		c.logger.Warn("availability cache read failed", "err", err, "key", q.Key())
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var slots []model.Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		c.logger.Warn("availability cache entry corrupt", "err", err, "key", q.Key())
		return nil, false
	}
	return slots, true
}

func (c *AvailabilityCache) Set(ctx context.Context, q Query, slots []model.Slot) {
	if c == nil || c.store == nil {
		return
	}
	if slots == nil {
		slots = []model.Slot{}
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		c.logger.Warn("availability cache encode failed", "err", err)
		return
	}
	if err := c.store.Set(ctx, q.Key(), raw, c.ttl, q.Tags()); err != nil {
		c.logger.Warn("availability cache write failed", "err", err, "key", q.Key())
	}
}

// Generation changes on every invalidation made through c. Capture it before
// computing and pass it to SetFresh.
func (c *AvailabilityCache) Generation() uint64 {
	if c == nil {
		return 0
	}
	return c.gen.Load()
}

// SetFresh stores slots unless an invalidation ran since gen was read, in
// which case the slots may predate it and are dropped. Invalidations made by
// other processes are not seen here and are bounded by the TTL.
func (c *AvailabilityCache) SetFresh(ctx context.Context, q Query, slots []model.Slot, gen uint64) bool {
	if c == nil || c.gen.Load() != gen {
		return false
	}
	c.Set(ctx, q, slots)
	return true
}

// Invalidate drops every entry carrying tag.
func (c *AvailabilityCache) Invalidate(ctx context.Context, tag string) int {
	if c == nil || c.store == nil {
		return 0
	}
	c.gen.Add(1)
	n, err := c.store.InvalidateTag(ctx, tag)
	if err != nil {
		c.logger.Error("availability cache invalidation failed", "err", err, "tag", tag)
		return 0
	}
	return n
}

// InvalidateEmployee also clears the aggregate "all employees" entries, which
// include that employee's windows.
func (c *AvailabilityCache) InvalidateEmployee(ctx context.Context, employeeID string) int {
	return c.Invalidate(ctx, EmployeeTag(employeeID)) + c.Invalidate(ctx, EmployeeTag(""))
}

func (c *AvailabilityCache) InvalidateService(ctx context.Context, serviceID string) int {
	return c.Invalidate(ctx, ServiceTag(serviceID)) + c.Invalidate(ctx, ServiceTag(""))
}

// InvalidateBooking clears what a committed or cancelled booking can change.
func (c *AvailabilityCache) InvalidateBooking(ctx context.Context, date model.Date, employeeID *string, serviceID string) int {
	n := c.Invalidate(ctx, DateTag(date))
	if employeeID != nil {
		n += c.Invalidate(ctx, EmployeeTag(*employeeID))
	}
	if serviceID != "" {
		n += c.Invalidate(ctx, ServiceTag(serviceID))
	}
	return n
}

func orAll(s string) string {
	if s == "" {
		return all
	}
	return s
}
