package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/cache"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// AdminHandler lets configuration owners drop cached availability after
// editing schedules, services or blackouts.
type AdminHandler struct {
	cache  *cache.AvailabilityCache
	logger *slog.Logger
}

func NewAdminHandler(c *cache.AvailabilityCache, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{cache: c, logger: logger}
}

type invalidateRequest struct {
	Date       string `json:"date"`
	EmployeeID string `json:"employee_id"`
	ServiceID  string `json:"service_id"`
}

type invalidateResponse struct {
	Invalidated int `json:"invalidated"`
}

// InvalidateCache serves POST /api/v1/admin/cache/invalidate. Each field
// given selects a tag; at least one is required.
func (h *AdminHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	req.Date = strings.TrimSpace(req.Date)
	req.EmployeeID = strings.TrimSpace(req.EmployeeID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if req.Date == "" && req.EmployeeID == "" && req.ServiceID == "" {
		badRequest(w, "one of date, employee_id or service_id required")
		return
	}

	ctx := r.Context()
	n := 0
	if req.Date != "" {
		d, err := model.ParseDate(req.Date)
		if err != nil {
			badRequest(w, "date must be YYYY-MM-DD")
			return
		}
		n += h.cache.Invalidate(ctx, cache.DateTag(d))
	}
	if req.EmployeeID != "" {
		n += h.cache.InvalidateEmployee(ctx, req.EmployeeID)
	}
	if req.ServiceID != "" {
		n += h.cache.InvalidateService(ctx, req.ServiceID)
	}

	subject := ""
	if claims := httpx.ClaimsFromContext(ctx); claims != nil {
		subject = claims.Sub
	}
	h.logger.Info("availability cache invalidated", "entries", n, "by", subject,
		"date", req.Date, "employee_id", req.EmployeeID, "service_id", req.ServiceID)
	httpx.WriteJSON(w, http.StatusOK, invalidateResponse{Invalidated: n})
}
