package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
)

// Register mounts the public, appointment and admin routes on mux. Admin
// routes require an HS256 bearer token with the admin role.
func Register(mux *http.ServeMux, bookings *BookingHandler, admin *AdminHandler, adminSecret string) {
	mux.HandleFunc("/api/v1/public/slots", bookings.Slots)
	mux.HandleFunc("/api/v1/public/holds", bookings.Holds)
	mux.HandleFunc("/api/v1/public/book", bookings.Create)
	mux.HandleFunc("/api/v1/appointments/get", bookings.Get)
	mux.HandleFunc("/api/v1/appointments/cancel", bookings.Cancel)
	if admin != nil {
		requireAdmin := httpx.RequireBearer(adminSecret, "admin")
		mux.Handle("/api/v1/admin/cache/invalidate", requireAdmin(http.HandlerFunc(admin.InvalidateCache)))
	}
}
