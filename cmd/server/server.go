// cmd/server/server.go
package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/codr1/courtengine/internal/api"
	"github.com/codr1/courtengine/internal/api/admin"
	"github.com/codr1/courtengine/internal/api/bookings"
	"github.com/codr1/courtengine/internal/config"
)

const shutdownTimeout = 30 * time.Second

func newServer(cfg *config.Config) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithIdentity,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
	)

	// Register routes
	registerRoutes(router)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Availability and booking routes
	mux.HandleFunc("GET /api/v1/availability", bookings.HandleCheckAvailability)
	mux.HandleFunc("POST /api/v1/bookings/evaluate", bookings.HandleEvaluate)
	mux.HandleFunc("POST /api/v1/bookings", bookings.HandleCreateBooking)
	mux.HandleFunc("DELETE /api/v1/bookings/{id}", bookings.HandleCancelBooking)
	mux.Handle("POST /api/v1/bookings/{id}/no-show",
		api.WithAdminAuth(http.HandlerFunc(bookings.HandleMarkNoShow)))

	// Facility administration routes
	mux.Handle("PUT /api/v1/admin/rules",
		api.WithAdminAuth(http.HandlerFunc(admin.HandleUpsertRuleConfig)))
	mux.Handle("POST /api/v1/admin/overlays",
		api.WithAdminAuth(http.HandlerFunc(admin.HandleAddOverlay)))
	mux.Handle("PATCH /api/v1/admin/courts/{id}/status",
		api.WithAdminAuth(http.HandlerFunc(admin.HandleSetCourtStatus)))
}
