// internal/api/admin/handlers.go
//
// Facility administration: rule configuration, overlays, and court status.
// Every write invalidates the facility's cached rule set so the next
// evaluation sees the change.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtengine/internal/api/apiutil"
	"github.com/codr1/courtengine/internal/booking"
	"github.com/codr1/courtengine/internal/rules"
	"github.com/codr1/courtengine/internal/store"
)

var (
	adminStore   *store.Store
	ruleRegistry *rules.Registry
	initOnce     sync.Once
)

const adminQueryTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(s *store.Store, r *rules.Registry) {
	if s == nil || r == nil {
		return
	}
	initOnce.Do(func() {
		adminStore = s
		ruleRegistry = r
	})
}

type ruleConfigRequest struct {
	FacilityID int64           `json:"facility_id"`
	RuleCode   string          `json:"rule_code"`
	Enabled    bool            `json:"enabled"`
	Config     json.RawMessage `json:"config"`
}

// PUT /api/v1/admin/rules
func HandleUpsertRuleConfig(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if adminStore == nil {
		logger.Error().Msg("Admin store not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var body ruleConfigRequest
	if err := apiutil.DecodeJSON(r, &body); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.FacilityID <= 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "facility_id is required")
		return
	}
	if len(body.Config) == 0 {
		body.Config = json.RawMessage("{}")
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	err := adminStore.UpsertRuleConfig(ctx, rules.StoredConfig{
		FacilityID: body.FacilityID,
		RuleCode:   rules.Code(body.RuleCode),
		Enabled:    body.Enabled,
		Config:     body.Config,
	})
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	ruleRegistry.Invalidate(body.FacilityID)

	logger.Info().
		Int64("facility_id", body.FacilityID).
		Str("rule_code", body.RuleCode).
		Bool("enabled", body.Enabled).
		Msg("Rule configuration updated")
	w.WriteHeader(http.StatusNoContent)
}

type overlayRequest struct {
	FacilityID int64         `json:"facility_id"`
	Overlay    rules.Overlay `json:"overlay"`
}

// POST /api/v1/admin/overlays
func HandleAddOverlay(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if adminStore == nil {
		logger.Error().Msg("Admin store not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var body overlayRequest
	if err := apiutil.DecodeJSON(r, &body); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.FacilityID <= 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "facility_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	if err := adminStore.AddOverlay(ctx, body.FacilityID, body.Overlay); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	ruleRegistry.Invalidate(body.FacilityID)

	logger.Info().
		Int64("facility_id", body.FacilityID).
		Str("kind", string(body.Overlay.Kind)).
		Msg("Overlay added")
	w.WriteHeader(http.StatusCreated)
}

type courtStatusRequest struct {
	Status string `json:"status"`
}

// PATCH /api/v1/admin/courts/{id}/status
func HandleSetCourtStatus(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if adminStore == nil {
		logger.Error().Msg("Admin store not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	courtID, err := apiutil.ParsePositiveInt64Field(r.PathValue("id"), "court id")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body courtStatusRequest
	if err := apiutil.DecodeJSON(r, &body); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := booking.CourtStatus(body.Status)
	switch status {
	case booking.CourtAvailable, booking.CourtMaintenance, booking.CourtClosed:
	default:
		apiutil.WriteError(w, http.StatusBadRequest, "status must be available, maintenance, or closed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	if err := adminStore.SetCourtStatus(ctx, courtID, status); err != nil {
		apiutil.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	logger.Info().
		Int64("court_id", courtID).
		Str("status", body.Status).
		Msg("Court status updated")
	w.WriteHeader(http.StatusNoContent)
}
