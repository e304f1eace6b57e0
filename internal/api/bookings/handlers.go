// internal/api/bookings/handlers.go
package bookings

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtengine/internal/api/apiutil"
	"github.com/codr1/courtengine/internal/api/authz"
	"github.com/codr1/courtengine/internal/booking"
	"github.com/codr1/courtengine/internal/clock"
	"github.com/codr1/courtengine/internal/engine"
	"github.com/codr1/courtengine/internal/ratelimit"
	"github.com/codr1/courtengine/internal/rules"
	"github.com/codr1/courtengine/internal/slot"
	"github.com/codr1/courtengine/internal/store"
)

var (
	bookingEngine *engine.Engine
	bookingStore  *store.Store
	ruleRegistry  *rules.Registry
	writeLimiter  *ratelimit.Limiter
	initOnce      sync.Once
)

const (
	bookingQueryTimeout = 5 * time.Second

	// A lost confirmation race is retryable: the handler re-runs the full
	// availability and rule pass against fresh data before giving up.
	confirmAttempts = 3
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(e *engine.Engine, s *store.Store, r *rules.Registry) {
	if e == nil || s == nil || r == nil {
		return
	}
	initOnce.Do(func() {
		bookingEngine = e
		bookingStore = s
		ruleRegistry = r
		// In-memory guard on the write path. Facility rate rules (ACC-011)
		// still apply inside the pipeline; this one protects the database
		// from hot loops regardless of facility configuration.
		writeLimiter = ratelimit.New(ratelimit.DefaultConfig())
	})
}

// Shutdown releases handler resources, stopping the write limiter's
// cleanup goroutine. Called from server teardown.
func Shutdown() {
	if writeLimiter != nil {
		writeLimiter.Close()
	}
}

type bookingRequest struct {
	FacilityID      int64  `json:"facility_id"`
	CourtID         int64  `json:"court_id"`
	Date            string `json:"date"`
	StartHour       int    `json:"start_hour"`
	StartMinute     int    `json:"start_minute"`
	DurationMinutes int    `json:"duration_minutes"`
}

type bookingResponse struct {
	BookingID  string             `json:"booking_id,omitempty"`
	Allowed    bool               `json:"allowed"`
	Violations []engine.Violation `json:"violations,omitempty"`
	Conflict   *conflictResponse  `json:"conflict,omitempty"`
}

type conflictResponse struct {
	Reason            string `json:"reason"`
	BlockingBookingID string `json:"blocking_booking_id,omitempty"`
}

// GET /api/v1/availability
func HandleCheckAvailability(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if bookingEngine == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	facilityID, err := apiutil.FacilityIDFromQuery(r)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	courtID, err := apiutil.ParsePositiveInt64Field(q.Get("court_id"), "court_id")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := apiutil.ParseDateField(q.Get("date"), "date")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	startHour, err := apiutil.ParseNonNegativeIntField(q.Get("start_hour"), "start_hour")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	startMinute := 0
	if raw := strings.TrimSpace(q.Get("start_minute")); raw != "" {
		if startMinute, err = apiutil.ParseNonNegativeIntField(raw, "start_minute"); err != nil {
			apiutil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	duration, err := apiutil.ParseNonNegativeIntField(q.Get("duration_minutes"), "duration_minutes")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	result, err := bookingEngine.CheckAvailability(ctx, courtID, facilityID, date, startHour, startMinute, duration)
	if err != nil {
		writeEngineError(w, r, err, "Failed to check availability")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, result)
}

// POST /api/v1/bookings/evaluate
//
// Dry run: evaluates the request through the full rule pipeline without
// creating anything. The UI uses this to show every violation at once.
func HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	handleBooking(w, r, false)
}

// POST /api/v1/bookings
func HandleCreateBooking(w http.ResponseWriter, r *http.Request) {
	handleBooking(w, r, true)
}

func handleBooking(w http.ResponseWriter, r *http.Request, confirm bool) {
	logger := log.Ctx(r.Context())
	if bookingEngine == nil || bookingStore == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	user, err := authz.RequireUser(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var body bookingRequest
	if err := apiutil.DecodeJSON(r, &body); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := apiutil.ParseDateField(body.Date, "date")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.FacilityID <= 0 || body.CourtID <= 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "facility_id and court_id are required")
		return
	}

	if confirm {
		if result := writeLimiter.Check(user.ID, body.FacilityID); !result.Allowed {
			ratelimit.LogRateLimitExceeded(user.ID, body.FacilityID, result.Reason)
			w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
			apiutil.WriteError(w, http.StatusTooManyRequests, "Too many booking attempts")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	for attempt := 1; ; attempt++ {
		resp, status, err := evaluateOnce(ctx, user, body, date, confirm)
		if err != nil {
			if errors.Is(err, store.ErrSlotTaken) && attempt < confirmAttempts {
				logger.Debug().Int("attempt", attempt).Msg("Lost confirmation race, re-evaluating")
				continue
			}
			if errors.Is(err, store.ErrSlotTaken) {
				_ = apiutil.WriteJSON(w, http.StatusConflict, bookingResponse{
					Allowed:  false,
					Conflict: &conflictResponse{Reason: conflictReasonSlot},
				})
				return
			}
			writeEngineError(w, r, err, "Failed to process booking")
			return
		}
		_ = apiutil.WriteJSON(w, status, resp)
		return
	}
}

// evaluateOnce runs one availability + rule pass and, when confirm is set
// and the verdict is Allow, attempts the atomic confirmation. A lost race
// surfaces as store.ErrSlotTaken.
func evaluateOnce(
	ctx context.Context,
	user *authz.AuthUser,
	body bookingRequest,
	date time.Time,
	confirm bool,
) (bookingResponse, int, error) {
	avail, err := bookingEngine.CheckAvailability(ctx,
		body.CourtID, body.FacilityID, date, body.StartHour, body.StartMinute, body.DurationMinutes)
	if err != nil {
		return bookingResponse{}, 0, err
	}
	if !avail.Free {
		return bookingResponse{
			Allowed: false,
			Conflict: &conflictResponse{
				Reason:            string(avail.Reason),
				BlockingBookingID: avail.BlockingBookingID,
			},
		}, http.StatusConflict, nil
	}

	householdID, err := bookingStore.HouseholdOf(ctx, body.FacilityID, user.ID)
	if err != nil {
		return bookingResponse{}, 0, err
	}

	req := booking.Request{
		FacilityID:      body.FacilityID,
		CourtID:         body.CourtID,
		UserID:          user.ID,
		HouseholdID:     householdID,
		Date:            date,
		StartSlotIndex:  avail.StartSlotIndex,
		SlotCount:       avail.SlotCount,
		DurationMinutes: body.DurationMinutes,
		IsAdmin:         user.IsAdmin,
		MembershipTier:  user.MembershipTier,
	}
	decision, err := bookingEngine.EvaluateRequest(ctx, req)
	if err != nil {
		return bookingResponse{}, 0, err
	}
	if !decision.Allowed {
		return bookingResponse{
			Allowed:    false,
			Violations: decision.Violations,
		}, http.StatusUnprocessableEntity, nil
	}
	if !confirm {
		return bookingResponse{Allowed: true}, http.StatusOK, nil
	}

	prime, err := primeFlag(ctx, req)
	if err != nil {
		return bookingResponse{}, 0, err
	}
	confirmed, err := bookingStore.ConfirmBooking(ctx, booking.Booking{
		CourtID:        req.CourtID,
		FacilityID:     req.FacilityID,
		UserID:         req.UserID,
		Date:           req.Date,
		StartSlotIndex: req.StartSlotIndex,
		SlotCount:      req.SlotCount,
		Prime:          prime,
	})
	if err != nil {
		return bookingResponse{}, 0, err
	}
	writeLimiter.Record(req.UserID, req.FacilityID)
	return bookingResponse{BookingID: confirmed.ID, Allowed: true}, http.StatusCreated, nil
}

// DELETE /api/v1/bookings/{id}
func HandleCancelBooking(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if bookingStore == nil {
		logger.Error().Msg("Booking store not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if _, err := authz.RequireUser(r.Context()); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	bookingID := r.PathValue("id")
	if bookingID == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "booking id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	slotStart, facility, cutoff, err := cancellationContext(ctx, bookingID)
	if err != nil {
		writeEngineError(w, r, err, "Failed to cancel booking")
		return
	}
	now := clock.FacilityTime(time.Now(), facility.Timezone)

	canceled, err := bookingStore.CancelBooking(ctx, bookingID, slotStart, now, cutoff)
	if err != nil {
		writeEngineError(w, r, err, "Failed to cancel booking")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{
		"booking_id": canceled.ID,
		"status":     canceled.Status,
	})
}

// POST /api/v1/bookings/{id}/no-show  (admin only)
func HandleMarkNoShow(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if bookingStore == nil {
		logger.Error().Msg("Booking store not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	bookingID := r.PathValue("id")
	if bookingID == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "booking id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	if err := bookingStore.MarkNoShow(ctx, bookingID, time.Now().UTC()); err != nil {
		writeEngineError(w, r, err, "Failed to mark no-show")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// cancellationContext resolves the booking's absolute slot start and the
// facility's late-cancel cutoff so the store can decide whether the
// cancellation earns a strike.
func cancellationContext(ctx context.Context, bookingID string) (time.Time, booking.Facility, time.Duration, error) {
	b, err := bookingByID(ctx, bookingID)
	if err != nil {
		return time.Time{}, booking.Facility{}, 0, err
	}
	facility, err := bookingStore.Facility(ctx, b.FacilityID)
	if err != nil {
		return time.Time{}, booking.Facility{}, 0, err
	}
	window, err := slot.NewWindow(facility.DayStartHour, facility.DayEndHour, facility.SlotMinutes)
	if err != nil {
		return time.Time{}, booking.Facility{}, 0, err
	}
	loc, err := time.LoadLocation(facility.Timezone)
	if err != nil {
		loc = time.UTC
	}
	slotStart, err := window.SlotStart(b.Date, b.StartSlotIndex, loc)
	if err != nil {
		return time.Time{}, booking.Facility{}, 0, err
	}

	var cutoff time.Duration
	set, err := ruleRegistry.ActiveRules(ctx, b.FacilityID)
	if err != nil {
		return time.Time{}, booking.Facility{}, 0, err
	}
	if entry, ok := set.Active(rules.CodeLateCancel); ok {
		if cfg, ok := entry.Config.(rules.LateCancelConfig); ok {
			cutoff = time.Duration(cfg.LateCancelCutoffMinutes) * time.Minute
		}
	}
	return slotStart, facility, cutoff, nil
}

func bookingByID(ctx context.Context, bookingID string) (booking.Booking, error) {
	return bookingStore.BookingByID(ctx, bookingID)
}

// primeFlag stamps whether the confirmed booking intersects a peak window,
// so weekly prime caps can count it later without re-deriving overlays.
func primeFlag(ctx context.Context, req booking.Request) (bool, error) {
	facility, err := bookingStore.Facility(ctx, req.FacilityID)
	if err != nil {
		return false, err
	}
	window, err := slot.NewWindow(facility.DayStartHour, facility.DayEndHour, facility.SlotMinutes)
	if err != nil {
		return false, err
	}
	startHour, startMinute, err := window.SlotTime(req.StartSlotIndex)
	if err != nil {
		return false, err
	}
	startMin := startHour*60 + startMinute
	endMin := startMin + window.SlotMinutes(req.SlotCount)

	set, err := ruleRegistry.ActiveRules(ctx, req.FacilityID)
	if err != nil {
		return false, err
	}
	return engine.PrimeRange(set.Overlays(), req.Date, startMin, endMin), nil
}

const conflictReasonSlot = "slot_conflict"

func writeEngineError(w http.ResponseWriter, r *http.Request, err error, message string) {
	logger := log.Ctx(r.Context())
	switch {
	case errors.Is(err, engine.ErrUnknownCourt),
		errors.Is(err, engine.ErrUnknownFacility),
		errors.Is(err, store.ErrBookingNotFound),
		errors.Is(err, store.ErrCourtNotFound),
		errors.Is(err, store.ErrFacilityNotFound):
		apiutil.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, slot.ErrOutOfWindow),
		errors.Is(err, slot.ErrInvalidDuration),
		errors.Is(err, slot.ErrInvalidIndex):
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrEvaluationUnavailable):
		logger.Error().Err(err).Msg(message)
		apiutil.WriteError(w, http.StatusServiceUnavailable, "Evaluation temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		apiutil.WriteError(w, http.StatusGatewayTimeout, "Request timed out")
	default:
		logger.Error().Err(err).Msg(message)
		apiutil.WriteError(w, http.StatusInternalServerError, message)
	}
}
