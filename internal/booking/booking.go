// Package booking holds the domain types shared by the conflict resolver,
// rule pipeline, and storage layer.
package booking

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCanceled  Status = "canceled"
	StatusNoShow    Status = "no_show"
)

type CourtType string

const (
	CourtTennis     CourtType = "tennis"
	CourtPickleball CourtType = "pickleball"
	CourtDual       CourtType = "dual"
)

type CourtStatus string

const (
	CourtAvailable   CourtStatus = "available"
	CourtMaintenance CourtStatus = "maintenance"
	CourtClosed      CourtStatus = "closed"
)

// Court is read-only to the engine; facility admins manage courts through
// their own CRUD surface. A court with a non-nil ParentCourtID is a sub-court
// produced by splitting a larger surface and can never have children itself.
type Court struct {
	ID            int64
	FacilityID    int64
	Name          string
	Type          CourtType
	Status        CourtStatus
	ParentCourtID *int64
	ChildCourtIDs []int64
}

// IsChild reports whether the court is a split sub-court.
func (c Court) IsChild() bool { return c.ParentCourtID != nil }

// Booking is owned by the persistence service. The engine reads confirmed
// bookings to build occupancy and historical rows to feed the strike tracker.
type Booking struct {
	ID             string
	CourtID        int64
	FacilityID     int64
	UserID         int64
	Date           time.Time // midnight, facility-local
	StartSlotIndex int
	SlotCount      int
	Status         Status
	Prime          bool // requested range intersected a prime-time window at creation
	CreatedAt      time.Time
	CanceledAt     *time.Time
}

// Overlaps reports whether the booking's slot range intersects [start, start+count).
func (b Booking) Overlaps(start, count int) bool {
	return b.StartSlotIndex < start+count && start < b.StartSlotIndex+b.SlotCount
}

// Request is a fully-formed booking request as handed to the engine. UI
// concerns (drag selection, form state) never reach this type.
type Request struct {
	FacilityID      int64
	CourtID         int64
	UserID          int64
	HouseholdID     *int64
	Date            time.Time // midnight, facility-local
	StartSlotIndex  int
	SlotCount       int
	DurationMinutes int
	IsAdmin         bool
	MembershipTier  string
}

// Minutes returns the booked court time in minutes given the facility's
// slot granularity.
func (r Request) Minutes(granularityMinutes int) int {
	return r.SlotCount * granularityMinutes
}

// RestrictionType selects whether facility caps aggregate per account or
// per registered street address (household).
type RestrictionType string

const (
	RestrictAccount RestrictionType = "account"
	RestrictAddress RestrictionType = "address"
)

// Facility carries the engine-relevant facility configuration: operating
// window, timezone, and the account/address restriction switch. Loaded once
// and cached; read-mostly.
type Facility struct {
	ID              int64
	Name            string
	Timezone        string
	DayStartHour    int
	DayEndHour      int
	SlotMinutes     int
	RestrictionType RestrictionType
}

type StrikeKind string

const (
	StrikeLateCancel StrikeKind = "late_cancel"
	StrikeNoShow     StrikeKind = "no_show"
)

// StrikeRecord is append-only; lockout is always derived from these rows,
// never stored.
type StrikeRecord struct {
	UserID     int64
	FacilityID int64
	Timestamp  time.Time
	Kind       StrikeKind
}

type ActionType string

const (
	ActionCreate ActionType = "create"
	ActionCancel ActionType = "cancel"
)

// ActionRecord feeds the sliding-window rate limiter.
type ActionRecord struct {
	UserID     int64
	FacilityID int64
	Timestamp  time.Time
	Action     ActionType
}
