// Package rules holds the facility booking-policy catalog: one stable code
// per independently toggleable check, each with a typed configuration struct
// decoded and validated when a facility's rules are loaded. Business logic
// never sees a raw string-keyed config map.
package rules

import (
	"encoding/json"
	"fmt"
)

type Code string

const (
	// Account rules.
	CodeMaxActiveReservations Code = "ACC-001"
	CodeMaxPerWeek            Code = "ACC-002"
	CodeMaxMinutesPerWeek     Code = "ACC-003"
	CodeSelfOverlap           Code = "ACC-004"
	CodeAdvanceWindow         Code = "ACC-005"
	CodeMinNotice             Code = "ACC-006"
	CodeMaxPrimePerWeek       Code = "ACC-010"

	// Cancellation rules.
	CodeRebookCooldown Code = "ACC-007"
	CodeLateCancel     Code = "ACC-008"
	CodeStrikeLockout  Code = "ACC-009"
	CodeRateLimit      Code = "ACC-011"

	// Court rules.
	CodePrimeDuration  Code = "CRT-002"
	CodePrimeTierGate  Code = "CRT-003"
	CodeDurationGrid   Code = "CRT-005"
	CodeCourtWeeklyCap Code = "CRT-010"
	CodeReleaseTime    Code = "CRT-011"

	// Household rules.
	CodeHouseholdAddress Code = "HH-001"
	CodeHouseholdActive  Code = "HH-002"
	CodeHouseholdPrime   Code = "HH-003"
)

type Category string

const (
	CategoryAccount      Category = "account"
	CategoryCancellation Category = "cancellation"
	CategoryCourt        Category = "court"
	CategoryHousehold    Category = "household"
)

// Unlimited is the sentinel cap value meaning "skip this check entirely".
const Unlimited = -1

var categories = map[Code]Category{
	CodeMaxActiveReservations: CategoryAccount,
	CodeMaxPerWeek:            CategoryAccount,
	CodeMaxMinutesPerWeek:     CategoryAccount,
	CodeSelfOverlap:           CategoryAccount,
	CodeAdvanceWindow:         CategoryAccount,
	CodeMinNotice:             CategoryAccount,
	CodeMaxPrimePerWeek:       CategoryAccount,
	CodeRebookCooldown:        CategoryCancellation,
	CodeLateCancel:            CategoryCancellation,
	CodeStrikeLockout:         CategoryCancellation,
	CodeRateLimit:             CategoryCancellation,
	CodePrimeDuration:         CategoryCourt,
	CodePrimeTierGate:         CategoryCourt,
	CodeDurationGrid:          CategoryCourt,
	CodeCourtWeeklyCap:        CategoryCourt,
	CodeReleaseTime:           CategoryCourt,
	CodeHouseholdAddress:      CategoryHousehold,
	CodeHouseholdActive:       CategoryHousehold,
	CodeHouseholdPrime:        CategoryHousehold,
}

// CategoryOf returns the catalog category for a rule code.
func (c Code) Category() (Category, bool) {
	cat, ok := categories[c]
	return cat, ok
}

// Known reports whether the code is in the catalog.
func (c Code) Known() bool {
	_, ok := categories[c]
	return ok
}

// Config is a typed rule configuration. Validate runs at load time so a
// misconfigured rule fails when the facility's rules are read, not in the
// middle of evaluating a booking.
type Config interface {
	RuleCode() Code
	Validate() error
}

// MaxActiveConfig caps active (pending or confirmed, not yet started)
// reservations per account. ACC-001.
type MaxActiveConfig struct {
	MaxActiveReservations int `json:"max_active_reservations"`
}

func (MaxActiveConfig) RuleCode() Code { return CodeMaxActiveReservations }

func (c MaxActiveConfig) Validate() error {
	return validateCap("max_active_reservations", c.MaxActiveReservations)
}

// WeeklyCountConfig caps reservations created per calendar week. ACC-002.
type WeeklyCountConfig struct {
	MaxPerWeek int `json:"max_per_week"`
}

func (WeeklyCountConfig) RuleCode() Code { return CodeMaxPerWeek }

func (c WeeklyCountConfig) Validate() error {
	return validateCap("max_per_week", c.MaxPerWeek)
}

// WeeklyMinutesConfig caps booked minutes per calendar week. ACC-003.
type WeeklyMinutesConfig struct {
	MaxMinutesPerWeek int `json:"max_minutes_per_week"`
}

func (WeeklyMinutesConfig) RuleCode() Code { return CodeMaxMinutesPerWeek }

func (c WeeklyMinutesConfig) Validate() error {
	return validateCap("max_minutes_per_week", c.MaxMinutesPerWeek)
}

// SelfOverlapConfig forbids an account holding two confirmed reservations
// that overlap in time, on any court. ACC-004. No tunables.
type SelfOverlapConfig struct{}

func (SelfOverlapConfig) RuleCode() Code  { return CodeSelfOverlap }
func (SelfOverlapConfig) Validate() error { return nil }

// AdvanceWindowConfig caps how far ahead a booking may be placed. ACC-005.
type AdvanceWindowConfig struct {
	MaxDaysAhead int `json:"max_days_ahead"`
}

func (AdvanceWindowConfig) RuleCode() Code { return CodeAdvanceWindow }

func (c AdvanceWindowConfig) Validate() error {
	return validateCap("max_days_ahead", c.MaxDaysAhead)
}

// MinNoticeConfig requires a minimum lead time before the slot start. ACC-006.
type MinNoticeConfig struct {
	MinMinutesBeforeStart int `json:"min_minutes_before_start"`
}

func (MinNoticeConfig) RuleCode() Code { return CodeMinNotice }

func (c MinNoticeConfig) Validate() error {
	if c.MinMinutesBeforeStart < 0 {
		return fmt.Errorf("min_minutes_before_start must be >= 0, got %d", c.MinMinutesBeforeStart)
	}
	return nil
}

// RebookCooldownConfig throttles re-booking a slot the same account just
// canceled. ACC-007.
type RebookCooldownConfig struct {
	CooldownMinutes int `json:"cooldown_minutes"`
}

func (RebookCooldownConfig) RuleCode() Code { return CodeRebookCooldown }

func (c RebookCooldownConfig) Validate() error {
	if c.CooldownMinutes < 0 {
		return fmt.Errorf("cooldown_minutes must be >= 0, got %d", c.CooldownMinutes)
	}
	return nil
}

// LateCancelConfig marks cancellations inside the cutoff as strike-issuing.
// ACC-008.
type LateCancelConfig struct {
	LateCancelCutoffMinutes int `json:"late_cancel_cutoff_minutes"`
}

func (LateCancelConfig) RuleCode() Code { return CodeLateCancel }

func (c LateCancelConfig) Validate() error {
	if c.LateCancelCutoffMinutes < 0 {
		return fmt.Errorf("late_cancel_cutoff_minutes must be >= 0, got %d", c.LateCancelCutoffMinutes)
	}
	return nil
}

// StrikePolicyConfig drives the derived lockout: reaching the threshold
// within the rolling window locks the account out for lockout_days. ACC-009.
type StrikePolicyConfig struct {
	StrikeThreshold  int `json:"strike_threshold"`
	StrikeWindowDays int `json:"strike_window_days"`
	LockoutDays      int `json:"lockout_days"`
}

func (StrikePolicyConfig) RuleCode() Code { return CodeStrikeLockout }

func (c StrikePolicyConfig) Validate() error {
	if c.StrikeThreshold <= 0 {
		return fmt.Errorf("strike_threshold must be > 0, got %d", c.StrikeThreshold)
	}
	if c.StrikeWindowDays <= 0 {
		return fmt.Errorf("strike_window_days must be > 0, got %d", c.StrikeWindowDays)
	}
	if c.LockoutDays <= 0 {
		return fmt.Errorf("lockout_days must be > 0, got %d", c.LockoutDays)
	}
	return nil
}

// PrimeWeeklyConfig caps prime-time-flagged bookings per calendar week.
// ACC-010.
type PrimeWeeklyConfig struct {
	MaxPrimePerWeek int `json:"max_prime_per_week"`
}

func (PrimeWeeklyConfig) RuleCode() Code { return CodeMaxPrimePerWeek }

func (c PrimeWeeklyConfig) Validate() error {
	return validateCap("max_prime_per_week", c.MaxPrimePerWeek)
}

// RateLimitConfig throttles create/cancel actions in a sliding window.
// ACC-011.
type RateLimitConfig struct {
	MaxActions    int `json:"max_actions"`
	WindowSeconds int `json:"window_seconds"`
}

func (RateLimitConfig) RuleCode() Code { return CodeRateLimit }

func (c RateLimitConfig) Validate() error {
	if err := validateCap("max_actions", c.MaxActions); err != nil {
		return err
	}
	if c.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be > 0, got %d", c.WindowSeconds)
	}
	return nil
}

// PrimeDurationConfig caps booking length when the requested range touches a
// prime-time window. CRT-002.
type PrimeDurationConfig struct {
	MaxMinutesPrime int `json:"max_minutes_prime"`
}

func (PrimeDurationConfig) RuleCode() Code { return CodePrimeDuration }

func (c PrimeDurationConfig) Validate() error {
	return validateCap("max_minutes_prime", c.MaxMinutesPrime)
}

// TierGateConfig restricts prime-time booking to a set of membership tiers.
// Admin accounts bypass the gate when admin_override is set. CRT-003.
type TierGateConfig struct {
	AllowedTiers  []string `json:"allowed_tiers"`
	AdminOverride bool     `json:"admin_override"`
}

func (TierGateConfig) RuleCode() Code { return CodePrimeTierGate }

func (c TierGateConfig) Validate() error {
	if len(c.AllowedTiers) == 0 {
		return fmt.Errorf("allowed_tiers must not be empty")
	}
	return nil
}

// Allows reports whether tier may book prime time under this gate.
func (c TierGateConfig) Allows(tier string, isAdmin bool) bool {
	if isAdmin && c.AdminOverride {
		return true
	}
	for _, allowed := range c.AllowedTiers {
		if allowed == tier {
			return true
		}
	}
	return false
}

// DurationGridConfig pins booking starts to the slot grid and bounds the
// duration. CRT-005.
type DurationGridConfig struct {
	SlotMinutes        int `json:"slot_minutes"`
	MinDurationMinutes int `json:"min_duration_minutes"`
	MaxDurationMinutes int `json:"max_duration_minutes"`
}

func (DurationGridConfig) RuleCode() Code { return CodeDurationGrid }

func (c DurationGridConfig) Validate() error {
	if c.SlotMinutes <= 0 {
		return fmt.Errorf("slot_minutes must be > 0, got %d", c.SlotMinutes)
	}
	if c.MinDurationMinutes <= 0 {
		return fmt.Errorf("min_duration_minutes must be > 0, got %d", c.MinDurationMinutes)
	}
	if c.MaxDurationMinutes != Unlimited && c.MaxDurationMinutes < c.MinDurationMinutes {
		return fmt.Errorf("max_duration_minutes %d below min_duration_minutes %d",
			c.MaxDurationMinutes, c.MinDurationMinutes)
	}
	return nil
}

// CourtWeeklyConfig caps one account's weekly bookings on a specific court.
// CRT-010.
type CourtWeeklyConfig struct {
	MaxPerWeekPerAccount int `json:"max_per_week_per_account"`
}

func (CourtWeeklyConfig) RuleCode() Code { return CodeCourtWeeklyCap }

func (c CourtWeeklyConfig) Validate() error {
	return validateCap("max_per_week_per_account", c.MaxPerWeekPerAccount)
}

// ReleaseTimeConfig holds a date closed for booking until a facility-local
// release time days_ahead days before it. CRT-011.
type ReleaseTimeConfig struct {
	DaysAhead        int    `json:"days_ahead"`
	ReleaseTimeLocal string `json:"release_time_local"` // "HH:MM"
}

func (ReleaseTimeConfig) RuleCode() Code { return CodeReleaseTime }

func (c ReleaseTimeConfig) Validate() error {
	if c.DaysAhead < 0 {
		return fmt.Errorf("days_ahead must be >= 0, got %d", c.DaysAhead)
	}
	if _, _, err := ParseTimeOfDay(c.ReleaseTimeLocal); err != nil {
		return fmt.Errorf("release_time_local: %w", err)
	}
	return nil
}

// HouseholdAddressConfig is enforced at account creation by the registration
// surface; it is in the catalog so facility configs round-trip without
// "unknown rule" noise. HH-001.
type HouseholdAddressConfig struct{}

func (HouseholdAddressConfig) RuleCode() Code  { return CodeHouseholdAddress }
func (HouseholdAddressConfig) Validate() error { return nil }

// HouseholdActiveConfig caps active reservations summed across all accounts
// of a household. HH-002.
type HouseholdActiveConfig struct {
	MaxActiveHousehold int `json:"max_active_household"`
}

func (HouseholdActiveConfig) RuleCode() Code { return CodeHouseholdActive }

func (c HouseholdActiveConfig) Validate() error {
	return validateCap("max_active_household", c.MaxActiveHousehold)
}

// HouseholdPrimeConfig caps weekly prime-time bookings summed across the
// household. HH-003.
type HouseholdPrimeConfig struct {
	MaxPrimePerWeekHousehold int `json:"max_prime_per_week_household"`
}

func (HouseholdPrimeConfig) RuleCode() Code { return CodeHouseholdPrime }

func (c HouseholdPrimeConfig) Validate() error {
	return validateCap("max_prime_per_week_household", c.MaxPrimePerWeekHousehold)
}

// ParseConfig decodes the stored JSON blob for a rule code into its typed
// config and validates it. Unknown JSON keys are ignored so older engines
// keep working when new fields are added. A nil or empty blob decodes to the
// zero config, which Validate then accepts or rejects per rule.
func ParseConfig(code Code, raw json.RawMessage) (Config, error) {
	cfg, err := newConfig(code)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("decode %s config: %w", code, err)
		}
	}
	typed := deref(cfg)
	if err := typed.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", code, err)
	}
	return typed, nil
}

// newConfig returns a pointer to the zero config struct for code, for
// json.Unmarshal to fill.
func newConfig(code Code) (any, error) {
	switch code {
	case CodeMaxActiveReservations:
		return &MaxActiveConfig{}, nil
	case CodeMaxPerWeek:
		return &WeeklyCountConfig{}, nil
	case CodeMaxMinutesPerWeek:
		return &WeeklyMinutesConfig{}, nil
	case CodeSelfOverlap:
		return &SelfOverlapConfig{}, nil
	case CodeAdvanceWindow:
		return &AdvanceWindowConfig{}, nil
	case CodeMinNotice:
		return &MinNoticeConfig{}, nil
	case CodeRebookCooldown:
		return &RebookCooldownConfig{}, nil
	case CodeLateCancel:
		return &LateCancelConfig{}, nil
	case CodeStrikeLockout:
		return &StrikePolicyConfig{}, nil
	case CodeMaxPrimePerWeek:
		return &PrimeWeeklyConfig{}, nil
	case CodeRateLimit:
		return &RateLimitConfig{}, nil
	case CodePrimeDuration:
		return &PrimeDurationConfig{}, nil
	case CodePrimeTierGate:
		return &TierGateConfig{}, nil
	case CodeDurationGrid:
		return &DurationGridConfig{}, nil
	case CodeCourtWeeklyCap:
		return &CourtWeeklyConfig{}, nil
	case CodeReleaseTime:
		return &ReleaseTimeConfig{}, nil
	case CodeHouseholdAddress:
		return &HouseholdAddressConfig{}, nil
	case CodeHouseholdActive:
		return &HouseholdActiveConfig{}, nil
	case CodeHouseholdPrime:
		return &HouseholdPrimeConfig{}, nil
	default:
		return nil, fmt.Errorf("unknown rule code %q", code)
	}
}

func deref(cfg any) Config {
	switch typed := cfg.(type) {
	case *MaxActiveConfig:
		return *typed
	case *WeeklyCountConfig:
		return *typed
	case *WeeklyMinutesConfig:
		return *typed
	case *SelfOverlapConfig:
		return *typed
	case *AdvanceWindowConfig:
		return *typed
	case *MinNoticeConfig:
		return *typed
	case *RebookCooldownConfig:
		return *typed
	case *LateCancelConfig:
		return *typed
	case *StrikePolicyConfig:
		return *typed
	case *PrimeWeeklyConfig:
		return *typed
	case *RateLimitConfig:
		return *typed
	case *PrimeDurationConfig:
		return *typed
	case *TierGateConfig:
		return *typed
	case *DurationGridConfig:
		return *typed
	case *CourtWeeklyConfig:
		return *typed
	case *ReleaseTimeConfig:
		return *typed
	case *HouseholdAddressConfig:
		return *typed
	case *HouseholdActiveConfig:
		return *typed
	case *HouseholdPrimeConfig:
		return *typed
	default:
		panic(fmt.Sprintf("rules: unhandled config type %T", cfg))
	}
}

// CapSkipped reports whether a numeric cap uses the Unlimited sentinel.
func CapSkipped(value int) bool { return value == Unlimited }

func validateCap(name string, value int) error {
	if value == Unlimited || value > 0 {
		return nil
	}
	return fmt.Errorf("%s must be > 0 or -1 (unlimited), got %d", name, value)
}

// ParseTimeOfDay parses "HH:MM" into hour and minute.
func ParseTimeOfDay(value string) (hour, minute int, err error) {
	if _, parseErr := fmt.Sscanf(value, "%d:%d", &hour, &minute); parseErr != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q", value)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time of day %q", value)
	}
	return hour, minute, nil
}
