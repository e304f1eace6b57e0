package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// StoredConfig is one facility rule row as persisted: the config payload is
// an opaque JSON blob until ParseConfig types it.
type StoredConfig struct {
	FacilityID int64
	RuleCode   Code
	Enabled    bool
	Config     json.RawMessage
}

// Source supplies rule configuration rows and overlays for a facility.
// Updates happen through the external facility-admin CRUD surface, which is
// expected to call Registry.Invalidate afterwards.
type Source interface {
	RuleConfigs(ctx context.Context, facilityID int64) ([]StoredConfig, error)
	Overlays(ctx context.Context, facilityID int64) ([]Overlay, error)
}

// Entry is one enabled-or-not rule with its typed config.
type Entry struct {
	Code    Code
	Enabled bool
	Config  Config
}

// Set is a facility's loaded rule configuration. Read-only after load.
type Set struct {
	entries  map[Code]Entry
	overlays []Overlay
}

// NewSet types and validates stored rows into a Set. Rows with codes the
// catalog does not know are skipped with a warning rather than failing the
// load; a facility running a newer admin surface keeps working.
func NewSet(stored []StoredConfig, overlays []Overlay) (*Set, error) {
	entries := make(map[Code]Entry, len(stored))
	for _, row := range stored {
		if !row.RuleCode.Known() {
			log.Warn().
				Str("component", "rule_registry").
				Int64("facility_id", row.FacilityID).
				Str("rule_code", string(row.RuleCode)).
				Msg("Skipping unknown rule code")
			continue
		}
		cfg, err := ParseConfig(row.RuleCode, row.Config)
		if err != nil {
			return nil, fmt.Errorf("facility %d rule %s: %w", row.FacilityID, row.RuleCode, err)
		}
		entries[row.RuleCode] = Entry{Code: row.RuleCode, Enabled: row.Enabled, Config: cfg}
	}
	for i, o := range overlays {
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("overlay %d: %w", i, err)
		}
	}
	return &Set{entries: entries, overlays: overlays}, nil
}

// Get returns the entry for code regardless of enabled state.
func (s *Set) Get(code Code) (Entry, bool) {
	e, ok := s.entries[code]
	return e, ok
}

// Active returns the entry for code only if the rule is enabled.
func (s *Set) Active(code Code) (Entry, bool) {
	e, ok := s.entries[code]
	if !ok || !e.Enabled {
		return Entry{}, false
	}
	return e, true
}

// ActiveRules returns every enabled rule.
func (s *Set) ActiveRules() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Enabled {
			out = append(out, e)
		}
	}
	return out
}

// ActiveByCategory returns enabled rules in one catalog category.
func (s *Set) ActiveByCategory(cat Category) []Entry {
	var out []Entry
	for _, e := range s.entries {
		if !e.Enabled {
			continue
		}
		if c, _ := e.Code.Category(); c == cat {
			out = append(out, e)
		}
	}
	return out
}

// Overlays returns the facility's configured overlay rule sets.
func (s *Set) Overlays() []Overlay {
	return s.overlays
}

// Registry caches per-facility rule sets. Rule writes happen elsewhere; the
// admin surface invalidates the facility entry after a change.
type Registry struct {
	source Source

	mu    sync.RWMutex
	cache map[int64]*Set
}

func NewRegistry(source Source) *Registry {
	return &Registry{
		source: source,
		cache:  make(map[int64]*Set),
	}
}

// ActiveRules returns the facility's rule set, loading and caching it on
// first use.
func (r *Registry) ActiveRules(ctx context.Context, facilityID int64) (*Set, error) {
	r.mu.RLock()
	set, ok := r.cache[facilityID]
	r.mu.RUnlock()
	if ok {
		return set, nil
	}

	stored, err := r.source.RuleConfigs(ctx, facilityID)
	if err != nil {
		return nil, fmt.Errorf("load rule configs for facility %d: %w", facilityID, err)
	}
	overlays, err := r.source.Overlays(ctx, facilityID)
	if err != nil {
		return nil, fmt.Errorf("load overlays for facility %d: %w", facilityID, err)
	}
	set, err = NewSet(stored, overlays)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	// A concurrent loader may have won; keep the first loaded set so all
	// in-flight evaluations observe one snapshot.
	if existing, ok := r.cache[facilityID]; ok {
		set = existing
	} else {
		r.cache[facilityID] = set
	}
	r.mu.Unlock()
	return set, nil
}

// Invalidate drops the cached rule set for one facility.
func (r *Registry) Invalidate(facilityID int64) {
	r.mu.Lock()
	delete(r.cache, facilityID)
	r.mu.Unlock()
	log.Debug().
		Str("component", "rule_registry").
		Int64("facility_id", facilityID).
		Msg("Rule cache invalidated")
}

// InvalidateAll drops every cached rule set. The scheduler's periodic
// refresh uses this to bound staleness when an admin surface forgets to
// invalidate.
func (r *Registry) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[int64]*Set)
	r.mu.Unlock()
}
