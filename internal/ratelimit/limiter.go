// Package ratelimit provides sliding-window rate limiting for booking
// actions (create/cancel). The window is exact: it scans recorded action
// timestamps instead of fixed buckets, so a burst straddling a bucket edge
// can never admit twice the configured maximum.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtengine/internal/booking"
	"github.com/codr1/courtengine/internal/clock"
	"github.com/codr1/courtengine/internal/rules"
)

// CountWithin counts actions of the given types recorded in the half-open
// window (now-window, now]. It is the pure core shared by the durable
// ActionLog path and the in-memory limiter.
func CountWithin(history []booking.ActionRecord, types []booking.ActionType, window time.Duration, now time.Time) int {
	cutoff := now.Add(-window)
	count := 0
	for _, a := range history {
		if a.Timestamp.After(now) || !a.Timestamp.After(cutoff) {
			continue
		}
		if !matchesType(a.Action, types) {
			continue
		}
		count++
	}
	return count
}

// Allowed applies an ACC-011 config to an action history. A cap of -1 means
// the check is skipped.
func Allowed(history []booking.ActionRecord, cfg rules.RateLimitConfig, types []booking.ActionType, now time.Time) bool {
	if rules.CapSkipped(cfg.MaxActions) {
		return true
	}
	window := time.Duration(cfg.WindowSeconds) * time.Second
	return CountWithin(history, types, window, now) < cfg.MaxActions
}

func matchesType(action booking.ActionType, types []booking.ActionType) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == action {
			return true
		}
	}
	return false
}

// Config holds in-memory limiter configuration.
type Config struct {
	MaxActions int           // Max actions per account per window
	Window     time.Duration // Sliding window width
	Clock      clock.Clock   // Clock for testing (nil uses real time)
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxActions: 10,
		Window:     time.Minute,
	}
}

// LimitResult contains the result of a rate limit check.
type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string // For logging
}

// entry tracks one account's recorded action times, oldest first.
type entry struct {
	times []time.Time
}

// Limiter is the in-process hot-path limiter guarding the HTTP surface. The
// durable ActionLog remains authoritative across processes; this keeps a
// single instance from hammering storage during a burst.
type Limiter struct {
	config *Config
	clock  clock.Clock
	mu     sync.Mutex
	byKey  map[string]*entry

	// Cleanup goroutine management
	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupOnce   sync.Once
	cleanupWg     sync.WaitGroup
}

// New creates a new rate limiter with the given config.
func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		config:        cfg,
		clock:         clk,
		byKey:         make(map[string]*entry),
		cleanupCtx:    ctx,
		cleanupCancel: cancel,
	}
}

// Close stops the cleanup goroutine and releases resources.
func (l *Limiter) Close() {
	l.cleanupCancel()
	l.cleanupWg.Wait()
}

// Check reports whether another action is allowed for the account right now.
// Does NOT record the action - call Record after the action succeeds.
func (l *Limiter) Check(userID, facilityID int64) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	key := accountKey(userID, facilityID)

	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.byKey[key]
	if e == nil {
		return LimitResult{Allowed: true}
	}
	e.trim(now.Add(-l.config.Window))
	if len(e.times) < l.config.MaxActions {
		return LimitResult{Allowed: true}
	}

	// Full window: allowed again once the oldest action slides out.
	retryAfter := e.times[0].Add(l.config.Window).Sub(now)
	return LimitResult{
		Allowed:    false,
		RetryAfter: retryAfter,
		Reason:     "window_limit",
	}
}

// Record notes a successful action. Call this AFTER the action is accepted.
func (l *Limiter) Record(userID, facilityID int64) {
	now := l.clock.Now()
	key := accountKey(userID, facilityID)

	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.byKey[key]
	if e == nil {
		e = &entry{}
		l.byKey[key] = e
	}
	e.trim(now.Add(-l.config.Window))
	e.times = append(e.times, now)
}

// trim drops timestamps at or before cutoff. Times are appended in order,
// so a prefix scan suffices.
func (e *entry) trim(cutoff time.Time) {
	drop := 0
	for drop < len(e.times) && !e.times[drop].After(cutoff) {
		drop++
	}
	if drop > 0 {
		e.times = append(e.times[:0], e.times[drop:]...)
	}
}

func accountKey(userID, facilityID int64) string {
	return fmt.Sprintf("%d:%d", facilityID, userID)
}

func (l *Limiter) startCleanup() {
	l.cleanupOnce.Do(func() {
		l.cleanupWg.Add(1)
		go func() {
			defer l.cleanupWg.Done()
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-l.cleanupCtx.Done():
					return
				case <-ticker.C:
					l.cleanup()
				}
			}
		}()
	})
}

func (l *Limiter) cleanup() {
	now := l.clock.Now()
	cutoff := now.Add(-l.config.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, e := range l.byKey {
		e.trim(cutoff)
		if len(e.times) == 0 {
			delete(l.byKey, k)
		}
	}
}

// LogRateLimitExceeded logs a rate limit event.
func LogRateLimitExceeded(userID, facilityID int64, reason string) {
	log.Warn().
		Str("event", "rate_limit_exceeded").
		Int64("user_id", userID).
		Int64("facility_id", facilityID).
		Str("reason", reason).
		Msg("Booking action rate limit exceeded")
}
