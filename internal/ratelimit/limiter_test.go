package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/codr1/courtengine/internal/booking"
	"github.com/codr1/courtengine/internal/rules"
)

// mockClock is a controllable clock for testing.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func actionAt(t time.Time, action booking.ActionType) booking.ActionRecord {
	return booking.ActionRecord{UserID: 7, FacilityID: 1, Timestamp: t, Action: action}
}

func TestCountWithin_SlidingWindowExact(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	window := 60 * time.Second
	history := []booking.ActionRecord{
		actionAt(now.Add(-90*time.Second), booking.ActionCreate), // outside
		actionAt(now.Add(-60*time.Second), booking.ActionCreate), // exactly window-old: outside (half-open)
		actionAt(now.Add(-59*time.Second), booking.ActionCreate),
		actionAt(now.Add(-1*time.Second), booking.ActionCancel),
		actionAt(now, booking.ActionCreate),
	}

	if got := CountWithin(history, nil, window, now); got != 3 {
		t.Errorf("count = %d, want 3", got)
	}
	if got := CountWithin(history, []booking.ActionType{booking.ActionCreate}, window, now); got != 2 {
		t.Errorf("create-only count = %d, want 2", got)
	}
}

func TestAllowed_ExactAcrossBoundaries(t *testing.T) {
	cfg := rules.RateLimitConfig{MaxActions: 3, WindowSeconds: 60}
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	// Three actions spread inside one window: the fourth is denied no
	// matter where the window "boundary" would have fallen in a bucketed
	// implementation.
	history := []booking.ActionRecord{
		actionAt(base.Add(-50*time.Second), booking.ActionCreate),
		actionAt(base.Add(-30*time.Second), booking.ActionCreate),
		actionAt(base.Add(-10*time.Second), booking.ActionCreate),
	}
	if Allowed(history, cfg, nil, base) {
		t.Error("fourth action within window must be denied")
	}

	// 11 seconds later the oldest action has slid out.
	if !Allowed(history, cfg, nil, base.Add(11*time.Second)) {
		t.Error("action must be allowed once the oldest slides out of the window")
	}
}

func TestAllowed_UnlimitedSentinel(t *testing.T) {
	cfg := rules.RateLimitConfig{MaxActions: rules.Unlimited, WindowSeconds: 60}
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	history := make([]booking.ActionRecord, 0, 1000)
	for i := 0; i < 1000; i++ {
		history = append(history, actionAt(now.Add(-time.Duration(i)*time.Millisecond), booking.ActionCreate))
	}
	if !Allowed(history, cfg, nil, now) {
		t.Error("unlimited cap must never deny")
	}
}

func TestLimiter_WindowLimit(t *testing.T) {
	clk := newMockClock()
	limiter := New(&Config{MaxActions: 2, Window: 60 * time.Second, Clock: clk})
	defer limiter.Close()

	for i := 0; i < 2; i++ {
		result := limiter.Check(7, 1)
		if !result.Allowed {
			t.Fatalf("action %d should be allowed, got blocked: %s", i+1, result.Reason)
		}
		limiter.Record(7, 1)
		clk.Advance(10 * time.Second)
	}

	result := limiter.Check(7, 1)
	if result.Allowed {
		t.Fatal("third action within window should be blocked")
	}
	if result.Reason != "window_limit" {
		t.Errorf("expected reason 'window_limit', got '%s'", result.Reason)
	}
	// Oldest action was 20s ago in a 60s window.
	if result.RetryAfter != 40*time.Second {
		t.Errorf("expected RetryAfter 40s, got %v", result.RetryAfter)
	}

	clk.Advance(41 * time.Second)
	result = limiter.Check(7, 1)
	if !result.Allowed {
		t.Errorf("action after window slides should be allowed, got blocked: %s", result.Reason)
	}
}

func TestLimiter_AccountsIndependent(t *testing.T) {
	clk := newMockClock()
	limiter := New(&Config{MaxActions: 1, Window: 60 * time.Second, Clock: clk})
	defer limiter.Close()

	limiter.Record(7, 1)
	if limiter.Check(7, 1).Allowed {
		t.Error("account at limit should be blocked")
	}
	if !limiter.Check(8, 1).Allowed {
		t.Error("different account should be unaffected")
	}
	if !limiter.Check(7, 2).Allowed {
		t.Error("same account at a different facility should be unaffected")
	}
}

func TestLimiter_CloseStopsCleanup(t *testing.T) {
	clk := newMockClock()
	limiter := New(&Config{MaxActions: 1, Window: 60 * time.Second, Clock: clk})

	// Check starts the lazy cleanup goroutine; Close must reap it.
	limiter.Check(7, 1)
	done := make(chan struct{})
	go func() {
		limiter.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return after cleanup goroutine started")
	}

	// Close before any Check must also return immediately.
	idle := New(&Config{MaxActions: 1, Window: 60 * time.Second, Clock: clk})
	idle.Close()
}
