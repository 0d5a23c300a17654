package claims

import (
	"testing"
	"time"
)

func TestRateLimiterCooldown(t *testing.T) {
	rl := NewRateLimiter(50 * time.Millisecond)

	if !rl.CanUse(1) {
		t.Fatal("first use must be allowed")
	}
	if rl.CanUse(1) {
		t.Fatal("second use inside the cooldown must be denied")
	}
	if rl.TimeUntilNext(1) <= 0 {
		t.Fatal("expected a positive wait inside the cooldown")
	}
	if !rl.CanUse(2) {
		t.Fatal("cooldown is per user")
	}

	time.Sleep(60 * time.Millisecond)
	if !rl.CanUse(1) {
		t.Fatal("use after the cooldown must be allowed")
	}
}

func TestRateLimiterTimeUntilNextUnknownUser(t *testing.T) {
	rl := NewRateLimiter(time.Minute)
	if wait := rl.TimeUntilNext(99); wait != 0 {
		t.Fatalf("unknown user should have no wait, got %s", wait)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(10 * time.Millisecond)
	rl.CanUse(1)

	time.Sleep(30 * time.Millisecond)
	rl.Cleanup()

	rl.mu.Lock()
	_, exists := rl.users[1]
	rl.mu.Unlock()
	if exists {
		t.Fatal("stale entry should have been cleaned up")
	}
}
