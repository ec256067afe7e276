package relay

import (
	"testing"
	"time"
)

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(3, time.Minute)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if !rl.Allow(now) {
			t.Fatalf("event %d should be allowed", i)
		}
	}
	if rl.Allow(now) {
		t.Fatal("event over limit should be denied")
	}
}

func TestRateLimiter_DefaultsForInvalidInputs(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(0, 0)
	now := time.Now()

	for i := 0; i < 120; i++ {
		if !rl.Allow(now) {
			t.Fatalf("event %d should fit under the default limit", i)
		}
	}
	if rl.Allow(now) {
		t.Fatal("event 121 should exceed the default limit")
	}
	if !rl.Allow(now.Add(10*time.Second + time.Millisecond)) {
		t.Fatal("expected allowance once the default window slid past")
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(2, 10*time.Second)
	now := time.Now()

	rl.Allow(now)
	rl.Allow(now)
	if rl.Allow(now.Add(time.Second)) {
		t.Fatal("within window: expected denial")
	}
	if !rl.Allow(now.Add(11 * time.Second)) {
		t.Fatal("after window: expected allowance")
	}
}
