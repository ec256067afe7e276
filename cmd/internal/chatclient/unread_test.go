package chatclient

import (
	"testing"
	"time"

	"spark/cmd/internal/relay"
)

func TestFirstUnreadIndex(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := []relay.Message{
		mkMsg("010", "a--b", "uuid-B", "m0", base),
		mkMsg("011", "a--b", "uuid-A", "m1", base.Add(1*time.Second)),
		mkMsg("012", "a--b", "uuid-B", "m2", base.Add(2*time.Second)),
		mkMsg("013", "a--b", "uuid-B", "m3", base.Add(3*time.Second)),
	}

	cases := []struct {
		name       string
		lastViewed time.Time
		wantIdx    int
		wantOK     bool
	}{
		{name: "never viewed draws no marker", lastViewed: time.Time{}, wantOK: false},
		{name: "viewed before all", lastViewed: base.Add(-time.Minute), wantIdx: 0, wantOK: true},
		{name: "own message after boundary is skipped", lastViewed: base, wantIdx: 2, wantOK: true},
		{name: "boundary mid sequence", lastViewed: base.Add(2 * time.Second), wantIdx: 3, wantOK: true},
		{name: "viewed after all", lastViewed: base.Add(time.Hour), wantOK: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			idx, ok := FirstUnreadIndex(msgs, tc.lastViewed, "uuid-A")
			if ok != tc.wantOK {
				t.Fatalf("ok=%v want=%v", ok, tc.wantOK)
			}
			if ok && idx != tc.wantIdx {
				t.Fatalf("idx=%d want=%d", idx, tc.wantIdx)
			}
		})
	}
}

func TestFirstUnreadIndex_OnlyOwnMessages(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := []relay.Message{
		mkMsg("010", "a--b", "uuid-A", "m0", base),
		mkMsg("011", "a--b", "uuid-A", "m1", base.Add(time.Second)),
	}

	if _, ok := FirstUnreadIndex(msgs, base.Add(-time.Minute), "uuid-A"); ok {
		t.Fatal("a sequence of only own messages has no unread boundary")
	}
}

func TestFirstUnreadIndex_Idempotent(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := []relay.Message{
		mkMsg("010", "a--b", "uuid-B", "m0", base.Add(time.Second)),
	}

	a1, ok1 := FirstUnreadIndex(msgs, base, "uuid-A")
	a2, ok2 := FirstUnreadIndex(msgs, base, "uuid-A")
	if a1 != a2 || ok1 != ok2 {
		t.Fatalf("not idempotent: (%d,%v) vs (%d,%v)", a1, ok1, a2, ok2)
	}
}

func TestViewMarkers(t *testing.T) {
	t.Parallel()

	v := NewViewMarkers()

	if !v.LastViewed("a--b").IsZero() {
		t.Fatal("unviewed room should report zero time")
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v.MarkViewed("a--b", at)
	if got := v.LastViewed("a--b"); !got.Equal(at) {
		t.Fatalf("LastViewed=%v want=%v", got, at)
	}

	// Markers are per room.
	if !v.LastViewed("a--c").IsZero() {
		t.Fatal("marker leaked across rooms")
	}
}
