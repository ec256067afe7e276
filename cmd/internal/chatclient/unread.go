package chatclient

import (
	"sync"
	"time"

	"spark/cmd/internal/relay"
)

// FirstUnreadIndex computes where to draw the "new messages" marker.
//
// Returns (index, true) for the first message in sequence order with
// CreatedAt after lastViewed and a sender other than selfID. Returns
// (0, false) when lastViewed is zero (a first-time viewer sees no marker)
// or when no message qualifies. Pure and idempotent.
func FirstUnreadIndex(msgs []relay.Message, lastViewed time.Time, selfID string) (int, bool) {
	if lastViewed.IsZero() {
		return 0, false
	}

	for i, m := range msgs {
		if m.SenderID == selfID {
			continue
		}
		if m.CreatedAt.After(lastViewed) {
			return i, true
		}
	}
	return 0, false
}

// ViewMarkers tracks the per-room last-viewed timestamp.
// Process-lifetime only; nothing here is persisted.
type ViewMarkers struct {
	mu sync.Mutex
	m  map[string]time.Time
}

// NewViewMarkers constructs an empty marker set.
func NewViewMarkers() *ViewMarkers {
	return &ViewMarkers{m: make(map[string]time.Time)}
}

// MarkViewed records that the user focused the composition surface for the
// room at the given time.
func (v *ViewMarkers) MarkViewed(roomID string, at time.Time) {
	if v == nil || roomID == "" {
		return
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	v.mu.Lock()
	v.m[roomID] = at
	v.mu.Unlock()
}

// LastViewed returns the recorded timestamp for the room, zero if never viewed.
func (v *ViewMarkers) LastViewed(roomID string) time.Time {
	if v == nil {
		return time.Time{}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.m[roomID]
}
