// Package chatclient implements the client-side core of Spark messaging:
// the optimistic-send reconciliation state machine, the unread boundary
// calculator, and the session that drives them against the relay's
// collaborators.
package chatclient

import (
	"sync"
	"time"

	"spark/cmd/internal/relay"

	"github.com/google/uuid"
)

// EntryState is the lifecycle state of a locally-originated message.
type EntryState int

const (
	// StatePending: displayed optimistically, not yet durable.
	StatePending EntryState = iota
	// StateConfirmed: the store assigned the real id and timestamp.
	StateConfirmed
	// StateFailed: persistence failed; the entry leaves the visible sequence.
	StateFailed
)

// Entry is one message in the visible sequence. For a Pending entry,
// Message.ID holds the client-generated temp id and CreatedAt a provisional
// local time; Confirm replaces both in place.
type Entry struct {
	relay.Message
	State EntryState
}

// Timeline is the per-room visible message sequence, reconciling optimistic
// local sends with the authoritative durable order and live relay events.
//
// The durable store is the sole source of truth; Timeline is a cache.
type Timeline struct {
	mu      sync.Mutex
	roomID  string
	selfID  string
	entries []Entry
}

// NewTimeline constructs an empty timeline for one room.
func NewTimeline(roomID, selfID string) *Timeline {
	return &Timeline{roomID: roomID, selfID: selfID}
}

// RoomID returns the room this timeline displays.
func (t *Timeline) RoomID() string {
	if t == nil {
		return ""
	}
	return t.roomID
}

// Submit appends an optimistic Pending entry and returns it.
// The temp id is client-generated and is replaced on Confirm.
func (t *Timeline) Submit(text string, now time.Time) Entry {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	e := Entry{
		Message: relay.Message{
			ID:        "tmp-" + uuid.NewString(),
			RoomID:    t.roomID,
			SenderID:  t.selfID,
			Text:      text,
			CreatedAt: now,
		},
		State: StatePending,
	}

	t.mu.Lock()
	t.entries = append(t.entries, e)
	t.mu.Unlock()
	return e
}

// Confirm replaces the temp id and provisional timestamp of a Pending entry
// with the store-assigned values, in place: the sequence position does not
// change, so the user never sees a reorder.
func (t *Timeline) Confirm(tempID, messageID string, createdAt time.Time) bool {
	if t == nil || tempID == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.entries {
		if t.entries[i].ID == tempID && t.entries[i].State == StatePending {
			t.entries[i].ID = messageID
			t.entries[i].CreatedAt = createdAt
			t.entries[i].State = StateConfirmed
			return true
		}
	}
	return false
}

// Fail removes a Pending entry from the visible sequence and returns its
// text so the caller can restore the composer for a retry.
func (t *Timeline) Fail(tempID string) (string, bool) {
	if t == nil || tempID == "" {
		return "", false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.entries {
		if t.entries[i].ID == tempID && t.entries[i].State == StatePending {
			text := t.entries[i].Text
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return text, true
		}
	}
	return "", false
}

// LoadHistory replaces the sequence wholesale with the authoritative order.
// Confirmed entries already present in history are reconciled by id (no
// duplicates); Pending entries are re-appended after the authoritative
// prefix so an unresolved send is never silently lost across a reload.
func (t *Timeline) LoadHistory(msgs []relay.Message) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]struct{}, len(msgs))
	next := make([]Entry, 0, len(msgs)+2)

	for _, m := range msgs {
		if m.ID == "" {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		next = append(next, Entry{Message: m, State: StateConfirmed})
	}

	for _, e := range t.entries {
		switch e.State {
		case StatePending:
			next = append(next, e)
		case StateConfirmed:
			if _, ok := seen[e.ID]; !ok {
				next = append(next, e)
				seen[e.ID] = struct{}{}
			}
		}
	}

	t.entries = next
}

// ApplyRelay merges a live relay event into the sequence.
// Own messages are ignored (the sender already holds its Confirmed copy),
// as are events for other rooms and duplicates by id.
func (t *Timeline) ApplyRelay(m relay.Message) bool {
	if t == nil || m.ID == "" {
		return false
	}
	if m.SenderID == t.selfID {
		return false
	}
	if m.RoomID != t.roomID {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.entries {
		if e.ID == m.ID {
			return false
		}
	}

	t.entries = append(t.entries, Entry{Message: m, State: StateConfirmed})
	return true
}

// Messages returns a snapshot of the visible sequence.
func (t *Timeline) Messages() []relay.Message {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]relay.Message, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.Message)
	}
	return out
}

// Entries returns a snapshot including per-entry state.
func (t *Timeline) Entries() []Entry {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]Entry(nil), t.entries...)
}
