package relay

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

const (
	memMaxMessagesPerRoom = 10_000
)

// MemoryStore is an in-process HistoryStore used in dev and tests.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]*memRoom
}

type memRoom struct {
	msgs []Message // ordered by (CreatedAt, ID)
}

// NewMemoryStore constructs an in-memory HistoryStore implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*memRoom),
	}
}

// Close closes the store (noop for in-memory).
func (s *MemoryStore) Close() error { return nil }

// Append persists a message, assigning its id and timestamp.
func (s *MemoryStore) Append(ctx context.Context, in AppendInput) (Message, error) {
	if in.RoomID == "" || in.SenderID == "" || in.Text == "" {
		return Message{}, errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := NewMessageID(now)
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		ID:        id,
		RoomID:    in.RoomID,
		SenderID:  in.SenderID,
		Text:      in.Text,
		CreatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.rooms[in.RoomID]
	if r == nil {
		r = &memRoom{msgs: make([]Message, 0, 256)}
		s.rooms[in.RoomID] = r
	}
	r.msgs = append(r.msgs, msg)

	// Bound memory to avoid unbounded growth in dev.
	if len(r.msgs) > memMaxMessagesPerRoom {
		r.msgs = r.msgs[len(r.msgs)-memMaxMessagesPerRoom:]
	}

	return msg, nil
}

// History returns messages ordered ascending with paging via AfterID.
func (s *MemoryStore) History(ctx context.Context, in HistoryInput) (HistoryResult, error) {
	if in.RoomID == "" {
		return HistoryResult{}, errors.New("missing room_id")
	}
	if err := ctx.Err(); err != nil {
		return HistoryResult{}, err
	}

	limit := in.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	fetch := limit + 1

	s.mu.Lock()
	r := s.rooms[in.RoomID]
	var snap []Message
	if r != nil {
		snap = append([]Message(nil), r.msgs...)
	}
	s.mu.Unlock()

	if len(snap) == 0 {
		return HistoryResult{Messages: nil, HasMore: false}, nil
	}

	// Ensure ordering defensively; ULID ids sort in creation order.
	sort.Slice(snap, func(i, j int) bool {
		if snap[i].CreatedAt.Equal(snap[j].CreatedAt) {
			return snap[i].ID < snap[j].ID
		}
		return snap[i].CreatedAt.Before(snap[j].CreatedAt)
	})

	start := 0
	if in.AfterID != nil {
		after := *in.AfterID
		start = sort.Search(len(snap), func(i int) bool { return snap[i].ID > after })
		if start >= len(snap) {
			return HistoryResult{Messages: nil, HasMore: false}, nil
		}
	}

	end := start + fetch
	if end > len(snap) {
		end = len(snap)
	}
	out := snap[start:end]

	hasMore := len(out) > limit
	if hasMore {
		out = out[:limit]
	}

	return HistoryResult{Messages: out, HasMore: hasMore}, nil
}
