package relay

import (
	"context"
	"time"
)

// Message is the canonical persisted message representation.
// ID and CreatedAt are assigned by the store at persistence time, never by
// the relay or the client.
type Message struct {
	ID        string
	RoomID    string
	SenderID  string
	Text      string
	CreatedAt time.Time
}

// HistoryStore is the durable, append-only per-room message log.
// It is the sole source of truth; in-memory client copies are a cache
// reconciled against it.
//
// Requirements:
//   - Append assigns ID (ULID) and CreatedAt and commits before returning,
//     so a connection's own writes are visible to its next History call.
//   - History is ordered by created_at ascending (ULID ids tie-break).
type HistoryStore interface {
	Append(ctx context.Context, in AppendInput) (Message, error)
	History(ctx context.Context, in HistoryInput) (HistoryResult, error)
	Close() error
}

// AppendInput describes a message append request.
// The client only proposes RoomID, SenderID, and Text.
type AppendInput struct {
	RoomID   string
	SenderID string
	Text     string
	Now      time.Time
}

// HistoryInput describes a history query request.
// A nil AfterID reads from the beginning of the room.
type HistoryInput struct {
	RoomID  string
	AfterID *string
	Limit   int
}

// HistoryResult contains the retrieved history window.
type HistoryResult struct {
	Messages []Message
	HasMore  bool
}
