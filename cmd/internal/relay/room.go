package relay

import (
	"log/slog"
	"sync"

	v1 "spark/shared/contracts/chat/v1"
)

// Room is an in-memory membership + relay fan-out primitive scoped to one
// unordered pair of users.
//
// Concurrency guarantees:
// - Join/Leave are safe under concurrent Dispatch.
// - Dispatch never blocks (drops under backpressure).
// - Dispatch is panic-safe because Client.Send is never closed by the server.
type Room struct {
	log *slog.Logger
	ID  string

	mu      sync.RWMutex
	members map[string]*Client
}

// NewRoom constructs a room.
func NewRoom(log *slog.Logger, id string) *Room {
	return &Room{
		log:     log,
		ID:      id,
		members: make(map[string]*Client),
	}
}

// Join adds a client to membership. Idempotent.
func (r *Room) Join(client *Client) {
	if r == nil || client == nil || client.SessionID == "" {
		return
	}

	r.mu.Lock()
	_, already := r.members[client.SessionID]
	r.members[client.SessionID] = client
	r.mu.Unlock()

	if already {
		return
	}
	r.log.Info("room.member.join", "room_id", r.ID, "session_id", client.SessionID)
}

// Leave removes a client from membership. Idempotent; leaving a room not
// joined is a no-op. It does NOT close the client: the connection may still
// be viewing other rooms.
func (r *Room) Leave(sessionID string) {
	if r == nil || sessionID == "" {
		return
	}

	r.mu.Lock()
	_, ok := r.members[sessionID]
	delete(r.members, sessionID)
	r.mu.Unlock()

	if !ok {
		return
	}
	r.log.Info("room.member.leave", "room_id", r.ID, "session_id", sessionID)
}

// Contains reports whether the session is currently a member.
func (r *Room) Contains(sessionID string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	_, ok := r.members[sessionID]
	r.mu.RUnlock()
	return ok
}

// Members returns a snapshot of the current member sessions.
func (r *Room) Members() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	return out
}

// Dispatch fans an envelope out to every member except the sender's session.
// Best-effort, at-most-once per currently-connected peer: if a member queue
// is full or the client is shutting down, that member is skipped. A peer that
// misses a relay event discovers the message on its next history fetch.
func (r *Room) Dispatch(senderSession string, env v1.Envelope) {
	if r == nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for sid, m := range r.members {
		if m == nil || sid == senderSession {
			continue
		}

		select {
		case <-m.Done():
			// Skip clients that are shutting down.
			continue
		default:
		}

		select {
		case m.Send <- env:
			relayDispatched.Inc()
		default:
			// Drop rather than block the whole room.
			relayDropped.Inc()
		}
	}
}
