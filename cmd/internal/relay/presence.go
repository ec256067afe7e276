package relay

import (
	"log/slog"
	"sync"
)

// Presence is the process-wide mapping from user id to that user's single
// active connection.
//
// Policy:
//   - Register is last-writer-wins: a new connection for the same user
//     silently supersedes the prior one. The superseded client is returned
//     so the caller may close it.
//   - Unregister only removes the entry when the stored handle is the given
//     client, so a stale disconnect cannot delete a newer registration.
type Presence struct {
	log *slog.Logger

	mu    sync.RWMutex
	users map[string]*Client
}

// NewPresence constructs an empty registry.
func NewPresence(log *slog.Logger) *Presence {
	return &Presence{
		log:   log,
		users: make(map[string]*Client),
	}
}

// Register binds user to client, superseding any existing entry.
// Returns the superseded client, or nil if the user had no live connection.
func (p *Presence) Register(user string, client *Client) *Client {
	if p == nil || user == "" || client == nil {
		return nil
	}

	p.mu.Lock()
	prev := p.users[user]
	if prev == client {
		prev = nil
	}
	p.users[user] = client
	p.mu.Unlock()

	p.log.Info("presence.register", "user_id", user, "session_id", client.SessionID, "superseded", prev != nil)
	return prev
}

// Unregister removes the entry for the client's user, but only if the client
// is still the registered handle for that user.
func (p *Presence) Unregister(client *Client) {
	if p == nil || client == nil {
		return
	}
	user := client.UserID()
	if user == "" {
		return
	}

	p.mu.Lock()
	removed := false
	if p.users[user] == client {
		delete(p.users, user)
		removed = true
	}
	p.mu.Unlock()

	if removed {
		p.log.Info("presence.unregister", "user_id", user, "session_id", client.SessionID)
	}
}

// Lookup returns the currently registered connection for user.
func (p *Presence) Lookup(user string) (*Client, bool) {
	if p == nil {
		return nil, false
	}
	p.mu.RLock()
	c, ok := p.users[user]
	p.mu.RUnlock()
	return c, ok
}
