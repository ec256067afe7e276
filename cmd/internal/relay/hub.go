package relay

import (
	"log/slog"
	"sync"
)

// Hub owns in-memory rooms and provides stable room handles.
// It is intentionally minimal: persistence lives behind HistoryStore.
type Hub struct {
	log *slog.Logger

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:   log,
		rooms: make(map[string]*Room),
	}
}

// GetOrCreateRoom returns a stable in-memory room handle.
func (h *Hub) GetOrCreateRoom(roomID string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.rooms[roomID]; ok {
		return r
	}

	r := NewRoom(h.log, roomID)
	h.rooms[roomID] = r
	return r
}

// LeaveAll removes the session from every room it joined.
// Invoked on disconnect so a dropped connection never lingers in membership.
func (h *Hub) LeaveAll(sessionID string) {
	if h == nil || sessionID == "" {
		return
	}

	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	for _, r := range rooms {
		r.Leave(sessionID)
	}
}
