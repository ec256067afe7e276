package chatclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"spark/cmd/internal/relay"
)

// ErrNoUser is returned when the identity provider has no current session.
var ErrNoUser = errors.New("chatclient: no current user")

// ErrNoActiveRoom is returned for operations that require a selected peer.
var ErrNoActiveRoom = errors.New("chatclient: no active room")

// IdentityProvider yields the stable opaque user identifier for the current
// session. The client never generates identities.
type IdentityProvider interface {
	CurrentUser(ctx context.Context) (string, error)
}

// RoomLink is the client's view of relay room membership: join the room for
// the selected peer, leave it when switching away.
type RoomLink interface {
	Join(ctx context.Context, roomID string) error
	Leave(ctx context.Context, roomID string) error
}

// Dispatcher forwards a persisted message to the relay for live fan-out.
// It must only ever be invoked after the store confirmed the write.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg relay.Message) error
}

// Session drives one user's messaging state: the active room's timeline,
// the composer, and the unread markers.
//
// Concurrency: a Session is owned by the single task that runs the user's
// connection; the mutex only guards against the relay-event callback racing
// the owner's calls.
type Session struct {
	store      relay.HistoryStore
	directory  relay.MatchDirectory
	link       RoomLink
	dispatcher Dispatcher

	mu       sync.Mutex
	selfID   string
	peerID   string
	timeline *Timeline
	composer string
	markers  *ViewMarkers
}

// NewSession constructs a session and resolves the current user identity.
func NewSession(ctx context.Context, identity IdentityProvider, store relay.HistoryStore, directory relay.MatchDirectory, link RoomLink, dispatcher Dispatcher) (*Session, error) {
	if identity == nil || store == nil || link == nil || dispatcher == nil {
		return nil, errors.New("chatclient: nil collaborator")
	}

	selfID, err := identity.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if selfID == "" {
		return nil, ErrNoUser
	}

	return &Session{
		store:      store,
		directory:  directory,
		link:       link,
		dispatcher: dispatcher,
		selfID:     selfID,
		markers:    NewViewMarkers(),
	}, nil
}

// SelfID returns the identity this session runs as.
func (s *Session) SelfID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selfID
}

// Peers lists the users this session may message.
func (s *Session) Peers(ctx context.Context) ([]relay.Peer, error) {
	if s.directory == nil {
		return nil, nil
	}
	return s.directory.ListPeers(ctx, s.SelfID())
}

// SwitchPeer selects a peer: leaves the previous room, joins the new one,
// and replaces the timeline with the authoritative history.
func (s *Session) SwitchPeer(ctx context.Context, peerID string) error {
	s.mu.Lock()
	selfID := s.selfID
	prevRoom := ""
	if s.timeline != nil {
		prevRoom = s.timeline.RoomID()
	}
	s.mu.Unlock()

	roomID, err := relay.DeriveRoomID(selfID, peerID)
	if err != nil {
		return err
	}
	if roomID == prevRoom {
		return nil
	}

	if prevRoom != "" {
		if err := s.link.Leave(ctx, prevRoom); err != nil {
			return fmt.Errorf("leave %s: %w", prevRoom, err)
		}
	}
	if err := s.link.Join(ctx, roomID); err != nil {
		return fmt.Errorf("join %s: %w", roomID, err)
	}

	tl := NewTimeline(roomID, selfID)
	if err := s.reloadHistory(ctx, tl); err != nil {
		return err
	}

	s.mu.Lock()
	s.peerID = peerID
	s.timeline = tl
	s.mu.Unlock()
	return nil
}

// reloadHistory pages the full room history into the timeline.
func (s *Session) reloadHistory(ctx context.Context, tl *Timeline) error {
	var (
		all   []relay.Message
		after *string
	)
	for {
		out, err := s.store.History(ctx, relay.HistoryInput{
			RoomID:  tl.RoomID(),
			AfterID: after,
		})
		if err != nil {
			return fmt.Errorf("history %s: %w", tl.RoomID(), err)
		}
		all = append(all, out.Messages...)
		if !out.HasMore || len(out.Messages) == 0 {
			break
		}
		last := out.Messages[len(out.Messages)-1].ID
		after = &last
	}

	tl.LoadHistory(all)
	return nil
}

// Send runs the optimistic-send state machine for the composer text:
// append Pending immediately, persist, confirm in place, and only after a
// successful write hand the message to the dispatcher. On persistence
// failure the entry is removed and the text restored to the composer.
func (s *Session) Send(ctx context.Context) (relay.Message, error) {
	s.mu.Lock()
	tl := s.timeline
	text := s.composer
	s.mu.Unlock()

	// Guards run before the composer is touched so a failed send never
	// destroys drafted text.
	if tl == nil {
		return relay.Message{}, ErrNoActiveRoom
	}
	if text == "" {
		return relay.Message{}, errors.New("chatclient: empty composer")
	}

	s.mu.Lock()
	s.composer = ""
	s.mu.Unlock()

	entry := tl.Submit(text, time.Now().UTC())

	stored, err := s.store.Append(ctx, relay.AppendInput{
		RoomID:   tl.RoomID(),
		SenderID: entry.SenderID,
		Text:     text,
	})
	if err != nil {
		if restored, ok := tl.Fail(entry.ID); ok {
			s.mu.Lock()
			s.composer = restored
			s.mu.Unlock()
		}
		return relay.Message{}, fmt.Errorf("persist: %w", err)
	}

	tl.Confirm(entry.ID, stored.ID, stored.CreatedAt)

	// Peers who receive this live already find it in the durable log.
	if err := s.dispatcher.Dispatch(ctx, stored); err != nil {
		// Best-effort by contract: the message is durable, peers that miss
		// the relay catch up on their next history fetch.
		return stored, nil
	}
	return stored, nil
}

// Compose replaces the composer text.
func (s *Session) Compose(text string) {
	s.mu.Lock()
	s.composer = text
	s.mu.Unlock()
}

// Composer returns the current composer text.
func (s *Session) Composer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.composer
}

// FocusComposer records that the user focused the composition surface for
// the active room, moving the unread boundary.
func (s *Session) FocusComposer(now time.Time) {
	s.mu.Lock()
	tl := s.timeline
	s.mu.Unlock()

	if tl == nil {
		return
	}
	s.markers.MarkViewed(tl.RoomID(), now)
}

// HandleRelay merges a live relay event into the active timeline.
// Events for other rooms are dropped in this scope.
func (s *Session) HandleRelay(msg relay.Message) bool {
	s.mu.Lock()
	tl := s.timeline
	s.mu.Unlock()

	if tl == nil {
		return false
	}
	return tl.ApplyRelay(msg)
}

// Messages returns the visible sequence for the active room.
func (s *Session) Messages() []relay.Message {
	s.mu.Lock()
	tl := s.timeline
	s.mu.Unlock()
	return tl.Messages()
}

// UnreadBoundary computes the "new messages" marker for the active room.
func (s *Session) UnreadBoundary() (int, bool) {
	s.mu.Lock()
	tl := s.timeline
	selfID := s.selfID
	s.mu.Unlock()

	if tl == nil {
		return 0, false
	}
	return FirstUnreadIndex(tl.Messages(), s.markers.LastViewed(tl.RoomID()), selfID)
}
