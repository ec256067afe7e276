// Package v1 defines the Spark chat wire contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Type constants (wire-stable).
const (
	// TypeRegisterUser binds the connection to a user identity (client -> relay).
	TypeRegisterUser = "register_user"
	// TypeRegisterAck acknowledges identity registration (relay -> client).
	TypeRegisterAck = "register_ack"

	// TypeRoomJoin joins a room (client -> relay) and is echoed back.
	TypeRoomJoin = "room_join"
	// TypeRoomLeave leaves a room (client -> relay).
	TypeRoomLeave = "room_leave"

	// TypeMessageSend requests sending a new message (client -> relay).
	TypeMessageSend = "message_send"
	// TypeMessageAck acknowledges a send with the store-assigned identity (relay -> sender).
	TypeMessageAck = "message_ack"
	// TypeMessageNew relays a persisted message to the other room members (relay -> peers).
	TypeMessageNew = "message_new"

	// TypeHistoryFetch requests room history (client -> relay).
	TypeHistoryFetch = "history_fetch"
	// TypeHistoryChunk returns a window of history (relay -> client).
	TypeHistoryChunk = "history_chunk"

	// TypeError is a generic error envelope (relay -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeRegisterUser,
		TypeRegisterAck,
		TypeRoomJoin,
		TypeRoomLeave,
		TypeMessageSend,
		TypeMessageAck,
		TypeMessageNew,
		TypeHistoryFetch,
		TypeHistoryChunk,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Payloads ----

// RegisterUserPayload binds the connection to the identity issued by the
// external identity provider. The relay never generates user ids.
type RegisterUserPayload struct {
	UserID string `json:"user_id"`
}

// RegisterAckPayload confirms registration and returns the session id.
type RegisterAckPayload struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// RoomJoinPayload requests membership in a room. Echoed back on success.
type RoomJoinPayload struct {
	RoomID string `json:"room_id"`
}

// RoomLeavePayload requests leaving a room.
type RoomLeavePayload struct {
	RoomID string `json:"room_id"`
}

// MessageSendPayload requests sending a message into a room.
// TempID is the client-generated optimistic id, echoed back in the ack.
type MessageSendPayload struct {
	RoomID   string `json:"room_id"`
	SenderID string `json:"sender_id"`
	Text     string `json:"text"`
	TempID   string `json:"temp_id,omitempty"`
}

// MessageAckPayload returns the store-assigned identity for a send request.
type MessageAckPayload struct {
	RoomID    string    `json:"room_id"`
	TempID    string    `json:"temp_id,omitempty"`
	MessageID string    `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageNewPayload is relayed to room peers after a message is durable.
type MessageNewPayload struct {
	RoomID    string    `json:"room_id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	MessageID string    `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryFetchPayload requests a history window for a room.
// A nil AfterID fetches from the beginning.
type HistoryFetchPayload struct {
	RoomID  string  `json:"room_id"`
	AfterID *string `json:"after_id,omitempty"`
	Limit   int     `json:"limit,omitempty"`
}

// HistoryChunkPayload returns messages for a history fetch request,
// ordered by creation time ascending.
type HistoryChunkPayload struct {
	RoomID   string              `json:"room_id"`
	Messages []MessageNewPayload `json:"messages"`
	HasMore  bool                `json:"has_more"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
