// Package relay contains Spark's realtime WebSocket gateway, presence and
// room fan-out primitives, and message persistence.
package relay

import (
	"errors"
	"fmt"
	"strings"
)

// RoomDelimiter joins the sorted user pair into a room id.
// User ids must never contain it, otherwise two distinct pairs could
// alias to the same room.
const RoomDelimiter = "--"

// DeriveRoomID returns the canonical room id for an unordered pair of users.
// Commutative: DeriveRoomID(a, b) == DeriveRoomID(b, a).
func DeriveRoomID(a, b string) (string, error) {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)

	if a == "" || b == "" {
		return "", errors.New("relay: empty user id")
	}
	if a == b {
		return "", errors.New("relay: room requires two distinct users")
	}
	if strings.Contains(a, RoomDelimiter) || strings.Contains(b, RoomDelimiter) {
		return "", fmt.Errorf("relay: user id contains room delimiter %q", RoomDelimiter)
	}

	if b < a {
		a, b = b, a
	}
	return a + RoomDelimiter + b, nil
}

// RoomParticipants decomposes a canonical room id back into its two user ids.
// Rejects ids that are not in DeriveRoomID's canonical form.
func RoomParticipants(roomID string) (string, string, error) {
	parts := strings.Split(roomID, RoomDelimiter)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("relay: malformed room id %q", roomID)
	}
	a, b := parts[0], parts[1]
	if a == "" || b == "" || a >= b {
		return "", "", fmt.Errorf("relay: malformed room id %q", roomID)
	}
	return a, b, nil
}

// RoomHasParticipant reports whether userID is one of the room's two users.
func RoomHasParticipant(roomID, userID string) bool {
	a, b, err := RoomParticipants(roomID)
	if err != nil {
		return false
	}
	return userID == a || userID == b
}
