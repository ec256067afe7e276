package relay

import "testing"

func TestDeriveRoomID_Commutative(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b string
		want string
	}{
		{name: "already sorted", a: "uuid-A", b: "uuid-B", want: "uuid-A--uuid-B"},
		{name: "reversed", a: "uuid-B", b: "uuid-A", want: "uuid-A--uuid-B"},
		{name: "ulid pair", a: "01J5ZX", b: "01J5ZA", want: "01J5ZA--01J5ZX"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := DeriveRoomID(tc.a, tc.b)
			if err != nil {
				t.Fatalf("DeriveRoomID(%q, %q): %v", tc.a, tc.b, err)
			}
			if got != tc.want {
				t.Fatalf("DeriveRoomID(%q, %q)=%q want=%q", tc.a, tc.b, got, tc.want)
			}

			flipped, err := DeriveRoomID(tc.b, tc.a)
			if err != nil {
				t.Fatalf("DeriveRoomID(%q, %q): %v", tc.b, tc.a, err)
			}
			if flipped != got {
				t.Fatalf("not commutative: %q vs %q", got, flipped)
			}
		})
	}
}

func TestDeriveRoomID_RejectsInvalidPairs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b string
	}{
		{name: "empty first", a: "", b: "uuid-B"},
		{name: "empty second", a: "uuid-A", b: ""},
		{name: "same user", a: "uuid-A", b: "uuid-A"},
		{name: "delimiter in id", a: "uuid--A", b: "uuid-B"},
		{name: "whitespace only", a: "   ", b: "uuid-B"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := DeriveRoomID(tc.a, tc.b); err == nil {
				t.Fatalf("DeriveRoomID(%q, %q): expected error", tc.a, tc.b)
			}
		})
	}
}

func TestRoomParticipants_RoundTrip(t *testing.T) {
	t.Parallel()

	roomID, err := DeriveRoomID("uuid-B", "uuid-A")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	a, b, err := RoomParticipants(roomID)
	if err != nil {
		t.Fatalf("RoomParticipants(%q): %v", roomID, err)
	}
	if a != "uuid-A" || b != "uuid-B" {
		t.Fatalf("participants=(%q, %q) want (uuid-A, uuid-B)", a, b)
	}

	if !RoomHasParticipant(roomID, "uuid-A") || !RoomHasParticipant(roomID, "uuid-B") {
		t.Fatal("both pair members must be participants")
	}
	if RoomHasParticipant(roomID, "uuid-C") {
		t.Fatal("third user must not be a participant")
	}
}

func TestRoomParticipants_RejectsNonCanonicalIDs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		roomID string
	}{
		{name: "no delimiter", roomID: "uuid-A"},
		{name: "unsorted pair", roomID: "uuid-B--uuid-A"},
		{name: "same user twice", roomID: "uuid-A--uuid-A"},
		{name: "three segments", roomID: "uuid-A--uuid-B--uuid-C"},
		{name: "empty side", roomID: "--uuid-B"},
		{name: "empty", roomID: ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, _, err := RoomParticipants(tc.roomID); err == nil {
				t.Fatalf("RoomParticipants(%q): expected error", tc.roomID)
			}
			if RoomHasParticipant(tc.roomID, "uuid-A") {
				t.Fatalf("RoomHasParticipant(%q) accepted a malformed id", tc.roomID)
			}
		})
	}
}
