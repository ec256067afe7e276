// Package main provides a CI-friendly WebSocket smoke test for the Spark relay.
//
// It validates:
//   - handshake + subprotocol selection
//   - register_user -> register_ack session establishment
//   - room_join echo
//   - message_send -> message_ack with store-assigned identity
//   - message_new fan-out to the other member
//   - history_fetch returning the durable message
//   - after_id paging past the last message returning an empty chunk
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	v1 "spark/shared/contracts/chat/v1"

	"github.com/coder/websocket"
)

const (
	defaultSubprotocol = "spark.chat.v1"
	roomDelimiter      = "--"
	maxReadBytes       = 1 << 20 // 1MiB
)

type smokeClient struct {
	name      string
	userID    string
	conn      *websocket.Conn
	sessionID string

	inbox chan v1.Envelope
	errCh chan error
}

func main() {
	var (
		wsURL   = flag.String("url", "ws://127.0.0.1:8080/ws", "WebSocket URL")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		userA   = flag.String("user-a", "smoke-user-a", "First participant user id")
		userB   = flag.String("user-b", "smoke-user-b", "Second participant user id")
		text    = flag.String("text", "hello spark 👋", "Message text to send")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}
	if *userA == *userB || strings.Contains(*userA, roomDelimiter) || strings.Contains(*userB, roomDelimiter) {
		fatalf("user ids must be distinct and must not contain %q", roomDelimiter)
	}

	roomID := pairRoomID(*userA, *userB)

	root := context.Background()

	a := mustConnect(root, "A", *userA, *wsURL, *origin, *timeout)
	defer closeWS(a.conn)

	b := mustConnect(root, "B", *userB, *wsURL, *origin, *timeout)
	defer closeWS(b.conn)

	if *verbose {
		fmt.Printf("connected: A=%s B=%s room=%s origin=%q\n", a.sessionID, b.sessionID, roomID, *origin)
	}

	mustJoin(root, a, roomID, *timeout)
	mustJoin(root, b, roomID, *timeout)

	tempID := fmt.Sprintf("tmp-smoke-%d", time.Now().UnixNano())

	messageID, createdAt := mustSendAndAssertAck(root, a, roomID, tempID, *text, *timeout)

	mustAssertNew(root, b, roomID, messageID, a.userID, *text, *timeout)

	mustAssertNoType(root, a, v1.TypeMessageNew, 1200*time.Millisecond)

	mustHistoryFetchContains(root, b, roomID, nil, 50, messageID, a.userID, *text, *timeout)

	after := messageID
	mustHistoryFetchEmpty(root, b, roomID, &after, 50, *timeout)

	fmt.Printf("OK: A=%s B=%s room_id=%s message_id=%s created_at=%s\n",
		a.sessionID, b.sessionID, roomID, messageID, createdAt.Format(time.RFC3339Nano))
}

// pairRoomID mirrors the relay's canonical room derivation for a user pair.
func pairRoomID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + roomDelimiter + ids[1]
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(u.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustConnect(parent context.Context, name, userID, wsURL, origin string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{defaultSubprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		fatalf("connect %s: %v", name, err)
	}

	assertSubprotocol(resp, defaultSubprotocol)

	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		name:   name,
		userID: userID,
		conn:   conn,
		inbox:  make(chan v1.Envelope, 512),
		errCh:  make(chan error, 1),
	}
	c.startReadLoop()

	register := v1.Envelope{
		V:       v1.Version,
		Type:    v1.TypeRegisterUser,
		ID:      fmt.Sprintf("%s-register", name),
		TS:      time.Now().UTC(),
		Payload: mustJSON(v1.RegisterUserPayload{UserID: userID}),
	}
	mustWriteWithTimeout(parent, conn, register, stepTimeout)

	ack := c.mustReadUntilType(parent, v1.TypeRegisterAck, stepTimeout, nil)

	var p v1.RegisterAckPayload
	if err := json.Unmarshal(ack.Payload, &p); err != nil {
		fatalf("unmarshal register_ack payload (%s): %v", name, err)
	}
	if p.UserID != userID {
		fatalf("register_ack user_id mismatch (%s): got=%q want=%q", name, p.UserID, userID)
	}
	if strings.TrimSpace(p.SessionID) == "" {
		fatalf("register_ack missing session_id (%s)", name)
	}
	c.sessionID = p.SessionID

	return c
}

func assertSubprotocol(resp *http.Response, want string) {
	if resp == nil {
		return
	}
	got := strings.TrimSpace(resp.Header.Get("Sec-WebSocket-Protocol"))
	if got == "" {
		return
	}
	if got != want {
		fatalf("subprotocol mismatch: got=%q want=%q", got, want)
	}
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			mt, data, err := c.conn.Read(context.Background())
			if err != nil {
				select {
				case c.errCh <- err:
				default:
				}
				return
			}

			if mt != websocket.MessageText && mt != websocket.MessageBinary {
				select {
				case c.errCh <- fmt.Errorf("unsupported message type: %v", mt):
				default:
				}
				return
			}

			var env v1.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad json: %w", err):
				default:
				}
				return
			}
			if err := env.Validate(); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad envelope: %w", err):
				default:
				}
				return
			}

			select {
			case c.inbox <- env:
			default:
				select {
				case c.errCh <- errors.New("inbox overflow: consumer too slow"):
				default:
				}
				return
			}
		}
	}()
}

func mustJoin(parent context.Context, c *smokeClient, roomID string, stepTimeout time.Duration) {
	env := v1.Envelope{
		V:       v1.Version,
		Type:    v1.TypeRoomJoin,
		ID:      fmt.Sprintf("%s-join", c.name),
		TS:      time.Now().UTC(),
		Payload: mustJSON(v1.RoomJoinPayload{RoomID: roomID}),
	}
	mustWriteWithTimeout(parent, c.conn, env, stepTimeout)

	echo := c.mustReadUntilType(parent, v1.TypeRoomJoin, stepTimeout, nil)

	var p v1.RoomJoinPayload
	if err := json.Unmarshal(echo.Payload, &p); err != nil {
		fatalf("unmarshal join echo payload (%s): %v", c.name, err)
	}
	if p.RoomID != roomID {
		fatalf("join echo room_id mismatch (%s): got=%q want=%q", c.name, p.RoomID, roomID)
	}
}

func mustSendAndAssertAck(parent context.Context, c *smokeClient, roomID, tempID, text string, stepTimeout time.Duration) (messageID string, createdAt time.Time) {
	env := v1.Envelope{
		V:    v1.Version,
		Type: v1.TypeMessageSend,
		ID:   fmt.Sprintf("%s-send-%s", c.name, tempID),
		TS:   time.Now().UTC(),
		Payload: mustJSON(v1.MessageSendPayload{
			RoomID:   roomID,
			SenderID: c.userID,
			Text:     text,
			TempID:   tempID,
		}),
	}
	mustWriteWithTimeout(parent, c.conn, env, stepTimeout)

	skip := map[string]struct{}{v1.TypeMessageNew: {}}
	ack := c.mustReadUntilType(parent, v1.TypeMessageAck, stepTimeout, skip)

	var p v1.MessageAckPayload
	if err := json.Unmarshal(ack.Payload, &p); err != nil {
		fatalf("unmarshal message_ack payload (%s): %v", c.name, err)
	}
	if p.RoomID != roomID {
		fatalf("ack room_id mismatch (%s): got=%q want=%q", c.name, p.RoomID, roomID)
	}
	if p.TempID != tempID {
		fatalf("ack temp_id mismatch (%s): got=%q want=%q", c.name, p.TempID, tempID)
	}
	if strings.TrimSpace(p.MessageID) == "" {
		fatalf("ack missing message_id (%s)", c.name)
	}
	if p.CreatedAt.IsZero() {
		fatalf("ack missing created_at (%s)", c.name)
	}
	return p.MessageID, p.CreatedAt
}

func mustAssertNew(parent context.Context, c *smokeClient, roomID, messageID, senderID, text string, stepTimeout time.Duration) {
	env := c.mustReadUntilType(parent, v1.TypeMessageNew, stepTimeout, nil)

	var p v1.MessageNewPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		fatalf("unmarshal message_new payload (%s): %v", c.name, err)
	}

	if p.RoomID != roomID {
		fatalf("new room_id mismatch (%s): got=%q want=%q", c.name, p.RoomID, roomID)
	}
	if p.MessageID != messageID {
		fatalf("new message_id mismatch (%s): got=%q want=%q", c.name, p.MessageID, messageID)
	}
	if p.SenderID != senderID {
		fatalf("new sender_id mismatch (%s): got=%q want=%q", c.name, p.SenderID, senderID)
	}
	if p.Text != text {
		fatalf("new text mismatch (%s): got=%q want=%q", c.name, p.Text, text)
	}
	if p.CreatedAt.IsZero() {
		fatalf("new created_at missing/zero (%s)", c.name)
	}
}

func mustHistoryFetchContains(
	parent context.Context,
	c *smokeClient,
	roomID string,
	afterID *string,
	limit int,
	messageID, senderID, text string,
	stepTimeout time.Duration,
) {
	req := v1.Envelope{
		V:    v1.Version,
		Type: v1.TypeHistoryFetch,
		ID:   fmt.Sprintf("%s-history-fetch", c.name),
		TS:   time.Now().UTC(),
		Payload: mustJSON(v1.HistoryFetchPayload{
			RoomID:  roomID,
			AfterID: afterID,
			Limit:   limit,
		}),
	}
	mustWriteWithTimeout(parent, c.conn, req, stepTimeout)

	chunk := c.mustReadUntilType(parent, v1.TypeHistoryChunk, stepTimeout, nil)

	var p v1.HistoryChunkPayload
	if err := json.Unmarshal(chunk.Payload, &p); err != nil {
		fatalf("unmarshal history_chunk payload (%s): %v", c.name, err)
	}
	if p.RoomID != roomID {
		fatalf("history_chunk room_id mismatch (%s): got=%q want=%q", c.name, p.RoomID, roomID)
	}

	found := false
	for _, m := range p.Messages {
		if m.RoomID == roomID &&
			m.MessageID == messageID &&
			m.SenderID == senderID &&
			m.Text == text &&
			!m.CreatedAt.IsZero() {
			found = true
			break
		}
	}
	if !found {
		fatalf("history_chunk missing expected message (%s)", c.name)
	}
}

func mustHistoryFetchEmpty(parent context.Context, c *smokeClient, roomID string, afterID *string, limit int, stepTimeout time.Duration) {
	req := v1.Envelope{
		V:    v1.Version,
		Type: v1.TypeHistoryFetch,
		ID:   fmt.Sprintf("%s-history-fetch-empty", c.name),
		TS:   time.Now().UTC(),
		Payload: mustJSON(v1.HistoryFetchPayload{
			RoomID:  roomID,
			AfterID: afterID,
			Limit:   limit,
		}),
	}
	mustWriteWithTimeout(parent, c.conn, req, stepTimeout)

	chunk := c.mustReadUntilType(parent, v1.TypeHistoryChunk, stepTimeout, nil)

	var p v1.HistoryChunkPayload
	if err := json.Unmarshal(chunk.Payload, &p); err != nil {
		fatalf("unmarshal history_chunk payload (%s): %v", c.name, err)
	}
	if p.RoomID != roomID {
		fatalf("history_chunk room_id mismatch (%s): got=%q want=%q", c.name, p.RoomID, roomID)
	}
	if len(p.Messages) != 0 {
		fatalf("expected empty history chunk (%s), got=%d", c.name, len(p.Messages))
	}
	if p.HasMore {
		fatalf("empty chunk claims has_more (%s)", c.name)
	}
}

func mustAssertNoType(parent context.Context, c *smokeClient, forbiddenType string, wait time.Duration) {
	ctx, cancel := context.WithTimeout(parent, wait)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-c.errCh:
			if err == nil {
				fatalf("connection closed unexpectedly (%s)", c.name)
			}
			fatalf("connection closed unexpectedly (%s): %v", c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed unexpectedly (%s)", c.name)
			}
			if env.Type == v1.TypeError {
				var ep v1.ErrorPayload
				_ = json.Unmarshal(env.Payload, &ep)
				fatalf("server error (%s): code=%q msg=%q", c.name, ep.Code, ep.Message)
			}
			if env.Type == forbiddenType {
				fatalf("unexpected %s received (%s)", forbiddenType, c.name)
			}
		}
	}
}

func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration, skipTypes map[string]struct{}) v1.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q (%s): %v", wantType, c.name, ctx.Err())
		case err := <-c.errCh:
			if err == nil {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			fatalf("connection error while waiting for %q (%s): %v", wantType, c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			if env.Type == wantType {
				return env
			}
			if env.Type == v1.TypeError {
				var ep v1.ErrorPayload
				_ = json.Unmarshal(env.Payload, &ep)
				fatalf("server error (%s): code=%q msg=%q", c.name, ep.Code, ep.Message)
			}
			if skipTypes != nil {
				if _, ok := skipTypes[env.Type]; ok {
					continue
				}
			}
			fatalf("unexpected envelope type (%s): got=%q want=%q", c.name, env.Type, wantType)
		}
	}
}

func mustWriteWithTimeout(parent context.Context, conn *websocket.Conn, env v1.Envelope, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		fatalf("marshal envelope: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
