package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	v1 "spark/shared/contracts/chat/v1"

	"github.com/coder/websocket"
)

const (
	wsSubprotocolV1 = "spark.chat.v1"

	wsDefaultSendQueueSize = 256
	wsMinSendQueueSize     = 32

	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 2 * time.Minute
	wsCloseGrace          = 1 * time.Second

	wsMaxPingFailures = 3

	// Security defaults:
	// - Origin is required by default.
	// - Only localhost is allowed by default (secure-by-default for dev).
	wsDefaultOriginRequired = true
	wsDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"
)

// WSGateway is the WebSocket entrypoint for Spark realtime.
//
// It enforces origin policy, subprotocol selection, rate limits, heartbeats,
// and routes validated envelopes to the Presence registry, Hub, and
// HistoryStore. Persistence always happens before dispatch so a peer never
// receives a live relay of a message absent from the durable log.
type WSGateway struct {
	log      *slog.Logger
	presence *Presence
	hub      *Hub
	store    HistoryStore

	// directory is the authorization boundary for room membership: a user
	// may only join rooms whose pair they belong to, and (when enforced)
	// only with a peer they are matched with. Nil disables the match check;
	// the participant check always applies.
	directory    MatchDirectory
	requireMatch bool

	devInsecure    bool
	originRequired bool
	allowedOrigins []string

	// Derived for websocket.Accept origin checks.
	// Accept() authorizes same-host origins by default, but for cross-origin it requires OriginPatterns.
	originPatterns []string

	writeTimeout    time.Duration
	readIdleTimeout time.Duration
	sendQueueSize   int

	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration

	rateEvents int
	rateWindow time.Duration
}

// NewWSGateway constructs a gateway with secure defaults.
// When presence/hub/store are nil, it falls back to in-memory implementations for dev.
// directory may be nil (dev mode without a match system); joins are then
// gated only by the room-participant check.
func NewWSGateway(log *slog.Logger, presence *Presence, hub *Hub, store HistoryStore, directory MatchDirectory) *WSGateway {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if presence == nil {
		presence = NewPresence(log)
	}
	if hub == nil {
		hub = NewHub(log)
	}
	if store == nil {
		store = NewMemoryStore()
	}

	g := &WSGateway{log: log, presence: presence, hub: hub, store: store, directory: directory}

	g.requireMatch = envBoolWS("SPARK_WS_REQUIRE_MATCH", true)

	// NOTE: InsecureSkipVerify is a dev-only knob (TLS verification). It is not an origin policy.
	g.devInsecure = envBoolWS("SPARK_WS_DEV_INSECURE", false)

	g.originRequired = envBoolWS("SPARK_WS_ORIGIN_REQUIRED", wsDefaultOriginRequired)
	g.allowedOrigins = envCSVWS("SPARK_WS_ALLOWED_ORIGINS", wsDefaultAllowedOrigins)

	// websocket.Accept enforces its own origin policy:
	// - same-host is ok
	// - cross-origin requires OriginPatterns (host patterns)
	// We derive these patterns from allowed origins so the two layers agree.
	g.originPatterns = deriveOriginPatternsFromAllowedOrigins(g.allowedOrigins)

	g.writeTimeout = envDurationWS("SPARK_WS_WRITE_TIMEOUT", wsDefaultWriteTimeout)
	g.readIdleTimeout = envDurationWS("SPARK_WS_READ_IDLE_TIMEOUT", wsDefaultReadIdle)

	g.sendQueueSize = envIntWS("SPARK_WS_SEND_QUEUE", wsDefaultSendQueueSize)
	if g.sendQueueSize < wsMinSendQueueSize {
		g.sendQueueSize = wsMinSendQueueSize
	}

	g.heartbeatEvery = envDurationWS("SPARK_WS_HEARTBEAT_INTERVAL", heartbeatInterval)
	g.heartbeatTimeout = envDurationWS("SPARK_WS_HEARTBEAT_TIMEOUT", heartbeatTimeout)

	g.rateEvents = envIntWS("SPARK_WS_RATE_EVENTS", rateLimitEvents)
	g.rateWindow = envDurationWS("SPARK_WS_RATE_WINDOW", rateLimitWindow)

	return g
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades an HTTP request to a WebSocket session and runs the realtime loop.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{wsSubprotocolV1},

		// Authorize allowed origin hosts (e.g. localhost) for cross-origin requests.
		OriginPatterns: g.originPatterns,

		// Dev-only escape hatch.
		InsecureSkipVerify: g.devInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != wsSubprotocolV1 {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", wsSubprotocolV1)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	sessionID, err := NewSessionID(time.Now().UTC())
	if err != nil {
		g.log.Error("ws.session_id.fail", "err", err)
		_ = conn.Close(websocket.StatusInternalError, "session id")
		return
	}
	client := NewClient(sessionID, g.sendQueueSize)

	wsConnections.Inc()
	defer wsConnections.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var (
		closeOnce sync.Once
		joined    *Room
	)

	// shutdown is idempotent. It does NOT close client.Send.
	// Dispatch safety: client.Send remains open and membership/presence removal
	// happens before client.Close.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			// joined is owned by the read loop and not touched here; it exits
			// on the next read once the conn is closed.
			g.hub.LeaveAll(sessionID)

			// Conditional removal: a stale disconnect must not delete a newer
			// registration for the same user.
			g.presence.Unregister(client)

			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	rl := NewRateLimiter(g.rateEvents, g.rateWindow)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				// The client handle can be closed externally (e.g. superseded
				// by a newer registration); tear the connection down too.
				shutdown(websocket.StatusGoingAway, "session superseded")
				return
			case env := <-client.Send:
				if err := writeEnvelope(ctx, conn, env, g.writeTimeout); err != nil {
					g.log.Info("ws.write.fail", "session_id", sessionID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.heartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.heartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("ws.ping.fail", "session_id", sessionID, "failures", failures, "err", err)
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

readLoop:
	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.readIdleTimeout)
		env, err := readEnvelope(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
				break readLoop
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
				break readLoop
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
				break readLoop
			case readErrBadJSON:
				g.trySendError(ctx, client, "bad_json", "invalid JSON")
				continue readLoop
			default:
				g.log.Info("ws.read.fail", "session_id", sessionID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
				break readLoop
			}
		}

		now := time.Now().UTC()
		if !rl.Allow(now) {
			g.trySendError(ctx, client, "rate_limited", "too many events")
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		if err := env.Validate(); err != nil {
			// Malformed events are discarded; the connection stays up.
			g.trySendError(ctx, client, "bad_envelope", err.Error())
			continue readLoop
		}

		switch env.Type {
		case v1.TypeRegisterUser:
			if err := g.onRegister(ctx, client, env); err != nil {
				g.trySendError(ctx, client, "register_failed", err.Error())
				continue readLoop
			}

		case v1.TypeRoomJoin:
			if client.UserID() == "" {
				g.trySendError(ctx, client, "not_registered", "register first")
				continue readLoop
			}
			room, err := g.onJoin(ctx, client, env)
			if err != nil {
				g.trySendError(ctx, client, "join_failed", err.Error())
				continue readLoop
			}

			// Leave the previous room before switching so the connection stops
			// receiving relay traffic for rooms it no longer displays.
			if joined != nil && joined.ID != room.ID {
				joined.Leave(sessionID)
			}
			joined = room

		case v1.TypeRoomLeave:
			left := g.onLeave(client, env)
			if joined != nil && left == joined.ID {
				joined = nil
			}

		case v1.TypeMessageSend:
			if client.UserID() == "" {
				g.trySendError(ctx, client, "not_registered", "register first")
				continue readLoop
			}
			if joined == nil {
				g.trySendError(ctx, client, "not_joined", "join first")
				continue readLoop
			}
			if err := g.onMessageSend(ctx, client, joined, env, now); err != nil {
				g.trySendError(ctx, client, sendErrCode(err), err.Error())
				continue readLoop
			}

		case v1.TypeHistoryFetch:
			if joined == nil {
				g.trySendError(ctx, client, "not_joined", "join first")
				continue readLoop
			}
			if err := g.onHistoryFetch(ctx, client, joined, env); err != nil {
				g.trySendError(ctx, client, "history_failed", err.Error())
				continue readLoop
			}

		default:
			g.trySendError(ctx, client, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
}

// ---- handlers ----

func (g *WSGateway) onRegister(ctx context.Context, client *Client, env v1.Envelope) error {
	var p v1.RegisterUserPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	userID := strings.TrimSpace(p.UserID)
	if userID == "" {
		return errors.New("missing user_id")
	}
	if strings.Contains(userID, RoomDelimiter) {
		return fmt.Errorf("user_id contains reserved delimiter %q", RoomDelimiter)
	}

	// Re-registering under a different identity releases the old entry first.
	if prev := client.UserID(); prev != "" && prev != userID {
		g.presence.Unregister(client)
	}
	client.BindUser(userID)

	// Last-writer-wins. The registry never closes the superseded connection
	// itself; we close it here so the orphaned session is not left dangling.
	if superseded := g.presence.Register(userID, client); superseded != nil {
		superseded.Close()
	}

	ackPayload, _ := json.Marshal(v1.RegisterAckPayload{
		UserID:    userID,
		SessionID: client.SessionID,
	})
	ack := newEnvelope(v1.TypeRegisterAck, ackPayload, time.Now().UTC())

	if !g.enqueue(ctx, client, ack) {
		return errors.New("backpressure: register ack")
	}
	return nil
}

func (g *WSGateway) onJoin(ctx context.Context, client *Client, env v1.Envelope) (*Room, error) {
	var p v1.RoomJoinPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}

	roomID := strings.TrimSpace(p.RoomID)
	if roomID == "" {
		return nil, errors.New("missing room_id")
	}

	if err := g.authorizeJoin(ctx, client.UserID(), roomID); err != nil {
		g.log.Info("ws.join.denied", "session_id", client.SessionID, "user_id", client.UserID(), "room_id", roomID, "err", err)
		return nil, err
	}

	room := g.hub.GetOrCreateRoom(roomID)
	room.Join(client)

	echoPayload, _ := json.Marshal(v1.RoomJoinPayload{RoomID: room.ID})
	echo := newEnvelope(v1.TypeRoomJoin, echoPayload, time.Now().UTC())

	if !g.enqueue(ctx, client, echo) {
		room.Leave(client.SessionID)
		return nil, errors.New("backpressure: join echo")
	}

	return room, nil
}

// authorizeJoin is the membership ACL for rooms. The room id encodes its two
// participants, so the user must be one of them; when a directory is wired
// and match enforcement is on, the other participant must also be a mutual
// match of the user. Fails closed on directory errors.
func (g *WSGateway) authorizeJoin(ctx context.Context, userID, roomID string) error {
	a, b, err := RoomParticipants(roomID)
	if err != nil {
		return err
	}
	if userID != a && userID != b {
		return errors.New("not a member of room_id")
	}

	if g.directory == nil || !g.requireMatch {
		return nil
	}

	peerID := a
	if userID == a {
		peerID = b
	}

	peers, err := g.directory.ListPeers(ctx, userID)
	if err != nil {
		return fmt.Errorf("match lookup: %w", err)
	}
	for _, p := range peers {
		if p.PeerID == peerID {
			return nil
		}
	}
	return errors.New("not a member of room_id")
}

// onLeave returns the room id that was left ("" when the payload was invalid).
func (g *WSGateway) onLeave(client *Client, env v1.Envelope) string {
	var p v1.RoomLeavePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return ""
	}

	roomID := strings.TrimSpace(p.RoomID)
	if roomID == "" {
		return ""
	}

	// Leaving a room not joined is a no-op inside Room.Leave.
	g.hub.GetOrCreateRoom(roomID).Leave(client.SessionID)
	return roomID
}

// errPersist marks append failures so the sender gets a persistence-specific
// error code and can restore its composer text.
type errPersist struct{ err error }

func (e errPersist) Error() string { return e.err.Error() }
func (e errPersist) Unwrap() error { return e.err }

func sendErrCode(err error) string {
	var pe errPersist
	if errors.As(err, &pe) {
		return "persist_failed"
	}
	return "send_failed"
}

func (g *WSGateway) onMessageSend(ctx context.Context, client *Client, room *Room, env v1.Envelope, now time.Time) error {
	var p v1.MessageSendPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	if strings.TrimSpace(p.RoomID) == "" || p.RoomID != room.ID {
		return errors.New("invalid room_id")
	}
	if strings.TrimSpace(p.SenderID) != client.UserID() {
		return errors.New("sender_id does not match registered user")
	}

	text := strings.TrimSpace(p.Text)
	if text == "" {
		return errors.New("empty text")
	}
	if len([]rune(text)) > maxMessageChars {
		return fmt.Errorf("message too long: max=%d chars", maxMessageChars)
	}

	// Persist first. Peers must never observe a relayed message that is not
	// already in the durable log.
	stored, err := g.store.Append(ctx, AppendInput{
		RoomID:   p.RoomID,
		SenderID: p.SenderID,
		Text:     text,
		Now:      now,
	})
	if err != nil {
		persistFailures.Inc()
		return errPersist{fmt.Errorf("store append: %w", err)}
	}
	messagesPersisted.Inc()

	ackPayload, _ := json.Marshal(v1.MessageAckPayload{
		RoomID:    stored.RoomID,
		TempID:    p.TempID,
		MessageID: stored.ID,
		CreatedAt: stored.CreatedAt,
	})
	ack := newEnvelope(v1.TypeMessageAck, ackPayload, now)

	if !g.enqueue(ctx, client, ack) {
		return errors.New("backpressure: ack")
	}

	newPayload, _ := json.Marshal(v1.MessageNewPayload{
		RoomID:    stored.RoomID,
		SenderID:  stored.SenderID,
		Text:      stored.Text,
		MessageID: stored.ID,
		CreatedAt: stored.CreatedAt,
	})
	relayEnv := newEnvelope(v1.TypeMessageNew, newPayload, now)
	room.Dispatch(client.SessionID, relayEnv)
	return nil
}

func (g *WSGateway) onHistoryFetch(ctx context.Context, client *Client, room *Room, env v1.Envelope) error {
	var p v1.HistoryFetchPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	roomID := strings.TrimSpace(p.RoomID)
	if roomID == "" {
		return errors.New("missing room_id")
	}
	if roomID != room.ID {
		return errors.New("not a member of room_id")
	}

	limit := p.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	out, err := g.store.History(ctx, HistoryInput{
		RoomID:  roomID,
		AfterID: p.AfterID,
		Limit:   limit,
	})
	if err != nil {
		return err
	}

	msgs := make([]v1.MessageNewPayload, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, v1.MessageNewPayload{
			RoomID:    m.RoomID,
			SenderID:  m.SenderID,
			Text:      m.Text,
			MessageID: m.ID,
			CreatedAt: m.CreatedAt,
		})
	}

	chunkPayload, _ := json.Marshal(v1.HistoryChunkPayload{
		RoomID:   roomID,
		Messages: msgs,
		HasMore:  out.HasMore,
	})
	chunk := newEnvelope(v1.TypeHistoryChunk, chunkPayload, time.Now().UTC())

	if !g.enqueue(ctx, client, chunk) {
		return errors.New("backpressure: history chunk")
	}
	return nil
}

// ---- send helpers ----

func (g *WSGateway) trySendError(ctx context.Context, client *Client, code, msg string) {
	p, _ := json.Marshal(v1.ErrorPayload{Code: code, Message: msg})
	env := newEnvelope(v1.TypeError, p, time.Now().UTC())
	_ = g.enqueue(ctx, client, env)
}

func (g *WSGateway) enqueue(ctx context.Context, client *Client, env v1.Envelope) bool {
	select {
	case <-ctx.Done():
		return false
	case <-client.Done():
		return false
	case client.Send <- env:
		return true
	default:
		return false
	}
}

// ---- envelope IO ----

func newEnvelope(typ string, payload json.RawMessage, ts time.Time) v1.Envelope {
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      NewRandomHex(10),
		TS:      ts,
		Payload: payload,
	}
}

func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, err
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}

	// JSON decode errors are typically returned by json.Unmarshal, not conn.Read.
	// This fallback exists for robustness when error strings are propagated.
	s := err.Error()
	if strings.Contains(s, "unexpected end of JSON input") || strings.Contains(s, "invalid character") {
		return readErrBadJSON
	}
	return readErrUnknown
}

// ---- origin policy ----

func (g *WSGateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.originRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.allowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range g.allowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			// Strongly discouraged, but honored if explicitly configured.
			return nil
		}

		// Full origin match (scheme + host + optional port).
		if origin == a {
			return nil
		}

		// Host match fallback (ignores port/scheme).
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}

	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	// URL form.
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	// host[:port] form.
	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

func deriveOriginPatternsFromAllowedOrigins(allowed []string) []string {
	// websocket.Accept matches OriginPatterns against the origin host using filepath.Match patterns.
	// We keep this strict: only hosts extracted from allowlist are accepted.
	seen := make(map[string]struct{}, len(allowed))

	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" || h == "*" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}

	// Stable in-file sort (avoid importing sort just for this).
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}

	return out
}

// ---- env helpers ----

func envBoolWS(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envIntWS(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDurationWS(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envCSVWS(key string, def string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
