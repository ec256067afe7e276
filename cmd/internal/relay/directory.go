package relay

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Peer is a user the caller has been mutually matched with.
type Peer struct {
	PeerID      string
	DisplayName string
}

// MatchDirectory resolves which other users a given user may message.
// The relay consumes it to populate the peer list a client picks a room
// from; match creation itself is out of scope.
type MatchDirectory interface {
	ListPeers(ctx context.Context, userID string) ([]Peer, error)
}

// PostgresMatchDirectory reads mutual matches via spark.matches joined to
// spark.profiles for display names.
type PostgresMatchDirectory struct {
	pool   *pgxpool.Pool
	schema string
}

// DirectoryOption configures PostgresMatchDirectory behavior.
type DirectoryOption func(*PostgresMatchDirectory) error

// WithDirectorySchema sets the DB schema used by the directory (default: "spark").
func WithDirectorySchema(schema string) DirectoryOption {
	return func(d *PostgresMatchDirectory) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("relay: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("relay: invalid schema identifier")
		}
		d.schema = schema
		return nil
	}
}

// NewPostgresMatchDirectory constructs a directory backed by PostgreSQL.
func NewPostgresMatchDirectory(pool *pgxpool.Pool, opts ...DirectoryOption) (*PostgresMatchDirectory, error) {
	d := &PostgresMatchDirectory{
		pool:   pool,
		schema: "spark",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.pool == nil {
		return nil, errors.New("relay: nil pool")
	}
	return d, nil
}

// ListPeers returns the mutual matches of userID, display-name ordered.
func (d *PostgresMatchDirectory) ListPeers(ctx context.Context, userID string) ([]Peer, error) {
	if d == nil || d.pool == nil {
		return nil, errors.New("relay: nil directory")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches := pgIdent(d.schema, "matches")
	profiles := pgIdent(d.schema, "profiles")

	rows, err := d.pool.Query(ctx,
		`SELECT m.peer_id, p.display_name
		   FROM `+matches+` m
		   JOIN `+profiles+` p ON p.user_id = m.peer_id
		  WHERE m.user_id = $1
		  ORDER BY p.display_name ASC, m.peer_id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Peer
	for rows.Next() {
		var p Peer
		if err := rows.Scan(&p.PeerID, &p.DisplayName); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// StaticMatchDirectory is an in-memory MatchDirectory used in dev and tests.
type StaticMatchDirectory struct {
	mu    sync.RWMutex
	peers map[string][]Peer
}

// NewStaticMatchDirectory constructs an empty static directory.
func NewStaticMatchDirectory() *StaticMatchDirectory {
	return &StaticMatchDirectory{peers: make(map[string][]Peer)}
}

// AddMatch records a mutual match between two users.
func (d *StaticMatchDirectory) AddMatch(a, aName, b, bName string) {
	if d == nil || a == "" || b == "" || a == b {
		return
	}
	d.mu.Lock()
	d.peers[a] = append(d.peers[a], Peer{PeerID: b, DisplayName: bName})
	d.peers[b] = append(d.peers[b], Peer{PeerID: a, DisplayName: aName})
	d.mu.Unlock()
}

// ListPeers returns the recorded matches for userID.
func (d *StaticMatchDirectory) ListPeers(_ context.Context, userID string) ([]Peer, error) {
	if d == nil {
		return nil, nil
	}
	d.mu.RLock()
	src := d.peers[userID]
	out := append([]Peer(nil), src...)
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName == out[j].DisplayName {
			return out[i].PeerID < out[j].PeerID
		}
		return out[i].DisplayName < out[j].DisplayName
	})
	return out, nil
}
