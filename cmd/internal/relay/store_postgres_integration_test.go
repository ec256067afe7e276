package relay

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests are gated on SPARK_TEST_DATABASE_URL. They create a
// throwaway schema per test and drop it on cleanup.

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("SPARK_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("SPARK_TEST_DATABASE_URL not set; skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	return pool
}

func mustCreateTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	schema := "spark_test_" + NewRandomHex(6)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgIdentSchema(schema)); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return schema
}

func mustDropSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgIdentSchema(schema)+` CASCADE`); err != nil {
		t.Fatalf("drop schema: %v", err)
	}
}

func pgIdentSchema(schema string) string {
	return pgx.Identifier{schema}.Sanitize()
}

func mustApplyMessagesSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	messages := pgIdent(schema, "messages")
	if _, err := pool.Exec(ctx, `
		CREATE TABLE `+messages+` (
			id         TEXT PRIMARY KEY,
			room_id    TEXT NOT NULL,
			sender_id  TEXT NOT NULL,
			text       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	); err != nil {
		t.Fatalf("create messages table: %v", err)
	}
	if _, err := pool.Exec(ctx,
		`CREATE INDEX ON `+messages+` (room_id, created_at, id)`,
	); err != nil {
		t.Fatalf("create messages index: %v", err)
	}
}

func mustApplyDirectorySchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	matches := pgIdent(schema, "matches")
	profiles := pgIdent(schema, "profiles")

	if _, err := pool.Exec(ctx, `
		CREATE TABLE `+profiles+` (
			user_id      TEXT PRIMARY KEY,
			display_name TEXT NOT NULL
		)`,
	); err != nil {
		t.Fatalf("create profiles table: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		CREATE TABLE `+matches+` (
			user_id TEXT NOT NULL,
			peer_id TEXT NOT NULL,
			PRIMARY KEY (user_id, peer_id)
		)`,
	); err != nil {
		t.Fatalf("create matches table: %v", err)
	}
}

func TestPostgresStore_AppendThenHistory(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyMessagesSchema(t, pool, schema)

	store, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var lastID string
	for i := 0; i < 3; i++ {
		msg, err := store.Append(ctx, AppendInput{
			RoomID:   "uuid-A--uuid-B",
			SenderID: "uuid-A",
			Text:     fmt.Sprintf("m%d", i),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if msg.ID == "" || msg.CreatedAt.IsZero() {
			t.Fatalf("append %d: missing assigned identity: %+v", i, msg)
		}
		if msg.ID <= lastID {
			t.Fatalf("append %d: ids not ascending: %q <= %q", i, msg.ID, lastID)
		}
		lastID = msg.ID
	}

	// Read-your-writes: the appender's next query sees its own messages.
	out, err := store.History(ctx, HistoryInput{RoomID: "uuid-A--uuid-B"})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(out.Messages) != 3 {
		t.Fatalf("len=%d want=3", len(out.Messages))
	}
	for i, m := range out.Messages {
		if want := fmt.Sprintf("m%d", i); m.Text != want {
			t.Fatalf("messages[%d].Text=%q want=%q", i, m.Text, want)
		}
	}
}

func TestPostgresStore_HistoryPagingByAfterID(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyMessagesSchema(t, pool, schema)

	store, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	for i := 0; i < 5; i++ {
		if _, err := store.Append(ctx, AppendInput{
			RoomID:   "uuid-A--uuid-B",
			SenderID: "uuid-B",
			Text:     fmt.Sprintf("m%d", i),
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	first, err := store.History(ctx, HistoryInput{RoomID: "uuid-A--uuid-B", Limit: 2})
	if err != nil {
		t.Fatalf("history page 1: %v", err)
	}
	if len(first.Messages) != 2 || !first.HasMore {
		t.Fatalf("page 1: len=%d has_more=%v", len(first.Messages), first.HasMore)
	}

	after := first.Messages[1].ID
	rest, err := store.History(ctx, HistoryInput{RoomID: "uuid-A--uuid-B", AfterID: &after, Limit: 10})
	if err != nil {
		t.Fatalf("history page 2: %v", err)
	}
	if len(rest.Messages) != 3 || rest.HasMore {
		t.Fatalf("page 2: len=%d has_more=%v", len(rest.Messages), rest.HasMore)
	}
	if rest.Messages[0].Text != "m2" {
		t.Fatalf("page 2 starts at %q want m2", rest.Messages[0].Text)
	}
}

func TestPostgresMatchDirectory_ListPeers(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyDirectorySchema(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	profiles := pgIdent(schema, "profiles")
	matches := pgIdent(schema, "matches")
	for _, row := range [][2]string{
		{"uuid-A", "Alex"},
		{"uuid-B", "Blair"},
		{"uuid-C", "Casey"},
	} {
		if _, err := pool.Exec(ctx,
			`INSERT INTO `+profiles+` (user_id, display_name) VALUES ($1, $2)`,
			row[0], row[1],
		); err != nil {
			t.Fatalf("insert profile: %v", err)
		}
	}
	for _, row := range [][2]string{
		{"uuid-A", "uuid-B"},
		{"uuid-A", "uuid-C"},
		{"uuid-B", "uuid-A"},
	} {
		if _, err := pool.Exec(ctx,
			`INSERT INTO `+matches+` (user_id, peer_id) VALUES ($1, $2)`,
			row[0], row[1],
		); err != nil {
			t.Fatalf("insert match: %v", err)
		}
	}

	dir, err := NewPostgresMatchDirectory(pool, WithDirectorySchema(schema))
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}

	peers, err := dir.ListPeers(ctx, "uuid-A")
	if err != nil {
		t.Fatalf("list peers: %v", err)
	}
	if len(peers) != 2 {
		t.Fatalf("len=%d want=2 (%+v)", len(peers), peers)
	}
	if peers[0].DisplayName != "Blair" || peers[1].DisplayName != "Casey" {
		t.Fatalf("peers out of order: %+v", peers)
	}
}
