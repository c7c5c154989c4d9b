// Package sqlite is the embedded-SQLite storage layer: schema
// migrations via github.com/rakunlabs/muz, typed CRUD via
// github.com/doug-martin/goqu/v9, primary keys minted with
// github.com/oklog/ulid/v2. One *Store is shared process-wide, guarded
// by SQLite's own single-writer connection limit rather than an
// application-level lock.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// DefaultTablePrefix namespaces every table so a shared database file
// can host sshwarma alongside other schemas.
const DefaultTablePrefix = "sshwarma_"

// Store is the process-wide handle to the embedded database.
type Store struct {
	db   *sql.DB
	goqu *goqu.Database

	prefix string
	tables tableSet

	ulidEntropy *ulidSource
}

type tableSet struct {
	agents         exp.IdentifierExpression
	agentAuth      exp.IdentifierExpression
	agentSessions  exp.IdentifierExpression
	rooms          exp.IdentifierExpression
	roomKV         exp.IdentifierExpression
	buffers        exp.IdentifierExpression
	rows           exp.IdentifierExpression
	tags           exp.IdentifierExpression
	reactions      exp.IdentifierExpression
	links          exp.IdentifierExpression
	scripts        exp.IdentifierExpression
	things         exp.IdentifierExpression
	equipment      exp.IdentifierExpression
	mcpToolCatalog exp.IdentifierExpression
	viewStack      exp.IdentifierExpression
	bufferScroll   exp.IdentifierExpression
}

func newTableSet(prefix string) tableSet {
	t := func(name string) exp.IdentifierExpression { return goqu.T(prefix + name) }
	return tableSet{
		agents:         t("agents"),
		agentAuth:      t("agent_auth"),
		agentSessions:  t("agent_sessions"),
		rooms:          t("rooms"),
		roomKV:         t("room_kv"),
		buffers:        t("buffers"),
		rows:           t("rows"),
		tags:           t("tags"),
		reactions:      t("reactions"),
		links:          t("links"),
		scripts:        t("scripts"),
		things:         t("things"),
		equipment:      t("equipment"),
		mcpToolCatalog: t("mcp_tool_catalog"),
		viewStack:      t("view_stack"),
		bufferScroll:   t("buffer_scroll"),
	}
}

// Open runs migrations against datasource then opens a connection
// pool sized for SQLite's single-writer model.
func Open(ctx context.Context, datasource string) (*Store, error) {
	if datasource == "" {
		return nil, errors.New("sqlite datasource is required")
	}

	prefix := DefaultTablePrefix
	if err := MigrateDB(ctx, datasource, prefix); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	db, err := sql.Open("sqlite", datasource)
	if err != nil {
		return nil, fmt.Errorf("open sqlite connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	slog.Info("connected to sshwarma store", "datasource", datasource)

	return &Store{
		db:          db,
		goqu:        goqu.New("sqlite3", db),
		prefix:      prefix,
		tables:      newTableSet(prefix),
		ulidEntropy: newULIDSource(),
	}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() {
	if s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		slog.Error("close sshwarma store", "error", err)
	}
}

// ulidSource serializes ULID generation through a one-slot channel
// holding a monotonic entropy source over a math/rand.Rand seeded
// once, so ids minted within the same millisecond still sort in
// creation order, and concurrent unsynchronized use of a single
// *rand.Rand is avoided.
type ulidSource struct {
	ch chan *ulid.MonotonicEntropy
}

func newULIDSource() *ulidSource {
	ch := make(chan *ulid.MonotonicEntropy, 1)
	ch <- ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return &ulidSource{ch: ch}
}

func (u *ulidSource) new() string {
	r := <-u.ch
	defer func() { u.ch <- r }()
	return ulid.MustNew(ulid.Timestamp(time.Now()), r).String()
}

func (s *Store) newID() string {
	return s.ulidEntropy.new()
}

func nowMillis() int64 {
	return time.Now().UTC().UnixMilli()
}
