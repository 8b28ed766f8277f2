package journal

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/paths"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Default and maximum number of events returned by List.
const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

// Outcome is the result of a recorded operation.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeError Outcome = "error"
)

// Event is one recorded operation.
type Event struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	Op       string    `json:"op"`
	Entry    string    `json:"entry,omitempty"`
	Snapshot string    `json:"snapshot,omitempty"`
	Outcome  Outcome   `json:"outcome"`
	Message  string    `json:"message,omitempty"`
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Entry string
	Op    string
	Since time.Time

	// Limit caps the result; 0 means DefaultLimit.
	Limit int
}

// Journal is an open operation journal. It is safe for concurrent use.
type Journal struct {
	db    *sql.DB
	clock clock.Clock

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Option configures a Journal.
type Option func(*Journal)

// WithClock sets the clock used to stamp events.
func WithClock(c clock.Clock) Option {
	return func(j *Journal) {
		j.clock = c
	}
}

// dsn builds a file: URI for path, escaping characters the driver would
// read as the start of the query. Pragmas in the query apply to every
// pooled connection.
func dsn(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{
		Scheme:   "file",
		Path:     p,
		RawQuery: "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
	}
	return u.String()
}

// Open opens or creates the journal database at path.
func Open(path string, opts ...Option) (*Journal, error) {
	if err := paths.EnsureDir(filepath.Dir(path), paths.DefaultDirPerm); err != nil {
		return nil, errors.IO(err, "creating journal directory")
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, errors.IO(err, "opening journal")
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Best-effort: the file exists once the schema is in place
	_ = os.Chmod(path, 0o600)

	j := &Journal{
		db:      db,
		clock:   clock.WallClock,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stamps ev with an id and time and appends it.
func (j *Journal) Record(ctx context.Context, ev Event) (*Event, error) {
	if ev.Op == "" {
		return nil, errors.New("journal event has no operation")
	}
	if ev.Outcome == "" {
		ev.Outcome = OutcomeOK
	}

	now := j.clock.Now().UTC()
	j.mu.Lock()
	id, err := ulid.New(ulid.Timestamp(now), j.entropy)
	j.mu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "generating event id")
	}
	ev.ID = id.String()
	ev.Time = now.Truncate(time.Millisecond)

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO events (id, at, op, entry, snapshot, outcome, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.Time.UnixMilli(), ev.Op, ev.Entry, ev.Snapshot, string(ev.Outcome), ev.Message)
	if err != nil {
		return nil, errors.IO(err, "recording event")
	}
	return &ev, nil
}

// List returns matching events, newest first.
func (j *Journal) List(ctx context.Context, f Filter) ([]Event, error) {
	var (
		where []string
		args  []any
	)
	if f.Entry != "" {
		where = append(where, "entry = ?")
		args = append(args, f.Entry)
	}
	if f.Op != "" {
		where = append(where, "op = ?")
		args = append(args, f.Op)
	}
	if !f.Since.IsZero() {
		where = append(where, "at >= ?")
		args = append(args, f.Since.UnixMilli())
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	query := "SELECT id, at, op, entry, snapshot, outcome, message FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.IO(err, "querying journal")
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			ev      Event
			at      int64
			outcome string
		)
		if err := rows.Scan(&ev.ID, &at, &ev.Op, &ev.Entry, &ev.Snapshot, &outcome, &ev.Message); err != nil {
			return nil, errors.IO(err, "reading journal row")
		}
		ev.Time = time.UnixMilli(at).UTC()
		ev.Outcome = Outcome(outcome)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.IO(err, "reading journal")
	}
	return events, nil
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: initial schema
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS events (
		  id       TEXT PRIMARY KEY,
		  at       INTEGER NOT NULL,
		  op       TEXT NOT NULL,
		  entry    TEXT NOT NULL DEFAULT '',
		  snapshot TEXT NOT NULL DEFAULT '',
		  outcome  TEXT NOT NULL,
		  message  TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_events_entry ON events(entry, id DESC);
		CREATE INDEX IF NOT EXISTS idx_events_op ON events(op, id DESC);
		`
		if _, err := db.Exec(schema); err != nil {
			return errors.IO(err, "journal migration 1")
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&mode); err != nil {
		return errors.IO(err, "verifying journal mode")
	}
	if mode != "wal" {
		return errors.Newf("expected WAL mode, got %s", mode)
	}
	return nil
}

// GetUserVersion returns the schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, errors.IO(err, "reading user_version")
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return errors.IO(err, "setting user_version")
	}
	return nil
}
