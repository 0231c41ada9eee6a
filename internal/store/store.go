package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const (
	tableStates       = "mastery_states"
	tableInteractions = "interactions"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS mastery_states (
		student_id    TEXT PRIMARY KEY,
		probabilities TEXT NOT NULL,
		last_ordinal  INTEGER NOT NULL DEFAULT 0,
		updated_at    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS interactions (
		student_id         TEXT NOT NULL,
		ordinal            INTEGER NOT NULL,
		kc                 TEXT NOT NULL,
		correct            INTEGER NOT NULL,
		probability_before REAL NOT NULL,
		probability_after  REAL NOT NULL,
		timestamp          TEXT NOT NULL,
		PRIMARY KEY (student_id, ordinal)
	)`,
	`CREATE INDEX IF NOT EXISTS interactions_kc ON interactions (student_id, kc)`,
}

// Store is a Repository backed by a SQLite database.
type Store struct {
	db      *sql.DB
	builder *entsql.DialectBuilder
}

// pragmas are set on every pooled connection through the DSN; busy_timeout
// and synchronous are per-connection settings.
var pragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(FULL)",
	"foreign_keys(1)",
}

// Open creates a new Store connected to the SQLite database file at path
// and creates the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &Store{db: db, builder: entsql.Dialect(dialect.SQLite)}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LoadState(ctx context.Context, studentID string) (*State, error) {
	query, args := s.builder.Select("probabilities", "last_ordinal", "updated_at").
		From(s.builder.Table(tableStates)).
		Where(entsql.EQ("student_id", studentID)).
		Query()

	var (
		raw         sql.NullString
		lastOrdinal int64
		updatedAt   string
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&raw, &lastOrdinal, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, Fail("load state", err)
	}
	if !raw.Valid {
		return nil, &CorruptStateError{StudentID: studentID, Reason: "missing probabilities"}
	}

	st, err := DecodeState(studentID, []byte(raw.String), lastOrdinal)
	if err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		st.UpdatedAt = t
	}
	return st, nil
}

func (s *Store) SaveState(ctx context.Context, studentID string, state *State) error {
	return Fail("save state", s.saveState(ctx, s.db, studentID, state))
}

func (s *Store) AppendInteraction(ctx context.Context, studentID string, rec Interaction) error {
	return Fail("append interaction", s.appendInteraction(ctx, s.db, studentID, rec))
}

func (s *Store) RecordUpdate(ctx context.Context, studentID string, state *State, rec Interaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Fail("begin tx", err)
	}
	if err := s.appendInteraction(ctx, tx, studentID, rec); err != nil {
		tx.Rollback()
		return Fail("append interaction", err)
	}
	if err := s.saveState(ctx, tx, studentID, state); err != nil {
		tx.Rollback()
		return Fail("save state", err)
	}
	if err := tx.Commit(); err != nil {
		return Fail("commit", err)
	}
	return nil
}

func (s *Store) LoadInteractions(ctx context.Context, studentID string) ([]Interaction, error) {
	query, args := s.builder.Select(
		"ordinal", "kc", "correct", "probability_before", "probability_after", "timestamp",
	).
		From(s.builder.Table(tableInteractions)).
		Where(entsql.EQ("student_id", studentID)).
		OrderBy(entsql.Asc("ordinal")).
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Fail("load interactions", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var (
			rec     Interaction
			correct int
			ts      string
		)
		if err := rows.Scan(&rec.Ordinal, &rec.KC, &correct, &rec.ProbabilityBefore, &rec.ProbabilityAfter, &ts); err != nil {
			return nil, Fail("scan interaction", err)
		}
		rec.StudentID = studentID
		rec.Correct = correct != 0
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, Fail("load interactions", err)
	}
	return out, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) saveState(ctx context.Context, ex execer, studentID string, state *State) error {
	raw, err := EncodeProbabilities(state.Probabilities)
	if err != nil {
		return fmt.Errorf("encode probabilities: %w", err)
	}
	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query, args := s.builder.Insert(tableStates).
		Columns("student_id", "probabilities", "last_ordinal", "updated_at").
		Values(studentID, string(raw), state.LastOrdinal, updatedAt.UTC().Format(time.RFC3339Nano)).
		OnConflict(
			entsql.ConflictColumns("student_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()

	_, err = ex.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) appendInteraction(ctx context.Context, ex execer, studentID string, rec Interaction) error {
	correct := 0
	if rec.Correct {
		correct = 1
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	query, args := s.builder.Insert(tableInteractions).
		Columns("student_id", "ordinal", "kc", "correct", "probability_before", "probability_after", "timestamp").
		Values(studentID, rec.Ordinal, rec.KC, correct, rec.ProbabilityBefore, rec.ProbabilityAfter, ts.UTC().Format(time.RFC3339Nano)).
		Query()

	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: student %q ordinal %d", ErrDuplicateOrdinal, studentID, rec.Ordinal)
		}
		return err
	}
	return nil
}

// isConstraintViolation detects SQLite UNIQUE / PRIMARY KEY failures.
func isConstraintViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}

// DSN builds a modernc.org/sqlite data source name for path that applies
// the store pragmas to each new connection.
func DSN(path string) string {
	params := make([]string, len(pragmas))
	for i, p := range pragmas {
		params[i] = "_pragma=" + p
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + sep + strings.Join(params, "&")
}

// DefaultDBPath resolves the database file path in priority order:
// 1. FRACTIZ_DB environment variable
// 2. $XDG_DATA_HOME/fractiz/fractiz.db
// 3. ~/.local/share/fractiz/fractiz.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("FRACTIZ_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "fractiz", "fractiz.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
