// Package postgres implements store.Repository on PostgreSQL through a pgx
// connection pool, for deployments that run several API processes against
// one database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abhisek/fractiz/internal/store"
)

const migration = `
CREATE TABLE IF NOT EXISTS mastery_states (
	student_id    TEXT PRIMARY KEY,
	probabilities JSONB NOT NULL,
	last_ordinal  BIGINT NOT NULL DEFAULT 0,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS interactions (
	student_id         TEXT NOT NULL,
	ordinal            BIGINT NOT NULL,
	kc                 TEXT NOT NULL,
	correct            BOOLEAN NOT NULL,
	probability_before DOUBLE PRECISION NOT NULL,
	probability_after  DOUBLE PRECISION NOT NULL,
	timestamp          TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (student_id, ordinal)
);

CREATE INDEX IF NOT EXISTS interactions_kc ON interactions (student_id, kc);
`

// Config holds pool settings applied on top of the connection URL.
type Config struct {
	URL               string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// DefaultConfig returns pool defaults for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		MaxConns:          10,
		MinConns:          2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
	}
}

// Store is a store.Repository backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Repository = (*Store)(nil)

// Open connects, verifies the connection, and applies the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, migration); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) LoadState(ctx context.Context, studentID string) (*store.State, error) {
	var (
		raw         []byte
		lastOrdinal int64
		updatedAt   time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT probabilities, last_ordinal, updated_at FROM mastery_states WHERE student_id = $1`,
		studentID,
	).Scan(&raw, &lastOrdinal, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Fail("load state", err)
	}

	st, err := store.DecodeState(studentID, raw, lastOrdinal)
	if err != nil {
		return nil, err
	}
	st.UpdatedAt = updatedAt
	return st, nil
}

func (s *Store) SaveState(ctx context.Context, studentID string, state *store.State) error {
	return store.Fail("save state", saveState(ctx, s.pool, studentID, state))
}

func (s *Store) AppendInteraction(ctx context.Context, studentID string, rec store.Interaction) error {
	return store.Fail("append interaction", appendInteraction(ctx, s.pool, studentID, rec))
}

func (s *Store) RecordUpdate(ctx context.Context, studentID string, state *store.State, rec store.Interaction) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if err := appendInteraction(ctx, tx, studentID, rec); err != nil {
			return err
		}
		return saveState(ctx, tx, studentID, state)
	})
	return store.Fail("record update", err)
}

func (s *Store) LoadInteractions(ctx context.Context, studentID string) ([]store.Interaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ordinal, kc, correct, probability_before, probability_after, timestamp
		FROM interactions
		WHERE student_id = $1
		ORDER BY ordinal ASC`,
		studentID,
	)
	if err != nil {
		return nil, store.Fail("load interactions", err)
	}
	defer rows.Close()

	var out []store.Interaction
	for rows.Next() {
		rec := store.Interaction{StudentID: studentID}
		if err := rows.Scan(&rec.Ordinal, &rec.KC, &rec.Correct, &rec.ProbabilityBefore, &rec.ProbabilityAfter, &rec.Timestamp); err != nil {
			return nil, store.Fail("scan interaction", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Fail("load interactions", err)
	}
	return out, nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func saveState(ctx context.Context, q querier, studentID string, state *store.State) error {
	raw, err := store.EncodeProbabilities(state.Probabilities)
	if err != nil {
		return fmt.Errorf("encode probabilities: %w", err)
	}
	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err = q.Exec(ctx, `
		INSERT INTO mastery_states (student_id, probabilities, last_ordinal, updated_at)
		VALUES ($1, $2::jsonb, $3, $4)
		ON CONFLICT (student_id) DO UPDATE SET
			probabilities = EXCLUDED.probabilities,
			last_ordinal  = EXCLUDED.last_ordinal,
			updated_at    = EXCLUDED.updated_at`,
		studentID, string(raw), state.LastOrdinal, updatedAt.UTC(),
	)
	return err
}

func appendInteraction(ctx context.Context, q querier, studentID string, rec store.Interaction) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO interactions (student_id, ordinal, kc, correct, probability_before, probability_after, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		studentID, rec.Ordinal, rec.KC, rec.Correct, rec.ProbabilityBefore, rec.ProbabilityAfter, ts.UTC(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: student %q ordinal %d", store.ErrDuplicateOrdinal, studentID, rec.Ordinal)
	}
	return err
}

// isUniqueViolation checks if the error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
