// Package postgres provides a Postgres-backed baseline store for deployments
// where several monitor instances share state.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PrabhuV2003/Website-Monitoring/internal/monitor"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for baseline rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store reads and writes baseline rows in Postgres. The upsert keyed on
// (site, path) preserves the at-most-one-baseline-per-page invariant.
type Store struct {
	pool  pgxPool
	table string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("baseline.postgres.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "baselines"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool pgxPool, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "baselines"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the baseline table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		site TEXT NOT NULL,
		path TEXT NOT NULL,
		hash TEXT NOT NULL,
		computed_at TIMESTAMPTZ NOT NULL,
		last_checked TIMESTAMPTZ NOT NULL,
		last_changed TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (site, path)
	)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure baseline schema: %w", err)
	}
	return nil
}

// Get returns the baseline row for (site, path).
func (s *Store) Get(ctx context.Context, site, path string) (monitor.Baseline, bool, error) {
	query := fmt.Sprintf(
		`SELECT hash, computed_at, last_checked, last_changed FROM %s WHERE site = $1 AND path = $2`,
		s.table,
	)
	var hash string
	var computedAt, lastChecked, lastChanged time.Time
	err := s.pool.QueryRow(ctx, query, site, path).Scan(&hash, &computedAt, &lastChecked, &lastChanged)
	if errors.Is(err, pgx.ErrNoRows) {
		return monitor.Baseline{}, false, nil
	}
	if err != nil {
		return monitor.Baseline{}, false, fmt.Errorf("query baseline: %w", err)
	}
	return monitor.Baseline{
		Site: site,
		Path: path,
		Fingerprint: monitor.PageFingerprint{
			Path:       path,
			Hash:       hash,
			ComputedAt: computedAt,
		},
		LastChecked: lastChecked,
		LastChanged: lastChanged,
	}, true, nil
}

// Put upserts the baseline row for (site, path).
func (s *Store) Put(ctx context.Context, site, path string, baseline monitor.Baseline) error {
	query := fmt.Sprintf(`INSERT INTO %s (site, path, hash, computed_at, last_checked, last_changed)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (site, path) DO UPDATE SET
			hash = EXCLUDED.hash,
			computed_at = EXCLUDED.computed_at,
			last_checked = EXCLUDED.last_checked,
			last_changed = EXCLUDED.last_changed`, s.table)
	_, err := s.pool.Exec(ctx, query,
		site,
		path,
		baseline.Fingerprint.Hash,
		baseline.Fingerprint.ComputedAt,
		baseline.LastChecked,
		baseline.LastChanged,
	)
	if err != nil {
		return fmt.Errorf("upsert baseline: %w", err)
	}
	return nil
}
