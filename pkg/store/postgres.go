package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	log logrus.FieldLogger
	dsn string
	db  *sql.DB
}

// Ensure PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgreSQL store.
func NewPostgresStore(log logrus.FieldLogger, dsn string) Store {
	return &PostgresStore{
		log: log.WithField("component", "store"),
		dsn: dsn,
	}
}

// Start opens the database connection.
func (s *PostgresStore) Start(ctx context.Context) error {
	s.log.Info("Opening PostgreSQL database")

	db, err := sql.Open("postgres", s.dsn)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	// Configure connection pool.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test connection.
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	s.db = db

	return nil
}

// Stop closes the database connection.
func (s *PostgresStore) Stop() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate runs database migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	s.log.Info("Running database migrations")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS demos (
			value TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_demos_position ON demos(position)`,
		// Migration: Track whether a demo comes from the config file.
		`ALTER TABLE demos ADD COLUMN IF NOT EXISTS in_config BOOLEAN DEFAULT true`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}

	return nil
}

// UpsertDemo creates a demo or updates the one with the same value.
func (s *PostgresStore) UpsertDemo(ctx context.Context, demo *Demo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO demos (value, label, position, in_config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (value) DO UPDATE SET
			label = EXCLUDED.label,
			position = EXCLUDED.position,
			in_config = EXCLUDED.in_config,
			updated_at = EXCLUDED.updated_at
	`, demo.Value, demo.Label, demo.Position, demo.InConfig, demo.CreatedAt, demo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting demo: %w", err)
	}

	return nil
}

// GetDemo retrieves a demo by value.
func (s *PostgresStore) GetDemo(ctx context.Context, value string) (*Demo, error) {
	var demo Demo

	err := s.db.QueryRowContext(ctx, `
		SELECT value, label, position, in_config, created_at, updated_at
		FROM demos WHERE value = $1
	`, value).Scan(&demo.Value, &demo.Label, &demo.Position, &demo.InConfig,
		&demo.CreatedAt, &demo.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("querying demo: %w", err)
	}

	return &demo, nil
}

// ListDemos retrieves all demos in picker order.
func (s *PostgresStore) ListDemos(ctx context.Context) ([]*Demo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT value, label, position, in_config, created_at, updated_at
		FROM demos ORDER BY position, value
	`)
	if err != nil {
		return nil, fmt.Errorf("querying demos: %w", err)
	}
	defer rows.Close()

	demos := make([]*Demo, 0, 16)

	for rows.Next() {
		var demo Demo

		if err := rows.Scan(&demo.Value, &demo.Label, &demo.Position, &demo.InConfig,
			&demo.CreatedAt, &demo.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning demo: %w", err)
		}

		demos = append(demos, &demo)
	}

	return demos, rows.Err()
}

// DeleteDemo deletes a demo by value.
func (s *PostgresStore) DeleteDemo(ctx context.Context, value string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM demos WHERE value = $1`, value)
	if err != nil {
		return fmt.Errorf("deleting demo: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deleted rows: %w", err)
	}

	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteDemosNotIn removes config-sourced demos whose value is not listed.
func (s *PostgresStore) DeleteDemosNotIn(ctx context.Context, values []string) (int64, error) {
	if values == nil {
		values = []string{}
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM demos WHERE in_config = true AND NOT (value = ANY($1))
	`, pq.Array(values))
	if err != nil {
		return 0, fmt.Errorf("deleting stale demos: %w", err)
	}

	return res.RowsAffected()
}
