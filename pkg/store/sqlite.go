package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	log  logrus.FieldLogger
	path string
	db   *sql.DB
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(log logrus.FieldLogger, path string) Store {
	return &SQLiteStore{
		log:  log.WithField("component", "store"),
		path: path,
	}
}

// Start opens the database connection.
func (s *SQLiteStore) Start(ctx context.Context) error {
	s.log.WithField("path", s.path).Info("Opening SQLite database")

	db, err := sql.Open("sqlite3", s.path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	// Test connection.
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	s.db = db

	return nil
}

// Stop closes the database connection.
func (s *SQLiteStore) Stop() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.log.Info("Running database migrations")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS demos (
			value TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_demos_position ON demos(position)`,
		// Migration: Track whether a demo comes from the config file.
		`ALTER TABLE demos ADD COLUMN in_config INTEGER DEFAULT 1`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			// Ignore "duplicate column" errors for ALTER TABLE migrations.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}

			return fmt.Errorf("running migration: %w", err)
		}
	}

	return nil
}

// UpsertDemo creates a demo or updates the one with the same value.
func (s *SQLiteStore) UpsertDemo(ctx context.Context, demo *Demo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO demos (value, label, position, in_config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(value) DO UPDATE SET
			label = excluded.label,
			position = excluded.position,
			in_config = excluded.in_config,
			updated_at = excluded.updated_at
	`, demo.Value, demo.Label, demo.Position, demo.InConfig, demo.CreatedAt, demo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting demo: %w", err)
	}

	return nil
}

// GetDemo retrieves a demo by value.
func (s *SQLiteStore) GetDemo(ctx context.Context, value string) (*Demo, error) {
	var (
		demo     Demo
		inConfig int
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT value, label, position, in_config, created_at, updated_at
		FROM demos WHERE value = ?
	`, value).Scan(&demo.Value, &demo.Label, &demo.Position, &inConfig,
		&demo.CreatedAt, &demo.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("querying demo: %w", err)
	}

	demo.InConfig = inConfig == 1

	return &demo, nil
}

// ListDemos retrieves all demos in picker order.
func (s *SQLiteStore) ListDemos(ctx context.Context) ([]*Demo, error) {
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
		var (
			demo     Demo
			inConfig int
		)

		if err := rows.Scan(&demo.Value, &demo.Label, &demo.Position, &inConfig,
			&demo.CreatedAt, &demo.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning demo: %w", err)
		}

		demo.InConfig = inConfig == 1
		demos = append(demos, &demo)
	}

	return demos, rows.Err()
}

// DeleteDemo deletes a demo by value.
func (s *SQLiteStore) DeleteDemo(ctx context.Context, value string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM demos WHERE value = ?`, value)
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
func (s *SQLiteStore) DeleteDemosNotIn(ctx context.Context, values []string) (int64, error) {
	query := `DELETE FROM demos WHERE in_config = 1`
	args := make([]any, 0, len(values))

	if len(values) > 0 {
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = "?"
			args = append(args, v)
		}

		query += ` AND value NOT IN (` + strings.Join(placeholders, ", ") + `)`
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting stale demos: %w", err)
	}

	return res.RowsAffected()
}
