package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Table is the table created by the embedded migrations.
const Table = "durable_entries"

// Store implements storage.DurableStore on a PostgreSQL table.
type Store struct {
	db    *DB
	table string
}

// NewStore creates a store over the migrated table in db.
func NewStore(db *DB) *Store {
	return &Store{db: db, table: pq.QuoteIdentifier(Table)}
}

// Set upserts a value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, s.table)

	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set durable entry: %w", err)
	}
	return nil
}

// Get reads a value.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, s.table)

	var value string
	err := s.db.GetContext(ctx, &value, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get durable entry: %w", err)
	}
	return value, true, nil
}

// Delete removes a value.
func (s *Store) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete durable entry: %w", err)
	}
	return nil
}

// Keys lists stored keys starting with prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	query := fmt.Sprintf(`SELECT key FROM %s WHERE starts_with(key, $1) ORDER BY key`, s.table)
	var keys []string
	if err := s.db.SelectContext(ctx, &keys, query, prefix); err != nil {
		return nil, fmt.Errorf("failed to list durable keys: %w", err)
	}
	return keys, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)
	var count int
	if err := s.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("failed to count durable entries: %w", err)
	}
	return count, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Health pings the database.
func (s *Store) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}
