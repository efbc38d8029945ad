package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const defaultPrefsTable = "operator_prefs"

// PostgresStore persists preferences in a key-value table.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore)

// WithPrefsTable overrides the table name.
func WithPrefsTable(table string) PostgresOption {
	return func(s *PostgresStore) {
		if table != "" {
			s.table = table
		}
	}
}

// NewPostgresStore constructs a store.
func NewPostgresStore(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	store := &PostgresStore{db: db, table: defaultPrefsTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Load reads a value.
func (s *PostgresStore) Load(ctx context.Context, scope, key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, errors.New("prefs store: nil db")
	}

	query := fmt.Sprintf(`SELECT value FROM %s WHERE scope = $1 AND key = $2 LIMIT 1`, s.table)
	var value string
	if err := s.db.QueryRowContext(ctx, query, scope, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// Save upserts a value.
func (s *PostgresStore) Save(ctx context.Context, scope, key, value string) error {
	if s == nil || s.db == nil {
		return errors.New("prefs store: nil db")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (scope, key, value, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (scope, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`, s.table)
	_, err := s.db.ExecContext(ctx, query, scope, key, value, time.Now().UTC())
	return err
}

// Delete removes one key.
func (s *PostgresStore) Delete(ctx context.Context, scope, key string) error {
	if s == nil || s.db == nil {
		return errors.New("prefs store: nil db")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE scope = $1 AND key = $2`, s.table)
	_, err := s.db.ExecContext(ctx, query, scope, key)
	return err
}

// DeleteScope removes every key in a scope.
func (s *PostgresStore) DeleteScope(ctx context.Context, scope string) error {
	if s == nil || s.db == nil {
		return errors.New("prefs store: nil db")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE scope = $1`, s.table)
	_, err := s.db.ExecContext(ctx, query, scope)
	return err
}
