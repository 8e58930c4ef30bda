package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLite persists keys in a single kv table of an embedded database file.
type SQLite struct {
	db *sqlx.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating kv dir: %w", err)
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening kv db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing kv schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.GetContext(ctx, &value, `SELECT value FROM kv WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}

	return value, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}

	return nil
}

func (s *SQLite) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kv remove %s: %w", key, err)
	}

	return nil
}

func (s *SQLite) Iterate(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	var rows []dbPair
	if err := s.db.SelectContext(
		ctx,
		&rows,
		`SELECT key, value FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key`,
		len(prefix),
		prefix,
	); err != nil {
		return fmt.Errorf("kv iterate %s: %w", prefix, err)
	}

	for _, row := range rows {
		if !strings.HasPrefix(row.Key, prefix) {
			continue
		}
		if err := fn(row.Key, row.Value); err != nil {
			return err
		}
	}

	return nil
}

type dbPair struct {
	Key   string `db:"key"`
	Value []byte `db:"value"`
}
