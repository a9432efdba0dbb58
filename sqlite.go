package prefstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

// SQLite implements Driver on a single-table SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path. Use ":memory:" for a
// private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// SQLite serializes writers; one connection also keeps ":memory:"
	// databases from splitting per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = []byte{}
	}
	return v, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

func (s *SQLite) Exists(ctx context.Context, key string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM kv WHERE key = ?`, key).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Keys returns all keys matching the prefix and pattern, sorted.
func (s *SQLite) Keys(ctx context.Context, prefix, pattern string) ([]string, error) {
	all, err := s.allKeys(ctx)
	if err != nil {
		return nil, err
	}
	var result []string
	for _, key := range all {
		ok, err := matchKey(key, prefix, pattern)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, key)
		}
	}
	sort.Strings(result)
	return result, nil
}

// Clear removes all keys with the given prefix.
func (s *SQLite) Clear(ctx context.Context, prefix string) error {
	if prefix == "" {
		_, err := s.db.ExecContext(ctx, `DELETE FROM kv`)
		return err
	}
	// substr avoids LIKE wildcards hidden in the prefix.
	ns := prefix + ":"
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE substr(key, 1, length(?1)) = ?1`, ns)
	return err
}

func (s *SQLite) allKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
