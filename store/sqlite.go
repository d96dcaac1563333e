package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

var _ Store = (*SQLite)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
    key   TEXT PRIMARY KEY,
    value BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS zset (
    name   TEXT NOT NULL,
    member TEXT NOT NULL,
    score  REAL NOT NULL,
    PRIMARY KEY (name, member)
);

CREATE INDEX IF NOT EXISTS zset_name_score ON zset (name, score);
`

// SQLite implements Store in a single embedded database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the cache database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, unavailable("open "+path, err)
	}
	// A single connection serializes writers within the process.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, unavailable(pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, unavailable("create schema", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("get "+key, err)
	}
	return value, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return unavailable("set "+key, err)
	}
	return nil
}

func (s *SQLite) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE substr(key, 1, ?) = ?`, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, unavailable("keys "+prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, unavailable("keys "+prefix, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("keys "+prefix, err)
	}
	return keys, nil
}

func (s *SQLite) ZAdd(ctx context.Context, index, member string, score float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO zset (name, member, score) VALUES (?, ?, ?)
		 ON CONFLICT (name, member) DO UPDATE SET score = excluded.score`, index, member, score)
	if err != nil {
		return unavailable("zadd "+index, err)
	}
	return nil
}

func (s *SQLite) ZRangeLast(ctx context.Context, index string, n int) ([]ScoredMember, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT member, score FROM (
			SELECT member, score FROM zset WHERE name = ?
			ORDER BY score DESC, member DESC LIMIT ?
		) ORDER BY score ASC, member ASC`, index, n)
	if err != nil {
		return nil, unavailable("zrange "+index, err)
	}
	defer rows.Close()

	var out []ScoredMember
	for rows.Next() {
		var sm ScoredMember
		if err := rows.Scan(&sm.Member, &sm.Score); err != nil {
			return nil, unavailable("zrange "+index, err)
		}
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("zrange "+index, err)
	}
	return out, nil
}

func (s *SQLite) ZRangeAfter(ctx context.Context, index string, score float64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT member FROM zset WHERE name = ? AND score > ? ORDER BY score, member`, index, score)
	if err != nil {
		return nil, unavailable("zrangebyscore "+index, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, unavailable("zrangebyscore "+index, err)
		}
		out = append(out, member)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("zrangebyscore "+index, err)
	}
	return out, nil
}

func (s *SQLite) FlushAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("flush", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM kv`, `DELETE FROM zset`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return unavailable("flush", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("flush", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
