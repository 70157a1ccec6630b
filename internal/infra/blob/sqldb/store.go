// Package sqldb stores blobs in a single SQL table through database/sql. The
// sqlite and postgres packages supply the connection and dialect.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"chainstate/internal/blob/core"
)

// Dialect captures the differences between supported engines.
type Dialect struct {
	Driver core.Driver
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// PayloadType is the column type for blob content.
	PayloadType string
}

// Question renders "?" placeholders (SQLite).
func Question(int) string { return "?" }

// Dollar renders "$n" placeholders (Postgres).
func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

// Store implements core.Store on table blobs(blob_key, payload, etag, updated_at).
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Open ensures the blobs table exists and wraps db.
func Open(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS blobs (
		blob_key TEXT PRIMARY KEY,
		payload %s NOT NULL,
		etag TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	)`, dialect.PayloadType)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("ensure blobs table: %w", err)
	}
	return &Store{db: db, dialect: dialect, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Driver() core.Driver { return s.dialect.Driver }

// DB exposes the underlying sql.DB for tests.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) bind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.dialect.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Write upserts the blob.
func (s *Store) Write(ctx context.Context, key string, data []byte) (core.Info, error) {
	clean, err := core.CleanKey(key)
	if err != nil {
		return core.Info{}, err
	}
	now := s.now()
	etag := core.ETag(data)
	q := s.bind(`INSERT INTO blobs(blob_key, payload, etag, updated_at) VALUES(?, ?, ?, ?)
		ON CONFLICT(blob_key) DO UPDATE SET payload = excluded.payload, etag = excluded.etag, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, q, clean, data, etag, now.UnixNano()); err != nil {
		return core.Info{}, fmt.Errorf("upsert %s: %w", clean, err)
	}
	return core.Info{Key: clean, Size: int64(len(data)), ETag: etag, LastModified: now}, nil
}

// Read returns the payload; a missing row reports ok=false.
func (s *Store) Read(ctx context.Context, key string) ([]byte, bool, error) {
	clean, err := core.CleanKey(key)
	if err != nil {
		return nil, false, err
	}
	var payload []byte
	err = s.db.QueryRowContext(ctx, s.bind(`SELECT payload FROM blobs WHERE blob_key = ?`), clean).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select %s: %w", clean, err)
	}
	return payload, true, nil
}

// Delete removes the row.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	clean, err := core.CleanKey(key)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, s.bind(`DELETE FROM blobs WHERE blob_key = ?`), clean)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", clean, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns metadata for keys with prefix, ordered by key. Prefix matching
// happens in Go so key characters never need LIKE escaping.
func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT blob_key, length(payload), etag, updated_at FROM blobs ORDER BY blob_key`)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []core.Info
	for rows.Next() {
		var (
			info    core.Info
			updated int64
		)
		if err := rows.Scan(&info.Key, &info.Size, &info.ETag, &updated); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if !strings.HasPrefix(info.Key, prefix) {
			continue
		}
		info.LastModified = time.Unix(0, updated).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}
