package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"chainstate/internal/blob/blobtest"
	"chainstate/internal/blob/core"
)

// SQLite accepts $n placeholders and BYTEA columns, so it stands in for a
// live Postgres server.
func standIn(t *testing.T) func() {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pg.db")
	return OverrideSQLOpen(func(driver, dsn string) (*sql.DB, error) {
		if driver != defaultDriver {
			t.Fatalf("unexpected driver %s", driver)
		}
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		return db, nil
	})
}

func TestConformance(t *testing.T) {
	blobtest.Run(t, func(t *testing.T) core.Store {
		restore := standIn(t)
		t.Cleanup(restore)
		s, err := New(context.Background(), "")
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestNewOpenError(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("boom") })
	defer restore()
	if _, err := New(context.Background(), "postgres://x"); err == nil {
		t.Fatalf("expected open error")
	}
}

func TestDriverName(t *testing.T) {
	defer standIn(t)()
	s, err := New(context.Background(), "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = s.Close() }()
	if s.Driver() != core.DriverPostgres {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
}

// TestLiveConformance runs against a real server when
// CHAINSTATE_TEST_POSTGRES_DSN is set. The blobs table is emptied around
// every subtest.
func TestLiveConformance(t *testing.T) {
	dsn := os.Getenv("CHAINSTATE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CHAINSTATE_TEST_POSTGRES_DSN not set")
	}
	blobtest.Run(t, func(t *testing.T) core.Store {
		ctx := context.Background()
		s, err := New(ctx, dsn)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		purge := func() {
			infos, err := s.List(ctx, "")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			for _, info := range infos {
				if _, err := s.Delete(ctx, info.Key); err != nil {
					t.Fatalf("purge %s: %v", info.Key, err)
				}
			}
		}
		purge()
		t.Cleanup(func() {
			purge()
			_ = s.Close()
		})
		return s
	})
}
