// Package sqlite opens the SQL blob store on a local SQLite file using the
// pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"chainstate/internal/blob/core"
	"chainstate/internal/infra/blob/sqldb"
)

// DefaultPath is used when no path is configured.
const DefaultPath = "chainstate.db"

// Dialect is the SQLite flavour of the blobs table.
var Dialect = sqldb.Dialect{Driver: core.DriverSQLite, Placeholder: sqldb.Question, PayloadType: "BLOB"}

// New opens (creating if needed) the database at path.
func New(ctx context.Context, path string) (*sqldb.Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite admits a single writer.
	db.SetMaxOpenConns(1)
	store, err := sqldb.Open(ctx, db, Dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
