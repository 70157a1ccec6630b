package blob

import (
	"context"

	"chainstate/internal/infra/blob/postgres"
	"chainstate/internal/infra/blob/sqlite"
)

// NewSQLite opens the SQLite-backed blob.Store at path.
func NewSQLite(ctx context.Context, path string) (Store, error) {
	store, err := sqlite.New(ctx, path)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewPostgres opens the Postgres-backed blob.Store at dsn.
func NewPostgres(ctx context.Context, dsn string) (Store, error) {
	store, err := postgres.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return store, nil
}
