package blob

import (
	"context"
	"fmt"
	"os"

	infraS3 "chainstate/internal/infra/blob/s3"
)

// Config selects and configures a driver.
type Config struct {
	Driver Driver         `yaml:"driver" toml:"driver"`
	Root   string         `yaml:"root" toml:"root"` // fs
	Path   string         `yaml:"path" toml:"path"` // sqlite
	DSN    string         `yaml:"dsn" toml:"dsn"`   // postgres
	S3     infraS3.Config `yaml:"s3" toml:"s3"`
}

// Environment overrides applied by Open:
//
//	CHAINSTATE_BLOB_DRIVER: fs|s3|memory|sqlite|postgres (default fs)
//	CHAINSTATE_BLOB_FS_ROOT: directory root when driver=fs
//	CHAINSTATE_BLOB_SQLITE_PATH: database file when driver=sqlite
//	CHAINSTATE_BLOB_POSTGRES_DSN: connection string when driver=postgres
//	(S3 specific variables documented in the s3 driver)
func withEnv(cfg Config) Config {
	if v := os.Getenv("CHAINSTATE_BLOB_DRIVER"); v != "" {
		cfg.Driver = Driver(v)
	}
	if v := os.Getenv("CHAINSTATE_BLOB_FS_ROOT"); v != "" {
		cfg.Root = v
	}
	if v := os.Getenv("CHAINSTATE_BLOB_SQLITE_PATH"); v != "" {
		cfg.Path = v
	}
	if v := os.Getenv("CHAINSTATE_BLOB_POSTGRES_DSN"); v != "" {
		cfg.DSN = v
	}
	cfg.S3 = infraS3.ConfigFromEnv(cfg.S3)
	if cfg.Driver == "" {
		cfg.Driver = DriverFilesystem
	}
	return cfg
}

// Open builds the Store named by cfg.Driver after applying environment overrides.
func Open(ctx context.Context, cfg Config) (Store, error) {
	cfg = withEnv(cfg)
	switch cfg.Driver {
	case DriverFilesystem:
		return NewFilesystem(cfg.Root)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return NewSQLite(ctx, cfg.Path)
	case DriverPostgres:
		return NewPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}
