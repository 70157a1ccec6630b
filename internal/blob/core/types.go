// Package core defines the key/value blob abstraction persisted snapshots are
// written to, shared by every storage driver.
package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	// DriverFilesystem stores one file per key under a root directory.
	DriverFilesystem Driver = "fs" // local filesystem (default)
	// DriverS3 represents an S3 / MinIO compatible implementation.
	DriverS3 Driver = "s3"
	// DriverMemory keeps blobs in process memory.
	DriverMemory Driver = "memory" // tests
	// DriverSQLite stores blobs in a single SQLite table.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres stores blobs in a single Postgres table.
	DriverPostgres Driver = "postgres"
)

// Info describes a stored blob.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is a flat key/value blob store. Write creates or replaces; absent keys
// are reported through the ok/existed results, never as errors.
type Store interface {
	Write(ctx context.Context, key string, data []byte) (Info, error)
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	// List returns blobs whose key has prefix, ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// ErrInvalidKey is returned for empty, absolute or traversing keys.
var ErrInvalidKey = errors.New("blobstore: invalid key")

// CleanKey rejects keys that could escape a driver's namespace and returns the
// normalized form.
func CleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: contains '..'", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: absolute", ErrInvalidKey)
	}
	return filepath.ToSlash(filepath.Clean(key)), nil
}

// ETag is the content hash reported in Info.
func ETag(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Close releases driver resources when the store holds any.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
