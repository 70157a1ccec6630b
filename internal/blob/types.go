// Package blob re-exports the blob abstractions and selects a driver.
package blob

import (
	"chainstate/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
	DriverSQLite     = core.DriverSQLite
	DriverPostgres   = core.DriverPostgres
)

// ErrInvalidKey indicates a key rejected by every driver.
var ErrInvalidKey = core.ErrInvalidKey

// Close releases driver resources when the store holds any.
func Close(s Store) error { return core.Close(s) }
