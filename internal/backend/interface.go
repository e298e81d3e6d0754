package backend

import (
	"context"
	"time"

	"fxledger/internal/rates"
	"fxledger/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult bundles the ledger, the rate snapshot store backing the
// coordinators, and a function releasing both.
type BackendResult struct {
	Ledger  store.Ledger
	Rates   rates.Store
	Cleanup CleanupFunc
	// Ping reports whether the backing database is reachable. Nil for
	// in-process backends.
	Ping func(context.Context) error
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory rate store sizing
	RateCacheSize int
	RateCacheTTL  time.Duration
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
