package backend

import (
	"context"

	"donorflow/internal/cache"
	"donorflow/internal/storage"
)

// SourceRegistry tracks which files have been uploaded to the analytics
// backend so they can be listed and removed later.
type SourceRegistry interface {
	RecordUpload(ctx context.Context, src storage.UploadedSource) (int64, error)
	ListSources(ctx context.Context) ([]storage.UploadedSource, error)
	DeleteByFilename(ctx context.Context, filename string) (int64, error)
	DeleteBySourceLabel(ctx context.Context, source string) (int64, error)
	DeleteByDataset(ctx context.Context, dataset string) (int64, error)
}

// Store is the unified persistence interface: client state for the result
// cache plus the upload registry.
type Store interface {
	cache.StateStore
	SourceRegistry
	Close() error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the store instance and optional cleanup function
type Result struct {
	Store   Store
	Cleanup CleanupFunc
}

// Factory creates stores based on configuration
type Factory interface {
	CreateStore(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for store creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
}

// BackendType represents the type of persistence backend
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
