// Package backend builds the ledger store selected by DATA_BACKEND.
package backend

import (
	"context"

	"kakeibo/internal/ledger"
	"kakeibo/internal/worker"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult contains the store and an optional cleanup function.
// SyncStore is set only when the store tracks export state.
type BackendResult struct {
	Store     ledger.Store
	SyncStore worker.SyncStore
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds what the factory needs to open a store.
type Config struct {
	Type           BackendType
	CSVPath        string
	SQLiteDBPath   string
	CategoriesFile string
}

// BackendType represents the type of backend.
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	CSVBackend    BackendType = "csv"
	SQLiteBackend BackendType = "sqlite"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid.
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, CSVBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
