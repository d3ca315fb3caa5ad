// Package ledger defines the ledger store contract consumed by the
// settlement engine, the HTTP handlers and the CLI.
package ledger

import (
	"context"
	"errors"
	"slices"

	"kakeibo/internal/core"
)

var (
	ErrIndexOutOfRange = errors.New("entry index out of range")
	ErrNoSelection     = errors.New("no entries selected")
	ErrNotFound        = errors.New("entry not found")
	ErrCategoryExists  = errors.New("category already exists")
	ErrCategoryMissing = errors.New("category not found")
)

// Ports implemented by every ledger backend.
type (
	EntryWriter interface {
		// Append stores e at the end of the ledger and returns a reference.
		Append(ctx context.Context, e core.LedgerEntry) (ref string, err error)
	}

	EntryDeleter interface {
		// Delete removes the entries at the given positions of the full
		// ledger and returns them. Remaining entries are re-indexed.
		Delete(ctx context.Context, indices []int) ([]core.LedgerEntry, error)
	}

	EntryReader interface {
		// Entries returns the whole ledger in insertion order.
		Entries(ctx context.Context) ([]core.LedgerEntry, error)
	}

	// EntryLister returns the entries of one calendar month.
	EntryLister interface {
		EntriesForMonth(ctx context.Context, year, month int) ([]core.LedgerEntry, error)
	}

	CategoryStore interface {
		Categories(ctx context.Context) ([]string, error)
		AddCategory(ctx context.Context, name string) error
		RemoveCategory(ctx context.Context, name string) error
	}

	Store interface {
		EntryWriter
		EntryDeleter
		EntryReader
		EntryLister
		CategoryStore
	}

	// Persister is the load/save hook of the in-memory store.
	Persister interface {
		Load(ctx context.Context) ([]core.LedgerEntry, error)
		Save(ctx context.Context, entries []core.LedgerEntry) error
	}
)

// NormalizeIndices sorts and deduplicates delete indices and checks them
// against the ledger length.
func NormalizeIndices(indices []int, n int) ([]int, error) {
	if len(indices) == 0 {
		return nil, ErrNoSelection
	}
	seen := make(map[int]struct{}, len(indices))
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= n {
			return nil, ErrIndexOutOfRange
		}
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	slices.Sort(out)
	return out, nil
}
