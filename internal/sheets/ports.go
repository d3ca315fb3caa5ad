// Package sheets defines the outbound spreadsheet export ports. The ledger
// itself lives in a local store; a spreadsheet receives a copy of every
// entry for sharing and viewing.
package sheets

import (
	"context"

	"kakeibo/internal/core"
)

// Ports for outbound adapters.
type (
	EntryExporter interface {
		// ExportEntry writes e as one row. Exporting an entry whose ID is
		// already present is a no-op returning the existing row reference.
		ExportEntry(ctx context.Context, e core.LedgerEntry) (rowRef string, err error)
	}

	EntryRemover interface {
		// RemoveEntry deletes the row carrying uid. Unknown ids are ignored.
		RemoveEntry(ctx context.Context, uid string) error
	}

	Exporter interface {
		EntryExporter
		EntryRemover
	}
)
