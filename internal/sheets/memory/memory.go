// Package memory provides an in-process spreadsheet exporter used when no
// spreadsheet is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"kakeibo/internal/core"
	ports "kakeibo/internal/sheets"
)

type Exporter struct {
	mu   sync.Mutex
	rows []core.LedgerEntry
}

var _ ports.Exporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

func (x *Exporter) ExportEntry(_ context.Context, e core.LedgerEntry) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for i, r := range x.rows {
		if r.ID == e.ID {
			return fmt.Sprintf("mem:%d", i+1), nil
		}
	}
	x.rows = append(x.rows, e)
	return fmt.Sprintf("mem:%d", len(x.rows)), nil
}

func (x *Exporter) RemoveEntry(_ context.Context, uid string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for i, r := range x.rows {
		if r.ID == uid {
			x.rows = append(x.rows[:i], x.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

// Rows returns a copy of the exported rows.
func (x *Exporter) Rows() []core.LedgerEntry {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]core.LedgerEntry(nil), x.rows...)
}
