// Package worker mirrors ledger entries into the spreadsheet export target.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/ledger"
	"kakeibo/internal/log"
	"kakeibo/internal/metrics"
	"kakeibo/internal/sheets"
	"kakeibo/internal/storage"
)

// SyncStore is the part of the SQLite repository the worker needs to track
// export state.
type SyncStore interface {
	GetEntry(ctx context.Context, uid string) (core.LedgerEntry, error)
	GetPendingSyncEntries(ctx context.Context, limit int) ([]storage.PendingSyncEntry, error)
	MarkSynced(ctx context.Context, uid string) error
	MarkSyncError(ctx context.Context, uid string) error
}

// Consumer delivers broker messages to a handler until ctx ends.
type Consumer interface {
	ConsumeEntryMessages(ctx context.Context, handler func(context.Context, *amqp.EntryMessage) error) error
}

// SyncWorker exports entries to the spreadsheet. The store is optional: with
// the csv or memory backends there is no sync state and the worker relies on
// the entry snapshot carried by each message.
type SyncWorker struct {
	store     SyncStore
	exporter  sheets.Exporter
	batchSize int
	metrics   *metrics.Metrics
}

func NewSyncWorker(store SyncStore, exporter sheets.Exporter, batchSize int, m *metrics.Metrics) *SyncWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	return &SyncWorker{
		store:     store,
		exporter:  exporter,
		batchSize: batchSize,
		metrics:   m,
	}
}

// HandleMessage processes one broker message.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.EntryMessage) error {
	slog.InfoContext(ctx, "Processing entry message",
		log.FieldComponent, log.ComponentWorker,
		"action", msg.Action,
		log.FieldEntryID, msg.UID)

	var err error
	switch msg.Action {
	case amqp.ActionSync:
		err = w.handleSync(ctx, msg)
	case amqp.ActionDelete:
		err = w.handleDelete(ctx, msg.UID)
	default:
		err = fmt.Errorf("unknown action %q", msg.Action)
	}
	w.observe(msg.Action, err)
	return err
}

func (w *SyncWorker) handleSync(ctx context.Context, msg *amqp.EntryMessage) error {
	e, err := w.lookup(ctx, msg)
	if err != nil {
		return err
	}
	return w.export(ctx, e)
}

// lookup prefers the stored row over the message snapshot.
func (w *SyncWorker) lookup(ctx context.Context, msg *amqp.EntryMessage) (core.LedgerEntry, error) {
	if w.store != nil {
		e, err := w.store.GetEntry(ctx, msg.UID)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, ledger.ErrNotFound) || msg.Entry == nil {
			return core.LedgerEntry{}, fmt.Errorf("get entry from storage: %w", err)
		}
	}
	if msg.Entry == nil {
		return core.LedgerEntry{}, fmt.Errorf("entry %s: no stored row and no snapshot", msg.UID)
	}
	return *msg.Entry, nil
}

func (w *SyncWorker) handleDelete(ctx context.Context, uid string) error {
	if err := w.exporter.RemoveEntry(ctx, uid); err != nil {
		slog.ErrorContext(ctx, "Failed to remove exported entry",
			log.FieldComponent, log.ComponentWorker,
			log.FieldEntryID, uid,
			log.FieldError, err)
		return fmt.Errorf("remove exported entry: %w", err)
	}
	slog.InfoContext(ctx, "Removed exported entry",
		log.FieldComponent, log.ComponentWorker,
		log.FieldEntryID, uid)
	return nil
}

func (w *SyncWorker) export(ctx context.Context, e core.LedgerEntry) error {
	ref, err := w.exporter.ExportEntry(ctx, e)
	if err != nil {
		if w.store != nil {
			if markErr := w.store.MarkSyncError(ctx, e.ID); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", log.FieldEntryID, e.ID, log.FieldError, markErr)
			}
		}
		return fmt.Errorf("export entry: %w", err)
	}

	if w.store != nil {
		// the row is exported; a failed status update only causes a
		// redundant, idempotent export later
		if err := w.store.MarkSynced(ctx, e.ID); err != nil && !errors.Is(err, ledger.ErrNotFound) {
			slog.ErrorContext(ctx, "Failed to mark as synced", log.FieldEntryID, e.ID, log.FieldError, err)
		}
	}

	slog.InfoContext(ctx, "Exported entry",
		log.FieldComponent, log.ComponentWorker,
		log.FieldEntryID, e.ID,
		log.FieldRowRef, ref,
		log.FieldAmountYen, e.Amount.Yen)
	return nil
}

// ProcessPendingEntries exports entries still marked pending. It recovers
// from lost broker messages and worker downtime.
func (w *SyncWorker) ProcessPendingEntries(ctx context.Context) (synced, failed int, err error) {
	if w.store == nil {
		return 0, 0, nil
	}
	pending, err := w.store.GetPendingSyncEntries(ctx, w.batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending entries: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	slog.InfoContext(ctx, "Processing pending entries",
		log.FieldComponent, log.ComponentWorker,
		log.FieldCount, len(pending))

	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return synced, failed, err
		}
		e, err := w.store.GetEntry(ctx, p.UID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get entry", log.FieldEntryID, p.UID, log.FieldError, err)
			if err := w.store.MarkSyncError(ctx, p.UID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", log.FieldEntryID, p.UID, log.FieldError, err)
			}
			failed++
			continue
		}
		err = w.export(ctx, e)
		w.observe(amqp.ActionSync, err)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to export entry", log.FieldEntryID, p.UID, log.FieldError, err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Pending entries processed",
		log.FieldComponent, log.ComponentWorker,
		"synced", synced,
		"errors", failed)
	return synced, failed, nil
}

// Run consumes broker messages and reconciles pending entries every interval
// until ctx ends or one of them fails. consumer may be nil, in which case
// only reconciliation runs.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer, interval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	if consumer != nil {
		g.Go(func() error {
			err := consumer.ConsumeEntryMessages(ctx, w.HandleMessage)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		if _, _, err := w.ProcessPendingEntries(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "Startup reconciliation failed", log.FieldError, err)
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if _, _, err := w.ProcessPendingEntries(ctx); err != nil && ctx.Err() == nil {
					slog.ErrorContext(ctx, "Reconciliation failed", log.FieldError, err)
				}
			}
		}
	})

	return g.Wait()
}

func (w *SyncWorker) observe(action amqp.Action, err error) {
	if w.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	w.metrics.SyncProcessed.WithLabelValues(string(action), result).Inc()
}
