package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/metrics"
	sheetsmem "kakeibo/internal/sheets/memory"
	"kakeibo/internal/storage"
)

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "kakeibo.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleEntry(day int, yen int64) core.LedgerEntry {
	now := time.Date(2025, 3, day, 9, 0, 0, 0, time.UTC)
	return core.NewLedgerEntry(now, core.NewDate(2025, 3, day), core.Money{Yen: yen}, "たう", "共用", "食費", "", "")
}

type failingExporter struct{ err error }

func (f failingExporter) ExportEntry(context.Context, core.LedgerEntry) (string, error) {
	return "", f.err
}

func (f failingExporter) RemoveEntry(context.Context, string) error { return f.err }

type fakeConsumer struct{ msgs []*amqp.EntryMessage }

func (c fakeConsumer) ConsumeEntryMessages(ctx context.Context, handler func(context.Context, *amqp.EntryMessage) error) error {
	for _, m := range c.msgs {
		if err := handler(ctx, m); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestHandleMessage_SyncFromStore(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	exp := sheetsmem.New()
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, reg)
	w := NewSyncWorker(repo, exp, 10, m)

	e := sampleEntry(1, 1200)
	if _, err := repo.Append(ctx, e); err != nil {
		t.Fatal(err)
	}

	// the stored row wins over a stale snapshot
	stale := e
	stale.Amount = core.Money{Yen: 1}
	msg := amqp.NewEntrySyncMessage(stale)
	if err := w.HandleMessage(ctx, msg); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	// a redelivered message does not duplicate the row
	if err := w.HandleMessage(ctx, msg); err != nil {
		t.Fatalf("HandleMessage() redelivery error = %v", err)
	}

	rows := exp.Rows()
	if len(rows) != 1 || rows[0].Amount.Yen != 1200 {
		t.Fatalf("unexpected exported rows: %+v", rows)
	}
	pending, _ := repo.GetPendingSyncEntries(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("entry should be marked synced, pending = %+v", pending)
	}
	if got := testutil.ToFloat64(m.SyncProcessed.WithLabelValues("sync", "ok")); got != 2 {
		t.Errorf("sync ok = %v, want 2", got)
	}
}

func TestHandleMessage_SnapshotWithoutStore(t *testing.T) {
	ctx := context.Background()
	exp := sheetsmem.New()
	w := NewSyncWorker(nil, exp, 10, nil)

	e := sampleEntry(2, 500)
	if err := w.HandleMessage(ctx, amqp.NewEntrySyncMessage(e)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if rows := exp.Rows(); len(rows) != 1 || rows[0].ID != e.ID {
		t.Fatalf("unexpected exported rows: %+v", rows)
	}

	if err := w.HandleMessage(ctx, amqp.NewEntryDeleteMessage(e.ID)); err != nil {
		t.Fatalf("HandleMessage(delete) error = %v", err)
	}
	if rows := exp.Rows(); len(rows) != 0 {
		t.Fatalf("row should be removed, got %+v", rows)
	}
}

func TestHandleMessage_MissingEntry(t *testing.T) {
	ctx := context.Background()
	w := NewSyncWorker(newRepo(t), sheetsmem.New(), 10, nil)

	msg := &amqp.EntryMessage{Action: amqp.ActionSync, UID: "missing"}
	if err := w.HandleMessage(ctx, msg); err == nil {
		t.Fatal("expected error for unknown entry without snapshot")
	}
}

func TestHandleMessage_ExportFailureMarksError(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	w := NewSyncWorker(repo, failingExporter{err: errors.New("quota exceeded")}, 10, nil)

	e := sampleEntry(3, 800)
	if _, err := repo.Append(ctx, e); err != nil {
		t.Fatal(err)
	}
	if err := w.HandleMessage(ctx, amqp.NewEntrySyncMessage(e)); err == nil {
		t.Fatal("expected export error")
	}
	pending, _ := repo.GetPendingSyncEntries(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("failed entry should leave the pending state, got %+v", pending)
	}
}

func TestProcessPendingEntries(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	exp := sheetsmem.New()
	w := NewSyncWorker(repo, exp, 2, nil)

	for day := 1; day <= 3; day++ {
		if _, err := repo.Append(ctx, sampleEntry(day, int64(day*100))); err != nil {
			t.Fatal(err)
		}
	}

	synced, failed, err := w.ProcessPendingEntries(ctx)
	if err != nil {
		t.Fatalf("ProcessPendingEntries() error = %v", err)
	}
	if synced != 2 || failed != 0 {
		t.Fatalf("first batch synced=%d failed=%d, want 2 and 0", synced, failed)
	}
	synced, _, _ = w.ProcessPendingEntries(ctx)
	if synced != 1 {
		t.Fatalf("second batch synced=%d, want 1", synced)
	}
	if rows := exp.Rows(); len(rows) != 3 {
		t.Fatalf("exported %d rows, want 3", len(rows))
	}
}

func TestRun(t *testing.T) {
	repo := newRepo(t)
	exp := sheetsmem.New()
	w := NewSyncWorker(repo, exp, 10, nil)

	pending := sampleEntry(1, 100)
	if _, err := repo.Append(context.Background(), pending); err != nil {
		t.Fatal(err)
	}
	snapshot := sampleEntry(2, 200)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, fakeConsumer{msgs: []*amqp.EntryMessage{amqp.NewEntrySyncMessage(snapshot)}}, time.Hour)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for len(exp.Rows()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rows := exp.Rows(); len(rows) != 2 {
		t.Fatalf("exported %d rows, want 2", len(rows))
	}
}
