package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/ledger"

	_ "modernc.org/sqlite"
)

// Sync states of a stored entry.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

const entryColumns = `id, uid, payment_date, amount_yen, payer, beneficiary, category,
	other_note, memo, created_date, created_time`

type SQLiteRepository struct {
	db *sql.DB
}

var _ ledger.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// a single writer keeps index-based deletes consistent
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Append implements ledger.EntryWriter. The returned reference is the row id.
func (r *SQLiteRepository) Append(ctx context.Context, e core.LedgerEntry) (string, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO entries
		(uid, payment_date, amount_yen, payer, beneficiary, category, other_note, memo, created_date, created_time, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.PaymentDate.String(), e.Amount.Yen, string(e.Payer), string(e.Beneficiary),
		e.Category, e.OtherCategoryNote, e.Memo, e.CreatedDate, e.CreatedTime, SyncPending)
	if err != nil {
		return "", fmt.Errorf("insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Entry saved to SQLite",
		"id", id,
		"uid", e.ID,
		"amount_yen", e.Amount.Yen,
		"payment_date", e.PaymentDate.String())

	return strconv.FormatInt(id, 10), nil
}

// Delete implements ledger.EntryDeleter. Positions refer to the ledger
// ordered by row id.
func (r *SQLiteRepository) Delete(ctx context.Context, indices []int) ([]core.LedgerEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	all, err := queryEntries(ctx, tx, `SELECT `+entryColumns+` FROM entries ORDER BY id`)
	if err != nil {
		return nil, err
	}
	idx, err := ledger.NormalizeIndices(indices, len(all))
	if err != nil {
		return nil, err
	}

	removed := make([]core.LedgerEntry, 0, len(idx))
	for _, i := range idx {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE uid = ?`, all[i].ID); err != nil {
			return nil, fmt.Errorf("delete entry %s: %w", all[i].ID, err)
		}
		removed = append(removed, all[i])
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete: %w", err)
	}

	slog.InfoContext(ctx, "Entries deleted from SQLite", "count", len(removed))
	return removed, nil
}

func (r *SQLiteRepository) Entries(ctx context.Context) ([]core.LedgerEntry, error) {
	return queryEntries(ctx, r.db, `SELECT `+entryColumns+` FROM entries ORDER BY id`)
}

func (r *SQLiteRepository) EntriesForMonth(ctx context.Context, year, month int) ([]core.LedgerEntry, error) {
	from := fmt.Sprintf("%04d-%02d-01", year, month)
	to := fmt.Sprintf("%04d-%02d-01", year, month+1)
	if month == 12 {
		to = fmt.Sprintf("%04d-01-01", year+1)
	}
	out, err := queryEntries(ctx, r.db,
		`SELECT `+entryColumns+` FROM entries WHERE payment_date >= ? AND payment_date < ? ORDER BY id`, from, to)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.LedgerEntry{}
	}
	return out, nil
}

// GetEntry returns the entry with the given uid.
func (r *SQLiteRepository) GetEntry(ctx context.Context, uid string) (core.LedgerEntry, error) {
	out, err := queryEntries(ctx, r.db, `SELECT `+entryColumns+` FROM entries WHERE uid = ?`, uid)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	if len(out) == 0 {
		return core.LedgerEntry{}, fmt.Errorf("entry %s: %w", uid, ledger.ErrNotFound)
	}
	return out[0], nil
}

// PendingSyncEntry is the minimal data needed to enqueue a sync message.
type PendingSyncEntry struct {
	UID       string
	CreatedAt time.Time
}

// GetPendingSyncEntries returns entries not yet exported, oldest first.
func (r *SQLiteRepository) GetPendingSyncEntries(ctx context.Context, limit int) ([]PendingSyncEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT uid, created_at FROM entries WHERE sync_status = ? ORDER BY id LIMIT ?`, SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync entries: %w", err)
	}
	defer rows.Close()

	var out []PendingSyncEntry
	for rows.Next() {
		var p PendingSyncEntry
		if err := rows.Scan(&p.UID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending entry: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced marks an entry as exported.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, uid string) error {
	if err := r.setSyncStatus(ctx, uid, SyncSynced); err != nil {
		return fmt.Errorf("mark entry synced: %w", err)
	}
	slog.InfoContext(ctx, "Entry marked as synced", "uid", uid)
	return nil
}

// MarkSyncError marks an entry whose export failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, uid string) error {
	if err := r.setSyncStatus(ctx, uid, SyncError); err != nil {
		return fmt.Errorf("mark entry sync error: %w", err)
	}
	slog.WarnContext(ctx, "Entry marked with sync error", "uid", uid)
	return nil
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, uid, status string) error {
	q := `UPDATE entries SET sync_status = ?, synced_at = NULL WHERE uid = ?`
	if status == SyncSynced {
		q = `UPDATE entries SET sync_status = ?, synced_at = CURRENT_TIMESTAMP WHERE uid = ?`
	}
	res, err := r.db.ExecContext(ctx, q, status, uid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entry %s: %w", uid, ledger.ErrNotFound)
	}
	return nil
}

// Categories implements ledger.CategoryStore. The catch-all category is
// always listed last.
func (r *SQLiteRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM categories ORDER BY name = ?, position, name`, core.OtherCategory)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) AddCategory(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyCategory
	}
	res, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO categories (name, position)
		VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM categories))`, name)
	if err != nil {
		return fmt.Errorf("add category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrCategoryExists
	}
	return nil
}

func (r *SQLiteRepository) RemoveCategory(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE name = ?`, strings.TrimSpace(name))
	if err != nil {
		return fmt.Errorf("remove category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrCategoryMissing
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryEntries(ctx context.Context, q querier, query string, args ...any) ([]core.LedgerEntry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []core.LedgerEntry
	for rows.Next() {
		var (
			rowID              int64
			e                  core.LedgerEntry
			date               string
			payer, beneficiary string
		)
		if err := rows.Scan(&rowID, &e.ID, &date, &e.Amount.Yen, &payer, &beneficiary, &e.Category,
			&e.OtherCategoryNote, &e.Memo, &e.CreatedDate, &e.CreatedTime); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		d, err := core.ParseDate(date)
		if err != nil {
			slog.WarnContext(ctx, "Skipping stored entry with invalid date", "id", rowID, "error", err)
			continue
		}
		e.PaymentDate = d
		e.Payer = core.Party(payer)
		e.Beneficiary = core.Party(beneficiary)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}
