// Package csvfile persists the ledger as a CSV file, one row per entry,
// using the Japanese column headers of the household spreadsheet.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"kakeibo/internal/core"
	"kakeibo/internal/ledger"
)

// Column names. The ID column is the last column and is
// optional when reading.
const (
	ColPaymentDate = "支払日"
	ColAmount      = "金額"
	ColPayer       = "支払い者"
	ColBeneficiary = "購入品使用者"
	ColCategory    = "カテゴリ"
	ColOtherNote   = "その他のカテゴリ"
	ColMemo        = "メモ"
	ColCreatedDate = "入力年月日"
	ColCreatedTime = "入力時間"
	ColID          = "ID"
)

// Header is the column order written by this package.
var Header = []string{
	ColPaymentDate, ColAmount, ColPayer, ColBeneficiary, ColCategory,
	ColOtherNote, ColMemo, ColCreatedDate, ColCreatedTime, ColID,
}

var required = []string{ColPaymentDate, ColAmount, ColPayer, ColBeneficiary}

// File is a ledger.Persister backed by a CSV file.
type File struct {
	path string
}

var _ ledger.Persister = (*File)(nil)

func New(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

// Load reads the ledger. A missing file is created with the header only.
func (f *File) Load(ctx context.Context) ([]core.LedgerEntry, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		slog.InfoContext(ctx, "Ledger file not found, creating empty ledger", "path", f.path)
		if err := f.Save(ctx, nil); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger file: %w", err)
	}
	defer file.Close()

	entries, err := Read(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("read ledger file %s: %w", f.path, err)
	}
	return entries, nil
}

// Save rewrites the whole file through a temporary file and a rename.
func (f *File) Save(_ context.Context, entries []core.LedgerEntry) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".kakeibo-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, entries); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace ledger file: %w", err)
	}
	return nil
}

// Write encodes entries with a header row.
func Write(w io.Writer, entries []core.LedgerEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		row := Record(e)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Record renders one entry in Header column order.
func Record(e core.LedgerEntry) []string {
	return []string{
		e.PaymentDate.String(),
		strconv.FormatInt(e.Amount.Yen, 10),
		string(e.Payer),
		string(e.Beneficiary),
		e.Category,
		e.OtherCategoryNote,
		e.Memo,
		e.CreatedDate,
		e.CreatedTime,
		e.ID,
	}
}

// Read decodes a ledger CSV. Columns are matched by header name so files
// with a different column order load unchanged. Rows that are not valid CSV
// or whose date or amount cannot be parsed are skipped with a warning.
func Read(ctx context.Context, r io.Reader) ([]core.LedgerEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	get := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []core.LedgerEntry
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			slog.WarnContext(ctx, "Skipping malformed ledger row", "line", perr.Line, "error", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		date, err := core.ParseDate(get(row, ColPaymentDate))
		if err != nil {
			slog.WarnContext(ctx, "Skipping ledger row with invalid date", "line", line, "error", err)
			continue
		}
		yen, err := parseAmount(get(row, ColAmount))
		if err != nil {
			slog.WarnContext(ctx, "Skipping ledger row with invalid amount", "line", line, "error", err)
			continue
		}
		id := get(row, ColID)
		if id == "" {
			id = uuid.NewString()
		}
		out = append(out, core.LedgerEntry{
			ID:                id,
			PaymentDate:       date,
			Amount:            core.Money{Yen: yen},
			Payer:             core.Party(get(row, ColPayer)),
			Beneficiary:       core.Party(get(row, ColBeneficiary)),
			Category:          get(row, ColCategory),
			OtherCategoryNote: get(row, ColOtherNote),
			Memo:              get(row, ColMemo),
			CreatedDate:       get(row, ColCreatedDate),
			CreatedTime:       get(row, ColCreatedTime),
		})
	}
	return out, nil
}

// parseAmount accepts whole numbers and the "1200.0" form spreadsheet tools
// write for integer columns.
func parseAmount(s string) (int64, error) {
	if v, err := core.ParseYen(s); err == nil {
		return v, nil
	}
	if strings.HasPrefix(s, "-") {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return v, nil
		}
	}
	if whole, frac, ok := strings.Cut(s, "."); ok && strings.Trim(frac, "0") == "" {
		return core.ParseYen(whole)
	}
	return 0, core.ErrInvalidAmount
}
