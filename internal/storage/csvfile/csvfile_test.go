package csvfile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kakeibo/internal/core"
)

func TestLoadCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kakeibo.csv")
	f := New(path)

	entries, err := f.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty ledger, got %d", len(entries))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("file should exist: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != strings.Join(Header, ",") {
		t.Fatalf("unexpected header: %q", got)
	}
}

func TestSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	f := New(filepath.Join(t.TempDir(), "kakeibo.csv"))
	in := []core.LedgerEntry{{
		ID:                "id-1",
		PaymentDate:       core.NewDate(2025, 3, 5),
		Amount:            core.Money{Yen: 1200},
		Payer:             "たう",
		Beneficiary:       "共用",
		Category:          core.OtherCategory,
		OtherCategoryNote: "ペット",
		Memo:              "ドッグフード, 5kg",
		CreatedDate:       "20250305",
		CreatedTime:       "21:04:00",
	}}
	if err := f.Save(ctx, in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	out, err := f.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(out) != 1 || out[0] != in[0] {
		t.Fatalf("got %+v, want %+v", out, in)
	}
}

func TestReadLegacyFile(t *testing.T) {
	// legacy files have no ID column, swapped party columns, float amounts
	// and hand-edited rows that are not valid CSV
	legacy := "\ufeff支払日,金額,購入品使用者,支払い者,カテゴリ,その他のカテゴリ,メモ,入力年月日,入力時間\n" +
		"2025-03-01,1200.0,共用,たう,食費,,,20250301,10:00:00\n" +
		"2025-03-02 00:00:00,500,萌伽,萌伽,カフェ,,latte,20250302,11:00:00\n" +
		"not-a-date,100,共用,たう,食費,,,,\n" +
		"2025-03-04,abc,共用,たう,食費,,,,\n" +
		"2025-03-05,300,共用,たう,食費,,say \"hi\",,\n" +
		"2025-03-06,700,共用,萌伽,食費,,,,\n"

	out, err := Read(context.Background(), strings.NewReader(legacy))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected malformed rows to be skipped, got %d entries", len(out))
	}
	if out[2].Amount.Yen != 700 || out[2].Payer != "萌伽" {
		t.Fatalf("row after a bare quote should load: %+v", out[2])
	}
	if out[0].Amount.Yen != 1200 || out[0].Payer != "たう" || out[0].Beneficiary != "共用" {
		t.Fatalf("unexpected first entry: %+v", out[0])
	}
	if out[1].PaymentDate.String() != "2025-03-02" || out[1].Memo != "latte" {
		t.Fatalf("unexpected second entry: %+v", out[1])
	}
	if out[0].ID == "" || out[0].ID == out[1].ID {
		t.Fatalf("legacy rows should get distinct ids: %q %q", out[0].ID, out[1].ID)
	}
}

func TestReadMissingColumn(t *testing.T) {
	_, err := Read(context.Background(), strings.NewReader("支払日,金額\n2025-01-01,1\n"))
	if err == nil {
		t.Fatal("expected error for missing party columns")
	}
}

func TestWriteHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 1 {
		t.Fatalf("expected header line only, got %d lines", lines)
	}
}
