package core

import (
	"reflect"
	"testing"
)

var testParties = Parties{A: "A", B: "B", Shared: "shared", Split: "split"}

func entry(beneficiary, payer Party, yen int64) LedgerEntry {
	return LedgerEntry{
		PaymentDate: NewDate(2025, 3, 10),
		Amount:      Money{Yen: yen},
		Payer:       payer,
		Beneficiary: beneficiary,
		Category:    "食費",
	}
}

func TestComputeSettlement(t *testing.T) {
	tests := []struct {
		name      string
		entries   []LedgerEntry
		aOwesB    int64
		bOwesA    int64
		direction Direction
		net       int64
	}{
		{
			name:      "empty input",
			entries:   nil,
			direction: NoneOwed,
		},
		{
			name:      "A benefits, B paid",
			entries:   []LedgerEntry{entry("A", "B", 1500)},
			aOwesB:    1500,
			direction: APaysB,
			net:       1500,
		},
		{
			name:      "B benefits, A paid",
			entries:   []LedgerEntry{entry("B", "A", 800)},
			bOwesA:    800,
			direction: BPaysA,
			net:       800,
		},
		{
			name: "concrete scenario",
			entries: []LedgerEntry{
				entry("A", "B", 2000),
				entry("shared", "A", 1200),
				entry("shared", "B", 700),
			},
			aOwesB:    2600,
			bOwesA:    350,
			direction: APaysB,
			net:       2250,
		},
		{
			name: "equal totals",
			entries: []LedgerEntry{
				entry("A", "B", 500),
				entry("B", "A", 500),
			},
			aOwesB:    500,
			bOwesA:    500,
			direction: NoneOwed,
		},
		{
			name:      "shared half truncates",
			entries:   []LedgerEntry{entry("shared", "A", 2001)},
			aOwesB:    1000,
			direction: APaysB,
			net:       1000,
		},
		{
			name:      "shared halves are summed before truncating",
			entries:   []LedgerEntry{entry("shared", "B", 1), entry("shared", "B", 1)},
			bOwesA:    1,
			direction: BPaysA,
			net:       1,
		},
		{
			name: "self settled and split payer excluded",
			entries: []LedgerEntry{
				entry("A", "A", 999),
				entry("B", "B", 999),
				entry("shared", "split", 4000),
				entry("A", "split", 300),
			},
			direction: NoneOwed,
		},
		{
			name: "unknown identifiers excluded",
			entries: []LedgerEntry{
				entry("C", "B", 100),
				entry("shared", "C", 100),
				entry("", "", 100),
			},
			direction: NoneOwed,
		},
		{
			name:      "negative amount clamped",
			entries:   []LedgerEntry{entry("A", "B", -700), entry("B", "A", 300)},
			bOwesA:    300,
			direction: BPaysA,
			net:       300,
		},
		{
			name:      "zero amount contributes nothing",
			entries:   []LedgerEntry{entry("A", "B", 0)},
			direction: NoneOwed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ComputeSettlement(tt.entries, testParties)
			if s.AOwesB != tt.aOwesB || s.BOwesA != tt.bOwesA {
				t.Fatalf("totals = (%d, %d), want (%d, %d)", s.AOwesB, s.BOwesA, tt.aOwesB, tt.bOwesA)
			}
			if s.Direction() != tt.direction {
				t.Errorf("direction = %v, want %v", s.Direction(), tt.direction)
			}
			if s.Net() != tt.net {
				t.Errorf("net = %d, want %d", s.Net(), tt.net)
			}
			if s.AOwesB < 0 || s.BOwesA < 0 {
				t.Errorf("negative total: %+v", s)
			}
		})
	}
}

func TestComputeSettlementIdempotent(t *testing.T) {
	entries := []LedgerEntry{
		entry("A", "B", 2000),
		entry("shared", "A", 1201),
		entry("shared", "B", 777),
	}
	snapshot := append([]LedgerEntry(nil), entries...)

	first := ComputeSettlement(entries, testParties)
	second := ComputeSettlement(entries, testParties)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ: %+v vs %+v", first, second)
	}
	if !reflect.DeepEqual(entries, snapshot) {
		t.Fatalf("input mutated")
	}
}

func TestComputeSettlementIgnoresIrrelevantEntries(t *testing.T) {
	base := []LedgerEntry{entry("A", "B", 2000), entry("shared", "B", 700)}
	before := ComputeSettlement(base, testParties)

	withNoise := append(append([]LedgerEntry(nil), base...), entry("A", "A", 12345))
	after := ComputeSettlement(withNoise, testParties)

	if before.AOwesB != after.AOwesB || before.BOwesA != after.BOwesA {
		t.Fatalf("irrelevant entry changed totals: %+v -> %+v", before, after)
	}
	if after.Breakdown.Excluded != 1 {
		t.Errorf("excluded = %d, want 1", after.Breakdown.Excluded)
	}
}

func TestSettlementBreakdown(t *testing.T) {
	s := ComputeSettlement([]LedgerEntry{
		entry("A", "B", 2000),
		entry("B", "A", 10),
		entry("shared", "A", 1200),
		entry("shared", "B", 700),
	}, testParties)
	want := Breakdown{BenefitAPaidByB: 2000, BenefitBPaidByA: 10, SharedPaidByA: 1200, SharedPaidByB: 700}
	if s.Breakdown != want {
		t.Fatalf("breakdown = %+v, want %+v", s.Breakdown, want)
	}
}

func TestSettlementSummary(t *testing.T) {
	p := DefaultParties()
	tests := []struct {
		name    string
		entries []LedgerEntry
		payer   Party
		payee   Party
		want    string
	}{
		{"a pays b", []LedgerEntry{entry(p.A, p.B, 2250)}, p.A, p.B, "たうが萌伽に2250円支払う"},
		{"b pays a", []LedgerEntry{entry(p.B, p.A, 40)}, p.B, p.A, "萌伽がたうに40円支払う"},
		{"even", nil, "", "", "お互いに支払う金額はない"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ComputeSettlement(tt.entries, p)
			if s.Payer() != tt.payer || s.Payee() != tt.payee {
				t.Errorf("payer/payee = %q/%q, want %q/%q", s.Payer(), s.Payee(), tt.payer, tt.payee)
			}
			if got := s.Summary(); got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDirectionString(t *testing.T) {
	if NoneOwed.String() != "none" || APaysB.String() != "a_pays_b" || BPaysA.String() != "b_pays_a" {
		t.Fatalf("unexpected direction strings")
	}
}
