package core

import "fmt"

// Direction tells which party transfers the net amount.
type Direction int

const (
	NoneOwed Direction = iota
	APaysB
	BPaysA
)

func (d Direction) String() string {
	switch d {
	case APaysB:
		return "a_pays_b"
	case BPaysA:
		return "b_pays_a"
	default:
		return "none"
	}
}

// Breakdown keeps the per-subset sums behind a settlement so callers can
// show how the totals were reached.
type Breakdown struct {
	BenefitAPaidByB int64 // S1
	BenefitBPaidByA int64 // S2
	SharedPaidByA   int64 // S3
	SharedPaidByB   int64 // S4
	Excluded        int   // entries contributing nothing
}

// Settlement is the computed, never stored, result for one month.
type Settlement struct {
	Parties   Parties
	AOwesB    int64
	BOwesA    int64
	Breakdown Breakdown
}

// ComputeSettlement partitions the entries by (beneficiary, payer) and
// returns how much each party owes the other. Entries are expected to be
// pre-filtered to one month. Any pair outside the four settlement patterns,
// including the split payer and unknown identifiers, contributes nothing.
// Negative amounts are treated as zero.
func ComputeSettlement(entries []LedgerEntry, p Parties) Settlement {
	var b Breakdown
	for _, e := range entries {
		amount := e.Amount.Yen
		if amount < 0 {
			amount = 0
		}
		switch {
		case e.Beneficiary == p.A && e.Payer == p.B:
			b.BenefitAPaidByB += amount
		case e.Beneficiary == p.B && e.Payer == p.A:
			b.BenefitBPaidByA += amount
		case e.Beneficiary == p.Shared && e.Payer == p.A:
			b.SharedPaidByA += amount
		case e.Beneficiary == p.Shared && e.Payer == p.B:
			b.SharedPaidByB += amount
		default:
			b.Excluded++
		}
	}

	// Half-shares truncate; the odd yen stays with whoever fronted the cost.
	return Settlement{
		Parties:   p,
		AOwesB:    b.BenefitAPaidByB + b.SharedPaidByA/2,
		BOwesA:    b.BenefitBPaidByA + b.SharedPaidByB/2,
		Breakdown: b,
	}
}

func (s Settlement) Direction() Direction {
	switch {
	case s.AOwesB > s.BOwesA:
		return APaysB
	case s.BOwesA > s.AOwesB:
		return BPaysA
	default:
		return NoneOwed
	}
}

// Net returns the absolute difference between the two directional totals.
func (s Settlement) Net() int64 {
	if s.AOwesB > s.BOwesA {
		return s.AOwesB - s.BOwesA
	}
	return s.BOwesA - s.AOwesB
}

// Payer and Payee name the parties of the net transfer. Both are empty when
// nothing is owed.
func (s Settlement) Payer() Party {
	switch s.Direction() {
	case APaysB:
		return s.Parties.A
	case BPaysA:
		return s.Parties.B
	}
	return ""
}

func (s Settlement) Payee() Party {
	switch s.Direction() {
	case APaysB:
		return s.Parties.B
	case BPaysA:
		return s.Parties.A
	}
	return ""
}

// Summary renders the net result the way the ledger UI shows it.
func (s Settlement) Summary() string {
	if s.Direction() == NoneOwed {
		return "お互いに支払う金額はない"
	}
	return fmt.Sprintf("%sが%sに%d円支払う", s.Payer(), s.Payee(), s.Net())
}
