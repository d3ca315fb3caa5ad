package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type (
	// Party identifies who paid for or who benefited from an entry.
	Party string

	Date struct {
		time.Time
	}

	// Money is an amount in yen. There are no fractional subunits.
	Money struct {
		Yen int64
	}

	LedgerEntry struct {
		ID                string
		PaymentDate       Date
		Amount            Money
		Payer             Party
		Beneficiary       Party
		Category          string
		OtherCategoryNote string
		Memo              string
		CreatedDate       string // YYYYMMDD
		CreatedTime       string // HH:MM:SS
	}

	// Parties is the closed vocabulary used by entries and by the settlement
	// engine. A and B are the two individuals; Shared marks a beneficiary
	// split 50/50 and Split marks a payer whose cost was already divided.
	Parties struct {
		A      Party
		B      Party
		Shared Party
		Split  Party
	}
)

const (
	CreatedDateLayout = "20060102"
	CreatedTimeLayout = "15:04:05"
	PaymentDateLayout = "2006-01-02"
)

var (
	ErrInvalidDay            = errors.New("invalid day")
	ErrInvalidMonth          = errors.New("invalid month")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrZeroAmount            = errors.New("amount must be greater than zero")
	ErrEmptyCategory         = errors.New("empty category")
	ErrUnknownPayer          = errors.New("unknown payer")
	ErrUnknownBeneficiary    = errors.New("unknown beneficiary")
	ErrOtherNoteWithoutOther = errors.New("other category note requires the other category")
	ErrInvalidParties        = errors.New("invalid parties")
	ErrMissingDate           = errors.New("payment date is required")
	ErrMemoTooLong           = errors.New("memo too long (max 1000 characters)")
)

// DefaultParties mirrors the household the ledger was first written for.
func DefaultParties() Parties {
	return Parties{A: "たう", B: "萌伽", Shared: "共用", Split: "割勘"}
}

func (p Parties) Validate() error {
	names := []Party{p.A, p.B, p.Shared, p.Split}
	seen := make(map[Party]struct{}, len(names))
	for _, n := range names {
		if strings.TrimSpace(string(n)) == "" {
			return fmt.Errorf("%w: empty identifier", ErrInvalidParties)
		}
		if _, ok := seen[n]; ok {
			return fmt.Errorf("%w: duplicate identifier %s", ErrInvalidParties, n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// PayerOptions lists the accepted payer values in display order.
func (p Parties) PayerOptions() []Party {
	return []Party{p.A, p.B, p.Split}
}

// BeneficiaryOptions lists the accepted beneficiary values in display order.
func (p Parties) BeneficiaryOptions() []Party {
	return []Party{p.A, p.B, p.Shared}
}

func (p Parties) IsPayer(v Party) bool {
	return v == p.A || v == p.B || v == p.Split
}

func (p Parties) IsBeneficiary(v Party) bool {
	return v == p.A || v == p.B || v == p.Shared
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrMissingDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(PaymentDateLayout)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD payment date. A trailing time component, as
// written by some spreadsheet tools, is ignored.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}
	t, err := time.Parse(PaymentDateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (m Money) Validate() error {
	if m.Yen < 0 {
		return ErrInvalidAmount
	}
	if m.Yen == 0 {
		return ErrZeroAmount
	}
	return nil
}

// NewLedgerEntry stamps a new entry with an ID and the audit timestamps.
func NewLedgerEntry(now time.Time, paymentDate Date, amount Money, payer, beneficiary Party, category, otherNote, memo string) LedgerEntry {
	return LedgerEntry{
		ID:                uuid.NewString(),
		PaymentDate:       paymentDate,
		Amount:            amount,
		Payer:             payer,
		Beneficiary:       beneficiary,
		Category:          strings.TrimSpace(category),
		OtherCategoryNote: strings.TrimSpace(otherNote),
		Memo:              strings.TrimSpace(memo),
		CreatedDate:       now.Format(CreatedDateLayout),
		CreatedTime:       now.Format(CreatedTimeLayout),
	}
}

// Validate applies the entry-creation rules. Entries already in storage are
// never re-validated; the settlement engine tolerates whatever it finds.
func (e LedgerEntry) Validate(p Parties) error {
	if err := e.PaymentDate.Validate(); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !p.IsPayer(e.Payer) {
		return ErrUnknownPayer
	}
	if !p.IsBeneficiary(e.Beneficiary) {
		return ErrUnknownBeneficiary
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if e.Category != OtherCategory && strings.TrimSpace(e.OtherCategoryNote) != "" {
		return ErrOtherNoteWithoutOther
	}
	if utf8.RuneCountInString(e.Memo) > 1000 {
		return ErrMemoTooLong
	}
	return nil
}

// InMonth reports whether the payment date falls in the given calendar month.
func (e LedgerEntry) InMonth(year, month int) bool {
	if e.PaymentDate.IsZero() {
		return false
	}
	return e.PaymentDate.Year() == year && e.PaymentDate.Month() == month
}
