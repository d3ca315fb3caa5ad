package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// YearMonth selects one calendar month.
type YearMonth struct {
	Year  int
	Month int // 1-12
}

// CurrentYearMonth returns the month containing now.
func CurrentYearMonth(now time.Time) YearMonth {
	return YearMonth{Year: now.Year(), Month: int(now.Month())}
}

func (ym YearMonth) Validate() error {
	if ym.Month < 1 || ym.Month > 12 {
		return ErrInvalidMonth
	}
	if ym.Year < 1 {
		return fmt.Errorf("invalid year %d", ym.Year)
	}
	return nil
}

// Key is the machine form, e.g. "2025-03".
func (ym YearMonth) Key() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// Label is the display form, e.g. "2025年03月".
func (ym YearMonth) Label() string {
	return fmt.Sprintf("%d年%02d月", ym.Year, ym.Month)
}

func (ym YearMonth) String() string {
	return ym.Key()
}

// ParseYearMonth accepts either the key form ("2025-03") or the label form
// ("2025年03月").
func ParseYearMonth(s string) (YearMonth, error) {
	s = strings.TrimSpace(s)
	var ys, ms string
	switch {
	case strings.Contains(s, "年"):
		ys, ms, _ = strings.Cut(s, "年")
		ms = strings.TrimSuffix(ms, "月")
	case strings.Contains(s, "-"):
		ys, ms, _ = strings.Cut(s, "-")
	default:
		return YearMonth{}, fmt.Errorf("invalid year-month %q", s)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return YearMonth{}, fmt.Errorf("invalid year in %q: %w", s, err)
	}
	m, err := strconv.Atoi(ms)
	if err != nil {
		return YearMonth{}, fmt.Errorf("invalid month in %q: %w", s, err)
	}
	ym := YearMonth{Year: y, Month: m}
	if err := ym.Validate(); err != nil {
		return YearMonth{}, err
	}
	return ym, nil
}

// MonthOptions enumerates the selectable months: every month of the current
// year and of the following one.
func MonthOptions(now time.Time) []YearMonth {
	out := make([]YearMonth, 0, 24)
	for y := now.Year(); y <= now.Year()+1; y++ {
		for m := 1; m <= 12; m++ {
			out = append(out, YearMonth{Year: y, Month: m})
		}
	}
	return out
}

// IsSelectable reports whether ym is one of MonthOptions(now).
func (ym YearMonth) IsSelectable(now time.Time) bool {
	if ym.Validate() != nil {
		return false
	}
	return ym.Year == now.Year() || ym.Year == now.Year()+1
}

// EntriesForMonth returns the entries whose payment date falls in the given
// month, preserving their order. Unknown months yield an empty slice.
func EntriesForMonth(entries []LedgerEntry, year, month int) []LedgerEntry {
	out := make([]LedgerEntry, 0)
	for _, e := range entries {
		if e.InMonth(year, month) {
			out = append(out, e)
		}
	}
	return out
}
