// Package core provides money parsing and handling utilities.
//
// Amounts are whole yen. Input may carry thousands separators, a yen sign or
// the 円 suffix, all of which are stripped before parsing.
package core

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
)

// ParseYen converts user input such as "1,200", "¥1200" or "1200円" into a
// whole-yen amount. Signs, decimals and empty input are rejected; zero is
// accepted here and rejected later by Money.Validate.
//
// Examples:
//
//	ParseYen("1,200")  -> 1200, nil
//	ParseYen("¥980")   -> 980, nil
//	ParseYen("12.5")   -> 0, ErrInvalidAmount
func ParseYen(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "¥")
	s = strings.TrimPrefix(s, "￥")
	s = strings.TrimSuffix(s, "円")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return 0, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// String renders the amount with thousands separators, e.g. "1,200円".
func (m Money) String() string {
	return FormatYen(m.Yen)
}

// FormatYen renders a yen amount for display.
func FormatYen(yen int64) string {
	return humanize.Comma(yen) + "円"
}
