// Package core provides the domain types of the spending pipeline together
// with amount and date parsing helpers shared by every store.
package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a signed decimal string to float64.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted.
// Surrounding whitespace is ignored. The sign is preserved; callers that
// aggregate spending take the absolute value themselves.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("-7,5")   -> -7.5, nil
//	ParseAmount("abc")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	f, _ := d.Float64()
	return f, nil
}

// FormatAmount renders a float amount with two decimals.
func FormatAmount(f float64) string {
	return decimal.NewFromFloat(f).StringFixed(2)
}

// ParseDate accepts a plain calendar date or an RFC3339 instant and returns
// the moment in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t.UTC(), nil
}
