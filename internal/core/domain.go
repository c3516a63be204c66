package core

import (
	"fmt"
	"time"
)

type (
	// Account is a linked financial institution item owned by a user.
	Account struct {
		ID              string
		UserKey         string // partition key of the owning user
		InstitutionID   string
		InstitutionName string
		CreatedAt       time.Time
	}

	User struct {
		Key       string
		Username  string
		CreatedAt time.Time
	}

	// Transaction is a raw record as read from storage. Amount, Date and
	// Category are optional; records missing any of them are skipped by the
	// aggregation.
	Transaction struct {
		ID             string
		AccountID      string
		Amount         *string // signed decimal string
		CurrencyCode   string
		Date           *string // YYYY-MM-DD or RFC3339
		Category       *string // primary personal-finance category
		PaymentChannel string
		Type           string
		Name           string
	}

	DailySpendingSummary struct {
		Date     string             `json:"date"`
		Spending map[string]float64 `json:"spending"`
	}

	AggregatedSpending struct {
		Daily   []DailySpendingSummary `json:"daily"`
		Weekly  map[string]float64     `json:"weekly"`
		Monthly map[string]float64     `json:"monthly"`
	}

	// MonthlySpendingAggregates is keyed by "YYYY-M" (month not zero padded).
	MonthlySpendingAggregates map[string]AggregatedSpending

	// DateTriple is a calendar date with a 1-based month.
	DateTriple struct {
		Day   int
		Month int
		Year  int
	}

	// DateRange is inclusive on both ends.
	DateRange struct {
		Start DateTriple
		End   DateTriple
	}
)

// NewDateTriple extracts the UTC calendar date of t.
func NewDateTriple(t time.Time) DateTriple {
	y, m, d := t.UTC().Date()
	return DateTriple{Day: d, Month: int(m), Year: y}
}

func (d DateTriple) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// String formats the triple as YYYY-MM-DD.
func (d DateTriple) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Contains reports whether the calendar date of t lies within the range.
func (r DateRange) Contains(t time.Time) bool {
	day := NewDateTriple(t).Time()
	return !day.Before(r.Start.Time()) && !day.After(r.End.Time())
}

// MonthKey formats year and month the way aggregates are keyed.
func MonthKey(year int, month time.Month) string {
	return fmt.Sprintf("%d-%d", year, int(month))
}

// Str returns a pointer to s. Handy for building optional transaction fields.
func Str(s string) *string {
	return &s
}
