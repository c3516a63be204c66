package spending

import (
	"errors"
	"fmt"
	"math"

	"spending/internal/core"
)

const dateKeyLayout = "2006-01-02"

// ErrEmptyInput is returned when no transaction yields a dated, categorized
// amount.
var ErrEmptyInput = errors.New("no valid transactions found to aggregate")

// EmptyInputError carries how many transactions were inspected before the
// aggregation came up empty.
type EmptyInputError struct {
	Inspected int
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("%s (inspected %d)", ErrEmptyInput.Error(), e.Inspected)
}

func (e *EmptyInputError) Is(target error) bool {
	return target == ErrEmptyInput
}

// AggregateStats counts why transactions were left out of an aggregation.
type AggregateStats struct {
	Inspected        int
	Used             int
	MissingAmount    int
	MissingDate      int
	MissingCategory  int
	UnparsableAmount int
	UnparsableDate   int
}

// Skipped is the number of inspected transactions that were not used.
func (s AggregateStats) Skipped() int {
	return s.Inspected - s.Used
}

// Aggregate buckets absolute amounts by day and category and derives weekly
// and monthly run-rates normalized by the span between the earliest and
// latest populated day. A span shorter than one day counts as one day, so a
// single-day input yields weekly = sum*7 and monthly = sum*30.
func Aggregate(txs []core.Transaction) (core.AggregatedSpending, error) {
	agg, _, err := AggregateWithStats(txs)
	return agg, err
}

// AggregateWithStats is Aggregate plus skip counters.
func AggregateWithStats(txs []core.Transaction) (core.AggregatedSpending, AggregateStats, error) {
	stats := AggregateStats{Inspected: len(txs)}

	daily := make(map[string]map[string]float64)
	var order []string
	weekly := make(map[string]float64)
	monthly := make(map[string]float64)

	for _, tx := range txs {
		switch {
		case tx.Amount == nil:
			stats.MissingAmount++
			continue
		case tx.Date == nil:
			stats.MissingDate++
			continue
		case tx.Category == nil || *tx.Category == "":
			stats.MissingCategory++
			continue
		}

		amount, err := core.ParseAmount(*tx.Amount)
		if err != nil {
			stats.UnparsableAmount++
			continue
		}
		when, err := core.ParseDate(*tx.Date)
		if err != nil {
			stats.UnparsableDate++
			continue
		}

		key := when.Format(dateKeyLayout)
		bucket, ok := daily[key]
		if !ok {
			bucket = make(map[string]float64)
			daily[key] = bucket
			order = append(order, key)
		}
		v := math.Abs(amount)
		cat := *tx.Category
		bucket[cat] += v
		weekly[cat] += v
		monthly[cat] += v
		stats.Used++
	}

	if len(daily) == 0 {
		return core.AggregatedSpending{}, stats, &EmptyInputError{Inspected: stats.Inspected}
	}

	summaries := make([]core.DailySpendingSummary, 0, len(order))
	for _, key := range order {
		summaries = append(summaries, core.DailySpendingSummary{Date: key, Spending: daily[key]})
	}

	duration := durationInDays(order)
	for cat := range weekly {
		weekly[cat] /= duration / 7
		monthly[cat] /= duration / 30
	}

	return core.AggregatedSpending{
		Daily:   summaries,
		Weekly:  weekly,
		Monthly: monthly,
	}, stats, nil
}

// durationInDays returns the span between the earliest and latest date key,
// clamped to at least one day. Keys are produced by Format so they parse.
func durationInDays(keys []string) float64 {
	var minKey, maxKey string
	for _, k := range keys {
		if minKey == "" || k < minKey {
			minKey = k
		}
		if maxKey == "" || k > maxKey {
			maxKey = k
		}
	}
	lo, _ := core.ParseDate(minKey)
	hi, _ := core.ParseDate(maxKey)
	d := hi.Sub(lo).Hours() / 24
	if d < 1 {
		return 1
	}
	return d
}
