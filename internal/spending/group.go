package spending

import (
	"fmt"
	"sort"

	"spending/internal/core"
)

// GroupStats reports what GroupWithStats left out.
type GroupStats struct {
	Months  int
	Dropped int // transactions without a usable date
}

// GroupByMonth partitions transactions by the "YYYY-M" key of their own date
// and aggregates every partition. Undated transactions are dropped. The first
// empty partition aborts the grouping with an error wrapping ErrEmptyInput.
func GroupByMonth(txs []core.Transaction) (core.MonthlySpendingAggregates, error) {
	aggs, _, err := GroupWithStats(txs)
	return aggs, err
}

func GroupWithStats(txs []core.Transaction) (core.MonthlySpendingAggregates, GroupStats, error) {
	var stats GroupStats
	partitions := make(map[string][]core.Transaction)
	var keys []string

	for _, tx := range txs {
		if tx.Date == nil {
			stats.Dropped++
			continue
		}
		when, err := core.ParseDate(*tx.Date)
		if err != nil {
			stats.Dropped++
			continue
		}
		key := core.MonthKey(when.Year(), when.Month())
		if _, ok := partitions[key]; !ok {
			keys = append(keys, key)
		}
		partitions[key] = append(partitions[key], tx)
	}

	// Deterministic iteration so the reported failing month is stable.
	sort.Strings(keys)

	out := make(core.MonthlySpendingAggregates, len(keys))
	for _, key := range keys {
		agg, err := Aggregate(partitions[key])
		if err != nil {
			return nil, stats, fmt.Errorf("aggregate month %s: %w", key, err)
		}
		out[key] = agg
	}
	stats.Months = len(out)
	return out, stats, nil
}

// FlattenDaily returns every month's daily summaries as one list sorted by
// date.
func FlattenDaily(aggs core.MonthlySpendingAggregates) []core.DailySpendingSummary {
	var out []core.DailySpendingSummary
	for _, agg := range aggs {
		out = append(out, agg.Daily...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
