// Package spending holds the pure computations of the aggregation pipeline:
// the lookback window, category aggregation and month partitioning. Nothing
// in here performs I/O.
package spending

import (
	"time"

	"spending/internal/core"
)

// LookbackDays bounds how far back a window may start.
const LookbackDays = 90

const day = 24 * time.Hour

// FirstDayOfMonth returns midnight UTC of the first day of t's month.
func FirstDayOfMonth(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// ComputeWindowStart returns the first day of the account's creation month
// when that day is within the default lookback, otherwise the first day of
// the month containing the lookback cutoff.
func ComputeWindowStart(createdAt, now time.Time) time.Time {
	return ComputeWindowStartWithLookback(createdAt, now, LookbackDays)
}

// ComputeWindowStartWithLookback is ComputeWindowStart with a configurable
// lookback in days.
func ComputeWindowStartWithLookback(createdAt, now time.Time, lookbackDays int) time.Time {
	cutoff := now.UTC().Add(-time.Duration(lookbackDays) * day)
	first := FirstDayOfMonth(createdAt)
	if !first.Before(cutoff) {
		return first
	}
	return FirstDayOfMonth(cutoff)
}

// ComputeWindow returns the inclusive [start, now] range used to query an
// account's transactions.
func ComputeWindow(createdAt, now time.Time, lookbackDays int) core.DateRange {
	start := ComputeWindowStartWithLookback(createdAt, now, lookbackDays)
	return core.DateRange{
		Start: core.NewDateTriple(start),
		End:   core.NewDateTriple(now),
	}
}
