package spending

import (
	"errors"
	"math"
	"testing"

	"spending/internal/core"
)

func tx(date, category, amount string) core.Transaction {
	t := core.Transaction{ID: date + category + amount}
	if date != "" {
		t.Date = core.Str(date)
	}
	if category != "" {
		t.Category = core.Str(category)
	}
	if amount != "" {
		t.Amount = core.Str(amount)
	}
	return t
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAggregateTwoDates(t *testing.T) {
	agg, err := Aggregate([]core.Transaction{
		tx("2024-01-05", "FOOD", "10"),
		tx("2024-01-20", "FOOD", "20"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(agg.Daily) != 2 {
		t.Fatalf("expected 2 daily summaries, got %d", len(agg.Daily))
	}
	if agg.Daily[0].Date != "2024-01-05" || agg.Daily[0].Spending["FOOD"] != 10 {
		t.Errorf("unexpected first day: %+v", agg.Daily[0])
	}
	if agg.Daily[1].Date != "2024-01-20" || agg.Daily[1].Spending["FOOD"] != 20 {
		t.Errorf("unexpected second day: %+v", agg.Daily[1])
	}
	if !almostEqual(agg.Weekly["FOOD"], 14) {
		t.Errorf("weekly FOOD = %v, want 14", agg.Weekly["FOOD"])
	}
	if !almostEqual(agg.Monthly["FOOD"], 60) {
		t.Errorf("monthly FOOD = %v, want 60", agg.Monthly["FOOD"])
	}
}

func TestAggregateSingleDayClampsDuration(t *testing.T) {
	agg, err := Aggregate([]core.Transaction{
		tx("2024-02-10", "FOOD_AND_DRINK", "-4.50"),
		tx("2024-02-10T18:00:00Z", "FOOD_AND_DRINK", "5.50"),
		tx("2024-02-10", "TRAVEL", "3"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agg.Daily) != 1 {
		t.Fatalf("expected 1 day, got %d", len(agg.Daily))
	}
	if !almostEqual(agg.Weekly["FOOD_AND_DRINK"], 70) {
		t.Errorf("weekly = %v, want 70", agg.Weekly["FOOD_AND_DRINK"])
	}
	if !almostEqual(agg.Monthly["FOOD_AND_DRINK"], 300) {
		t.Errorf("monthly = %v, want 300", agg.Monthly["FOOD_AND_DRINK"])
	}
	if !almostEqual(agg.Monthly["TRAVEL"], 90) {
		t.Errorf("monthly TRAVEL = %v, want 90", agg.Monthly["TRAVEL"])
	}
	for cat, v := range agg.Weekly {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			t.Errorf("weekly %s is not finite: %v", cat, v)
		}
	}
}

func TestAggregateAbsoluteAmounts(t *testing.T) {
	agg, err := Aggregate([]core.Transaction{
		tx("2024-01-01", "INCOME", "-100"),
		tx("2024-01-08", "INCOME", "100"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 200 over 7 days
	if !almostEqual(agg.Weekly["INCOME"], 200) {
		t.Errorf("weekly INCOME = %v, want 200", agg.Weekly["INCOME"])
	}
	for _, d := range agg.Daily {
		for _, v := range d.Spending {
			if v < 0 {
				t.Errorf("negative daily value %v on %s", v, d.Date)
			}
		}
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	tests := []struct {
		name string
		txs  []core.Transaction
	}{
		{"nil", nil},
		{"no category", []core.Transaction{tx("2024-01-01", "", "3")}},
		{"no amount", []core.Transaction{tx("2024-01-01", "FOOD", "")}},
		{"no date", []core.Transaction{tx("", "FOOD", "3")}},
		{"unparsable amount", []core.Transaction{tx("2024-01-01", "FOOD", "n/a")}},
		{"unparsable date", []core.Transaction{tx("yesterday", "FOOD", "3")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Aggregate(tt.txs)
			if !errors.Is(err, ErrEmptyInput) {
				t.Fatalf("expected ErrEmptyInput, got %v", err)
			}
			var empty *EmptyInputError
			if !errors.As(err, &empty) {
				t.Fatalf("expected *EmptyInputError, got %T", err)
			}
			if empty.Inspected != len(tt.txs) {
				t.Errorf("Inspected = %d, want %d", empty.Inspected, len(tt.txs))
			}
		})
	}
}

func TestAggregateNoOrphanCategories(t *testing.T) {
	txs := []core.Transaction{
		tx("2024-03-01", "FOOD", "1"),
		tx("2024-03-02", "RENT", "900"),
		tx("2024-03-02", "", "12"),
		tx("2024-03-05", "TRAVEL", "n/a"),
		tx("2024-03-09", "FOOD", "3.25"),
	}
	agg, err := Aggregate(txs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := make(map[string]bool)
	for _, d := range agg.Daily {
		for cat := range d.Spending {
			seen[cat] = true
		}
	}
	for cat := range agg.Weekly {
		if !seen[cat] {
			t.Errorf("weekly category %s missing from daily buckets", cat)
		}
	}
	for cat := range agg.Monthly {
		if !seen[cat] {
			t.Errorf("monthly category %s missing from daily buckets", cat)
		}
	}
	if _, ok := agg.Weekly["TRAVEL"]; ok {
		t.Errorf("TRAVEL had no parsable amount and should be absent")
	}
}

func TestAggregateDoesNotMutateInput(t *testing.T) {
	txs := []core.Transaction{
		tx("2024-03-01", "FOOD", "-1"),
		tx("2024-03-03", "FOOD", "2"),
	}
	before := *txs[0].Amount
	if _, err := Aggregate(txs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *txs[0].Amount != before || len(txs) != 2 {
		t.Errorf("input was modified")
	}
}

func TestAggregateWithStats(t *testing.T) {
	_, stats, err := AggregateWithStats([]core.Transaction{
		tx("2024-03-01", "FOOD", "1"),
		tx("2024-03-01", "", "1"),
		tx("", "FOOD", "1"),
		tx("2024-03-01", "FOOD", ""),
		tx("2024-03-01", "FOOD", "x"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := AggregateStats{
		Inspected:        5,
		Used:             1,
		MissingAmount:    1,
		MissingDate:      1,
		MissingCategory:  1,
		UnparsableAmount: 1,
	}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if stats.Skipped() != 4 {
		t.Errorf("Skipped() = %d, want 4", stats.Skipped())
	}
}
