package spending

import (
	"errors"
	"strings"
	"testing"

	"spending/internal/core"
)

func TestGroupByMonthPartitions(t *testing.T) {
	txs := []core.Transaction{
		tx("2024-01-05", "FOOD", "10"),
		tx("2024-01-20", "FOOD", "20"),
		tx("2024-02-01", "RENT", "800"),
		tx("2024-02-03T12:00:00Z", "FOOD", "4"),
		tx("", "FOOD", "99"),
		tx("2023-12-31", "TRAVEL", "50"),
	}

	aggs, stats, err := GroupWithStats(txs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
	if stats.Months != 3 {
		t.Errorf("Months = %d, want 3", stats.Months)
	}

	for _, key := range []string{"2024-1", "2024-2", "2023-12"} {
		if _, ok := aggs[key]; !ok {
			t.Errorf("missing month %s", key)
		}
	}

	// every daily date belongs to its month key
	for key, agg := range aggs {
		for _, d := range agg.Daily {
			when, err := core.ParseDate(d.Date)
			if err != nil {
				t.Fatalf("bad date key %q: %v", d.Date, err)
			}
			if got := core.MonthKey(when.Year(), when.Month()); got != key {
				t.Errorf("day %s filed under %s", d.Date, key)
			}
		}
	}

	if !almostEqual(aggs["2024-1"].Weekly["FOOD"], 14) {
		t.Errorf("2024-1 weekly FOOD = %v, want 14", aggs["2024-1"].Weekly["FOOD"])
	}
}

func TestGroupByMonthEmptyPartition(t *testing.T) {
	txs := []core.Transaction{
		tx("2024-01-05", "FOOD", "10"),
		tx("2024-02-05", "", "10"), // dated but uncategorized
	}
	_, err := GroupByMonth(txs)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "2024-2") {
		t.Errorf("error should name the month, got %q", err.Error())
	}
}

func TestGroupByMonthNoDatedTransactions(t *testing.T) {
	aggs, err := GroupByMonth([]core.Transaction{tx("", "FOOD", "1")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(aggs) != 0 {
		t.Errorf("expected no months, got %d", len(aggs))
	}
}

func TestFlattenDailySorted(t *testing.T) {
	aggs, err := GroupByMonth([]core.Transaction{
		tx("2024-02-10", "FOOD", "1"),
		tx("2024-01-20", "FOOD", "1"),
		tx("2024-02-01", "FOOD", "1"),
		tx("2024-01-02", "FOOD", "1"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	flat := FlattenDaily(aggs)
	want := []string{"2024-01-02", "2024-01-20", "2024-02-01", "2024-02-10"}
	if len(flat) != len(want) {
		t.Fatalf("len = %d, want %d", len(flat), len(want))
	}
	for i, d := range flat {
		if d.Date != want[i] {
			t.Errorf("flat[%d] = %s, want %s", i, d.Date, want[i])
		}
	}
}
