package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"spending/internal/core"
)

type fakeSheets struct {
	titles   []string
	added    []string
	cleared  []string
	updated  map[string][][]any
	titleErr error
	calls    int
}

func (f *fakeSheets) SheetTitles(context.Context, string) ([]string, error) {
	f.calls++
	return f.titles, f.titleErr
}

func (f *fakeSheets) AddSheet(_ context.Context, _ string, title string) error {
	f.added = append(f.added, title)
	return nil
}

func (f *fakeSheets) Clear(_ context.Context, _ string, rng string) error {
	f.cleared = append(f.cleared, rng)
	return nil
}

func (f *fakeSheets) Update(_ context.Context, _ string, rng string, values [][]any) error {
	if f.updated == nil {
		f.updated = map[string][][]any{}
	}
	f.updated[rng] = values
	return nil
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWriteSummaries(t *testing.T) {
	api := &fakeSheets{titles: []string{"Summaries acc-1"}}
	e := newExporter(api, "sheet", "")

	aggs := core.MonthlySpendingAggregates{
		"2024-10": {Weekly: map[string]float64{"TRAVEL": 3.5}, Monthly: map[string]float64{"TRAVEL": 15}},
		"2024-9":  {Weekly: map[string]float64{"FOOD_AND_DRINK": 1, "TRAVEL": 2}, Monthly: map[string]float64{"FOOD_AND_DRINK": 4, "TRAVEL": 8}},
	}
	daily := []core.DailySpendingSummary{
		{Date: "2024-10-02", Spending: map[string]float64{"TRAVEL": 15}},
		{Date: "2024-09-01", Spending: map[string]float64{"TRAVEL": 8, "FOOD_AND_DRINK": 4}},
	}

	if err := e.WriteSummaries(context.Background(), "acc-1", daily, aggs); err != nil {
		t.Fatalf("WriteSummaries: %v", err)
	}
	if err := e.WriteSummaries(context.Background(), "acc-2", daily, aggs); err != nil {
		t.Fatalf("WriteSummaries: %v", err)
	}

	if api.calls != 1 {
		t.Errorf("sheet titles fetched %d times, want 1", api.calls)
	}
	if len(api.added) != 1 || api.added[0] != "Summaries acc-2" {
		t.Errorf("added sheets = %v", api.added)
	}
	if len(api.cleared) != 2 || api.cleared[0] != "'Summaries acc-1'!A:Z" {
		t.Errorf("cleared = %v", api.cleared)
	}

	rows := api.updated["'Summaries acc-1'!A1"]
	want := []string{
		"[Month Category Weekly Monthly]",
		"[2024-9 FOOD_AND_DRINK 1.00 4.00]",
		"[2024-9 TRAVEL 2.00 8.00]",
		"[2024-10 TRAVEL 3.50 15.00]",
		"[]",
		"[Date Category Amount]",
		"[2024-09-01 FOOD_AND_DRINK 4.00]",
		"[2024-09-01 TRAVEL 8.00]",
		"[2024-10-02 TRAVEL 15.00]",
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d: %v", len(rows), len(want), rows)
	}
	for i, row := range rows {
		if got := fmt.Sprint(row); got != want[i] {
			t.Errorf("row %d = %s, want %s", i, got, want[i])
		}
	}
}

func TestWriteSummaries_TitleLookupFails(t *testing.T) {
	api := &fakeSheets{titleErr: errors.New("quota exceeded")}
	e := newExporter(api, "sheet", "Spending")

	err := e.WriteSummaries(context.Background(), "acc-1", nil, core.MonthlySpendingAggregates{})
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("expected lookup error, got %v", err)
	}
	if len(api.cleared) != 0 {
		t.Errorf("nothing should be cleared when the sheet cannot be prepared")
	}
}

func TestSheetTitleAndQuoting(t *testing.T) {
	e := newExporter(&fakeSheets{}, "sheet", "Summaries")
	long := strings.Repeat("x", 200)
	if got := e.sheetTitle(long); len(got) != maxSheetTitle {
		t.Errorf("title length = %d, want %d", len(got), maxSheetTitle)
	}
	if got := quoteSheet("Bob's"); got != "'Bob''s'" {
		t.Errorf("quoteSheet = %s", got)
	}
}
