// Package google exports spending summaries to a Google Sheets spreadsheet,
// one tab per account.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spending/internal/core"
	"spending/internal/store"
)

// maxSheetTitle is the longest tab title Sheets accepts.
const maxSheetTitle = 100

type Config struct {
	SpreadsheetID      string
	SheetName          string // tab title prefix, e.g. "Summaries"
	ServiceAccountJSON string
	ServiceAccountFile string
}

// sheetsAPI is the slice of the Sheets API the exporter needs.
type sheetsAPI interface {
	SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error)
	AddSheet(ctx context.Context, spreadsheetID, title string) error
	Clear(ctx context.Context, spreadsheetID, rng string) error
	Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error
}

type Exporter struct {
	api           sheetsAPI
	spreadsheetID string
	sheetName     string

	mu    sync.Mutex
	known map[string]bool // tab titles known to exist
}

var _ store.SummaryWriter = (*Exporter)(nil)

// New creates an exporter authenticated with service account credentials.
func New(ctx context.Context, cfg Config) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newExporter(serviceAPI{svc: svc}, cfg.SpreadsheetID, cfg.SheetName), nil
}

func newExporter(api sheetsAPI, spreadsheetID, sheetName string) *Exporter {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Summaries"
	}
	return &Exporter{
		api:           api,
		spreadsheetID: spreadsheetID,
		sheetName:     strings.TrimSpace(sheetName),
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Inline JSON wins over the credentials file.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		credentialsJSON = []byte(cfg.ServiceAccountJSON)
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		var err error
		credentialsJSON, err = os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// WriteSummaries implements store.SummaryWriter. The account tab is created
// on first use, then cleared and rewritten.
func (e *Exporter) WriteSummaries(ctx context.Context, accountID string, daily []core.DailySpendingSummary, aggs core.MonthlySpendingAggregates) error {
	title := e.sheetTitle(accountID)
	if err := e.ensureSheet(ctx, title); err != nil {
		return fmt.Errorf("prepare sheet %s: %w", title, err)
	}

	ref := quoteSheet(title)
	if err := e.api.Clear(ctx, e.spreadsheetID, ref+"!A:Z"); err != nil {
		return fmt.Errorf("clear %s: %w", title, err)
	}
	rows := buildRows(daily, aggs)
	if err := e.api.Update(ctx, e.spreadsheetID, ref+"!A1", rows); err != nil {
		return fmt.Errorf("update %s: %w", title, err)
	}

	slog.DebugContext(ctx, "Summaries exported to Google Sheets",
		"account_id", accountID,
		"sheet", title,
		"rows", len(rows))
	return nil
}

func (e *Exporter) ensureSheet(ctx context.Context, title string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.known == nil {
		titles, err := e.api.SheetTitles(ctx, e.spreadsheetID)
		if err != nil {
			return err
		}
		e.known = make(map[string]bool, len(titles))
		for _, t := range titles {
			e.known[t] = true
		}
	}
	if e.known[title] {
		return nil
	}
	if err := e.api.AddSheet(ctx, e.spreadsheetID, title); err != nil {
		return err
	}
	e.known[title] = true
	return nil
}

func (e *Exporter) sheetTitle(accountID string) string {
	title := e.sheetName + " " + accountID
	if len(title) > maxSheetTitle {
		title = title[:maxSheetTitle]
	}
	return title
}

// buildRows lays out the monthly aggregates followed by the daily totals.
// Months and dates are sorted, categories alphabetical within each.
func buildRows(daily []core.DailySpendingSummary, aggs core.MonthlySpendingAggregates) [][]any {
	rows := [][]any{{"Month", "Category", "Weekly", "Monthly"}}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return monthLess(keys[i], keys[j]) })
	for _, k := range keys {
		agg := aggs[k]
		for _, cat := range sortedKeys(agg.Monthly) {
			rows = append(rows, []any{k, cat, core.FormatAmount(agg.Weekly[cat]), core.FormatAmount(agg.Monthly[cat])})
		}
	}

	rows = append(rows, []any{}, []any{"Date", "Category", "Amount"})
	days := make([]core.DailySpendingSummary, len(daily))
	copy(days, daily)
	sort.SliceStable(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	for _, d := range days {
		for _, cat := range sortedKeys(d.Spending) {
			rows = append(rows, []any{d.Date, cat, core.FormatAmount(d.Spending[cat])})
		}
	}
	return rows
}

// monthLess orders "YYYY-M" keys chronologically ("2024-9" before "2024-10").
func monthLess(a, b string) bool {
	var ay, am, by, bm int
	if _, err := fmt.Sscanf(a, "%d-%d", &ay, &am); err != nil {
		return a < b
	}
	if _, err := fmt.Sscanf(b, "%d-%d", &by, &bm); err != nil {
		return a < b
	}
	if ay != by {
		return ay < by
	}
	return am < bm
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// quoteSheet quotes a tab title for A1 notation.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// serviceAPI adapts the generated Sheets client.
type serviceAPI struct {
	svc *gsheet.Service
}

func (s serviceAPI) SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error) {
	resp, err := s.svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet: %w", err)
	}
	titles := make([]string, 0, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}
	return titles, nil
}

func (s serviceAPI) AddSheet(ctx context.Context, spreadsheetID, title string) error {
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	_, err := s.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return err
}

func (s serviceAPI) Clear(ctx context.Context, spreadsheetID, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (s serviceAPI) Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error {
	vr := &gsheet.ValueRange{Values: values}
	_, err := s.svc.Spreadsheets.Values.Update(spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}
