// Package worker replays stored spending summaries into the configured
// export when the job announces them over AMQP.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"spending/internal/amqp"
	"spending/internal/store"
)

// ExportWorker copies an account's stored summaries to the export
type ExportWorker struct {
	reader   store.SummaryReader
	accounts store.AccountStore
	exporter store.SummaryWriter
}

func NewExportWorker(reader store.SummaryReader, accounts store.AccountStore, exporter store.SummaryWriter) *ExportWorker {
	return &ExportWorker{
		reader:   reader,
		accounts: accounts,
		exporter: exporter,
	}
}

// HandleSummariesWritten exports the account named by a summaries written event.
func (w *ExportWorker) HandleSummariesWritten(ctx context.Context, msg *amqp.SummariesWrittenMessage) error {
	if msg == nil || msg.AccountID == "" {
		return errors.New("summaries written message without account id")
	}

	slog.InfoContext(ctx, "Processing summaries written message",
		"run_id", msg.RunID,
		"account_id", msg.AccountID,
		"months", msg.Months,
		"days", msg.Days)

	if err := w.exportAccount(ctx, msg.AccountID); err != nil {
		return fmt.Errorf("export account %s: %w", msg.AccountID, err)
	}
	return nil
}

// ResyncAll exports every account's stored summaries. It recovers from
// events lost while the worker was down. Per account failures are logged
// and counted, only a failing account listing is returned.
func (w *ExportWorker) ResyncAll(ctx context.Context) (exported, failed int, err error) {
	accounts, err := w.accounts.ListAccounts(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list accounts: %w", err)
	}

	for _, a := range accounts {
		if err := ctx.Err(); err != nil {
			return exported, failed, err
		}
		if err := w.exportAccount(ctx, a.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export summaries during resync",
				"account_id", a.ID, "error", err)
			failed++
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Summaries resync completed",
		"total", len(accounts),
		"exported", exported,
		"errors", failed)
	return exported, failed, nil
}

func (w *ExportWorker) exportAccount(ctx context.Context, accountID string) error {
	daily, aggs, err := w.reader.ReadSummaries(ctx, accountID)
	if err != nil {
		return fmt.Errorf("read summaries: %w", err)
	}
	// nothing stored yet, e.g. the account failed in its run
	if len(daily) == 0 && len(aggs) == 0 {
		slog.DebugContext(ctx, "No stored summaries, skipping export", "account_id", accountID)
		return nil
	}
	return w.exporter.WriteSummaries(ctx, accountID, daily, aggs)
}
