package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"spending/internal/core"
	applog "spending/internal/log"
	"spending/internal/spending"
	"spending/internal/store"
)

// EventPublisher announces that an account's summaries were rewritten.
type EventPublisher interface {
	PublishSummariesWritten(ctx context.Context, runID, accountID string, months, days int) error
}

// AggregationConfig holds configuration for the batch orchestrator
type AggregationConfig struct {
	// ChunkSize bounds how many accounts are processed concurrently (default: 100)
	ChunkSize int

	// LookbackDays bounds how far back a window may start (default: 90)
	LookbackDays int
}

// DefaultAggregationConfig returns sensible defaults
func DefaultAggregationConfig() AggregationConfig {
	return AggregationConfig{
		ChunkSize:    100,
		LookbackDays: spending.LookbackDays,
	}
}

// AggregationProcessor computes and writes spending summaries for a batch of
// accounts. Chunks run one after another; the accounts of a chunk run
// concurrently and a failing account never affects its siblings.
type AggregationProcessor struct {
	txs       store.TransactionStore
	decrypter store.Decrypter
	writer    store.SummaryWriter
	publisher EventPublisher
	config    AggregationConfig
	logger    *applog.Logger
}

// NewAggregationProcessor creates a new processor. publisher may be nil.
func NewAggregationProcessor(
	txs store.TransactionStore,
	decrypter store.Decrypter,
	writer store.SummaryWriter,
	publisher EventPublisher,
	config AggregationConfig,
) *AggregationProcessor {
	if config.ChunkSize < 1 {
		config.ChunkSize = DefaultAggregationConfig().ChunkSize
	}
	if config.LookbackDays < 1 {
		config.LookbackDays = spending.LookbackDays
	}
	return &AggregationProcessor{
		txs:       txs,
		decrypter: decrypter,
		writer:    writer,
		publisher: publisher,
		config:    config,
		logger: applog.New(applog.Config{
			Handler:   slog.Default().Handler(),
			Component: applog.ComponentAggregation,
		}),
	}
}

// RunBatch processes accounts against the fixed instant now. The returned
// error is non-nil only when ctx ends before every chunk was scheduled; the
// report is returned either way.
func (p *AggregationProcessor) RunBatch(ctx context.Context, accounts []core.Account, now time.Time) (*RunReport, error) {
	report := &RunReport{
		RunID:     applog.RunIDFrom(ctx),
		StartedAt: time.Now(),
		Accounts:  len(accounts),
	}
	defer func() { report.FinishedAt = time.Now() }()

	chunks := chunkAccounts(accounts, p.config.ChunkSize)
	p.logger.InfoContext(ctx, "Starting aggregation batch",
		applog.FieldAccounts, len(accounts),
		applog.FieldChunkSize, p.config.ChunkSize,
		"chunks", len(chunks),
		"process_time", now.UTC().Format(time.RFC3339))

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			for _, rest := range chunks[i:] {
				for _, acc := range rest {
					report.recordFailure(acc.ID, ReasonCanceled, err)
				}
			}
			p.logger.WarnContext(ctx, "Aggregation batch interrupted",
				applog.FieldChunk, i+1,
				"remaining_chunks", len(chunks)-i,
				applog.FieldError, err)
			return report, fmt.Errorf("run batch: %w", err)
		}

		report.Chunks++
		start := time.Now()

		var g errgroup.Group
		for _, acc := range chunk {
			acc := acc
			g.Go(func() error {
				p.runAccount(ctx, acc, now, report)
				return nil
			})
		}
		_ = g.Wait()

		p.logger.DebugContext(ctx, "Chunk processed",
			applog.FieldChunk, i+1,
			applog.FieldAccounts, len(chunk),
			applog.FieldDuration, time.Since(start).Milliseconds())
	}

	p.logger.InfoContext(ctx, "Aggregation batch completed",
		applog.FieldAccounts, report.Accounts,
		"succeeded", report.Succeeded,
		"failed", report.Failed(),
		applog.FieldTransactions, report.TransactionsRead,
		applog.FieldDropped, report.DroppedTransactions)

	return report, nil
}

// runAccount runs the pipeline for one account and records the outcome.
func (p *AggregationProcessor) runAccount(ctx context.Context, acc core.Account, now time.Time, report *RunReport) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			report.recordFailure(acc.ID, ReasonPanic, err)
			p.logger.ErrorContext(ctx, "Account pipeline panicked",
				applog.FieldAccountID, acc.ID,
				applog.FieldError, err,
				"error_type", applog.ErrorTypeInternal)
		}
	}()

	res, err := p.ProcessAccount(ctx, acc, now)
	if err != nil {
		reason := classify(err)
		report.recordRead(res.TransactionsRead)
		report.recordFailure(acc.ID, reason, err)
		p.logger.ErrorContext(ctx, "Account aggregation failed",
			applog.FieldAccountID, acc.ID,
			applog.FieldReason, reason,
			applog.FieldError, err)
		return
	}
	report.recordSuccess(res.TransactionsRead, res.Dropped, res.Months, res.Days)
}

// AccountResult summarizes one successful account pipeline.
type AccountResult struct {
	Window           core.DateRange
	TransactionsRead int
	Dropped          int
	Months           int
	Days             int
}

// ProcessAccount computes the window, reads and decrypts the account's
// transactions, groups them by month and overwrites the account summaries.
func (p *AggregationProcessor) ProcessAccount(ctx context.Context, acc core.Account, now time.Time) (AccountResult, error) {
	var res AccountResult
	res.Window = spending.ComputeWindow(acc.CreatedAt, now, p.config.LookbackDays)

	raw, err := p.txs.QueryTransactions(ctx, acc.ID, res.Window)
	if err != nil {
		return res, core.NewFetchError(acc.ID, "query transactions", err)
	}
	res.TransactionsRead = len(raw)

	txs, err := p.decrypter.DecryptTransactions(ctx, raw)
	if err != nil {
		return res, core.NewFetchError(acc.ID, "decrypt transactions", err)
	}

	aggs, stats, err := spending.GroupWithStats(txs)
	if err != nil {
		return res, fmt.Errorf("group account %s: %w", acc.ID, err)
	}
	res.Dropped = stats.Dropped
	res.Months = len(aggs)

	daily := spending.FlattenDaily(aggs)
	res.Days = len(daily)

	if err := p.writer.WriteSummaries(ctx, acc.ID, daily, aggs); err != nil {
		return res, &writeError{accountID: acc.ID, err: err}
	}

	p.logger.DebugContext(ctx, "Account summaries written",
		applog.FieldAccountID, acc.ID,
		applog.FieldWindowStart, res.Window.Start.String(),
		applog.FieldWindowEnd, res.Window.End.String(),
		applog.FieldTransactions, res.TransactionsRead,
		applog.FieldMonths, res.Months,
		applog.FieldDays, res.Days)

	if p.publisher != nil {
		if err := p.publisher.PublishSummariesWritten(ctx, applog.RunIDFrom(ctx), acc.ID, res.Months, res.Days); err != nil {
			p.logger.WarnContext(ctx, "Failed to publish summaries event",
				applog.FieldAccountID, acc.ID,
				applog.FieldOperation, applog.OpPublish,
				applog.FieldError, err)
		}
	}
	return res, nil
}

type writeError struct {
	accountID string
	err       error
}

func (e *writeError) Error() string {
	return fmt.Sprintf("write summaries for account %s: %v", e.accountID, e.err)
}

func (e *writeError) Unwrap() error { return e.err }

func classify(err error) string {
	var we *writeError
	switch {
	case errors.Is(err, core.ErrFetchFailure):
		return ReasonFetch
	case errors.Is(err, spending.ErrEmptyInput):
		return ReasonEmptyInput
	case errors.As(err, &we):
		return ReasonWrite
	default:
		return ReasonAggregate
	}
}

func chunkAccounts(accounts []core.Account, size int) [][]core.Account {
	var chunks [][]core.Account
	for start := 0; start < len(accounts); start += size {
		end := min(start+size, len(accounts))
		chunks = append(chunks, accounts[start:end])
	}
	return chunks
}
