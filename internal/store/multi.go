package store

import (
	"context"
	"errors"
	"fmt"

	"spending/internal/core"
)

// MultiWriter fans a summary write out to several writers. Every writer is
// attempted; the returned error joins all failures.
type MultiWriter struct {
	writers []SummaryWriter
}

var _ SummaryWriter = (*MultiWriter)(nil)

func NewMultiWriter(writers ...SummaryWriter) *MultiWriter {
	var ws []SummaryWriter
	for _, w := range writers {
		if w != nil {
			ws = append(ws, w)
		}
	}
	return &MultiWriter{writers: ws}
}

func (m *MultiWriter) WriteSummaries(ctx context.Context, accountID string, daily []core.DailySpendingSummary, aggs core.MonthlySpendingAggregates) error {
	var errs []error
	for i, w := range m.writers {
		if err := w.WriteSummaries(ctx, accountID, daily, aggs); err != nil {
			errs = append(errs, fmt.Errorf("writer %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of wrapped writers.
func (m *MultiWriter) Len() int {
	return len(m.writers)
}
