package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"spending/internal/core"
	applog "spending/internal/log"
	"spending/internal/store"
)

// Job is the scheduled entry point: it loads every tracked account, keeps
// the ones linked to a known user and hands them to the batch orchestrator.
// Running it twice against the same data and clock yields the same
// summaries.
type Job struct {
	accounts  store.AccountStore
	decrypter store.Decrypter
	processor *AggregationProcessor
	clock     func() time.Time
	logger    *applog.Logger
}

// JobOption customizes a Job.
type JobOption func(*Job)

// WithClock overrides the run time source.
func WithClock(clock func() time.Time) JobOption {
	return func(j *Job) { j.clock = clock }
}

func NewJob(accounts store.AccountStore, decrypter store.Decrypter, processor *AggregationProcessor, opts ...JobOption) *Job {
	j := &Job{
		accounts:  accounts,
		decrypter: decrypter,
		processor: processor,
		clock:     time.Now,
		logger: applog.New(applog.Config{
			Handler:   slog.Default().Handler(),
			Component: applog.ComponentJob,
		}),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run executes one aggregation run. A run id is attached to ctx when it
// does not carry one yet. Failing to list or decrypt the account listing
// aborts the run; per-account failures only show up in the report.
func (j *Job) Run(ctx context.Context) (*RunReport, error) {
	runID := applog.RunIDFrom(ctx)
	if runID == "" {
		runID = applog.NewRunID()
		ctx = applog.WithRunID(ctx, runID)
	}
	now := j.clock()

	j.logger.InfoContext(ctx, "Starting spending aggregation run",
		"process_time", now.UTC().Format(time.RFC3339))

	raw, err := j.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	accounts, err := j.decrypter.DecryptAccounts(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: accounts: %w", core.ErrFatalDecryption, err)
	}

	rawUsers, err := j.accounts.ListUsersForAccounts(ctx, accounts)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := j.decrypter.DecryptUsers(ctx, rawUsers)
	if err != nil {
		return nil, fmt.Errorf("%w: users: %w", core.ErrFatalDecryption, err)
	}

	linked, unlinked := linkAccounts(accounts, users)
	for _, acc := range unlinked {
		j.logger.WarnContext(ctx, "Skipping account without owner",
			applog.FieldAccountID, acc.ID,
			applog.FieldUserKey, acc.UserKey)
	}

	report, err := j.processor.RunBatch(ctx, linked, now)
	report.RunID = runID
	report.UnlinkedAccounts = len(unlinked)

	j.logger.InfoContext(ctx, "Spending aggregation run finished",
		applog.FieldAccounts, len(accounts),
		"users", len(users),
		"unlinked", len(unlinked),
		"succeeded", report.Succeeded,
		"failed", report.Failed(),
		"failures_by_reason", report.FailuresByReason(),
		"drop_rate", report.DropRate(),
		applog.FieldDurationHuman, report.Duration().String())

	return report, err
}

func linkAccounts(accounts []core.Account, users []core.User) (linked, unlinked []core.Account) {
	known := make(map[string]bool, len(users))
	for _, u := range users {
		known[u.Key] = true
	}
	for _, acc := range accounts {
		if known[acc.UserKey] {
			linked = append(linked, acc)
		} else {
			unlinked = append(unlinked, acc)
		}
	}
	return linked, unlinked
}
