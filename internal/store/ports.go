// Package store declares the collaborators the aggregation pipeline reads
// from and writes to. Implementations live in the sub packages and in
// internal/storage.
package store

import (
	"context"

	"spending/internal/core"
)

// Ports for outbound adapters.
type (
	AccountStore interface {
		ListAccounts(ctx context.Context) ([]core.Account, error)
		// ListUsersForAccounts returns the distinct owners of accounts. Accounts
		// whose owner is missing are simply not represented.
		ListUsersForAccounts(ctx context.Context, accounts []core.Account) ([]core.User, error)
	}

	TransactionStore interface {
		// QueryTransactions returns the account's transactions dated within r,
		// both ends inclusive.
		QueryTransactions(ctx context.Context, accountID string, r core.DateRange) ([]core.Transaction, error)
	}

	// SummaryWriter replaces everything previously written for the account.
	SummaryWriter interface {
		WriteSummaries(ctx context.Context, accountID string, daily []core.DailySpendingSummary, aggs core.MonthlySpendingAggregates) error
	}

	// SummaryReader returns what the last WriteSummaries stored for the
	// account. Accounts never written yield empty results, not an error.
	SummaryReader interface {
		ReadSummaries(ctx context.Context, accountID string) ([]core.DailySpendingSummary, core.MonthlySpendingAggregates, error)
	}

	Decrypter interface {
		DecryptAccounts(ctx context.Context, accounts []core.Account) ([]core.Account, error)
		DecryptUsers(ctx context.Context, users []core.User) ([]core.User, error)
		DecryptTransactions(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error)
	}

	// Store bundles the read and write sides of one backend.
	Store interface {
		AccountStore
		TransactionStore
		SummaryWriter
		SummaryReader
	}
)
