package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"spending/internal/core"
	"spending/internal/crypto"
	"spending/internal/store/memory"
)

var errBackend = errors.New("backend unavailable")

// flakyTxStore wraps the memory store and fails or panics for chosen accounts.
type flakyTxStore struct {
	*memory.Store
	failFor  map[string]bool
	panicFor map[string]bool

	mu      sync.Mutex
	ranges  map[string]core.DateRange
	current int64
	peak    int64
	delay   time.Duration
}

func newFlakyTxStore(s *memory.Store) *flakyTxStore {
	return &flakyTxStore{
		Store:    s,
		failFor:  map[string]bool{},
		panicFor: map[string]bool{},
		ranges:   map[string]core.DateRange{},
	}
}

func (f *flakyTxStore) QueryTransactions(ctx context.Context, accountID string, r core.DateRange) ([]core.Transaction, error) {
	n := atomic.AddInt64(&f.current, 1)
	defer atomic.AddInt64(&f.current, -1)
	for {
		p := atomic.LoadInt64(&f.peak)
		if n <= p || atomic.CompareAndSwapInt64(&f.peak, p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.ranges[accountID] = r
	f.mu.Unlock()

	if f.panicFor[accountID] {
		panic("corrupted record for " + accountID)
	}
	if f.failFor[accountID] {
		return nil, errBackend
	}
	return f.Store.QueryTransactions(ctx, accountID, r)
}

func (f *flakyTxStore) rangeFor(accountID string) (core.DateRange, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.ranges[accountID]
	return r, ok
}

type failingWriter struct {
	*memory.Store
	failFor map[string]bool
}

func (w *failingWriter) WriteSummaries(ctx context.Context, accountID string, daily []core.DailySpendingSummary, aggs core.MonthlySpendingAggregates) error {
	if w.failFor[accountID] {
		return errBackend
	}
	return w.Store.WriteSummaries(ctx, accountID, daily, aggs)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) PublishSummariesWritten(_ context.Context, runID, accountID string, months, days int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, fmt.Sprintf("%s:%s:%d:%d", runID, accountID, months, days))
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type failingDecrypter struct {
	crypto.NoopDecrypter
	failAccounts bool
	failUsers    bool
}

func (d failingDecrypter) DecryptAccounts(ctx context.Context, a []core.Account) ([]core.Account, error) {
	if d.failAccounts {
		return nil, errors.New("kms unavailable")
	}
	return d.NoopDecrypter.DecryptAccounts(ctx, a)
}

func (d failingDecrypter) DecryptUsers(ctx context.Context, u []core.User) ([]core.User, error) {
	if d.failUsers {
		return nil, errors.New("kms unavailable")
	}
	return d.NoopDecrypter.DecryptUsers(ctx, u)
}

var fixedNow = time.Date(2024, 5, 15, 6, 0, 0, 0, time.UTC)

// seedAccounts adds n accounts, each owned by user "u<i>", created 20 days
// before fixedNow, with two categorized transactions.
func seedAccounts(s *memory.Store, n int) []core.Account {
	var accounts []core.Account
	for i := 0; i < n; i++ {
		acc := core.Account{
			ID:        fmt.Sprintf("acc-%03d", i),
			UserKey:   fmt.Sprintf("u%03d", i),
			CreatedAt: fixedNow.AddDate(0, 0, -20),
		}
		s.AddAccount(acc)
		s.AddUser(core.User{Key: acc.UserKey, Username: "user"})
		s.AddTransactions(
			core.Transaction{ID: acc.ID + "-1", AccountID: acc.ID, Date: core.Str("2024-05-01"), Amount: core.Str("-10"), Category: core.Str("FOOD_AND_DRINK")},
			core.Transaction{ID: acc.ID + "-2", AccountID: acc.ID, Date: core.Str("2024-05-08"), Amount: core.Str("5"), Category: core.Str("TRAVEL")},
		)
		accounts = append(accounts, acc)
	}
	return accounts
}
