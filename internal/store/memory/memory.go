package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"spending/internal/core"
	"spending/internal/store"
)

// Written is what the last WriteSummaries call stored for an account.
type Written struct {
	Daily      []core.DailySpendingSummary
	Aggregates core.MonthlySpendingAggregates
	Writes     int
}

// Store keeps accounts, users, transactions and summaries in memory.
type Store struct {
	mu        sync.Mutex
	accounts  []core.Account
	users     map[string]core.User
	txs       map[string][]core.Transaction
	summaries map[string]Written
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:     make(map[string]core.User),
		txs:       make(map[string][]core.Transaction),
		summaries: make(map[string]Written),
	}
}

type (
	accountRecord struct {
		ID              string    `json:"item_id"`
		UserKey         string    `json:"user_key"`
		InstitutionID   string    `json:"institution_id"`
		InstitutionName string    `json:"institution_name"`
		CreatedAt       time.Time `json:"created_at"`
	}

	userRecord struct {
		Key       string    `json:"key"`
		Username  string    `json:"username"`
		CreatedAt time.Time `json:"created_at"`
	}

	transactionRecord struct {
		ID             string  `json:"transaction_id"`
		AccountID      string  `json:"account_id"`
		Amount         *string `json:"amount"`
		CurrencyCode   string  `json:"iso_currency_code"`
		Date           *string `json:"date"`
		Category       *string `json:"category"`
		PaymentChannel string  `json:"payment_channel"`
		Type           string  `json:"transaction_type"`
		Name           string  `json:"name"`
	}
)

// NewFromFiles seeds a store from accounts.json, users.json and
// transactions.json under base. Missing files leave the store empty; a file
// that exists but does not decode is an error.
func NewFromFiles(base string) (*Store, error) {
	s := New()

	var accounts []accountRecord
	if err := readJSON(filepath.Join(base, "accounts.json"), &accounts); err != nil {
		return nil, err
	}
	for _, a := range accounts {
		s.AddAccount(core.Account(a))
	}

	var users []userRecord
	if err := readJSON(filepath.Join(base, "users.json"), &users); err != nil {
		return nil, err
	}
	for _, u := range users {
		s.AddUser(core.User(u))
	}

	var txs []transactionRecord
	if err := readJSON(filepath.Join(base, "transactions.json"), &txs); err != nil {
		return nil, err
	}
	for _, t := range txs {
		s.AddTransactions(core.Transaction(t))
	}
	return s, nil
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (s *Store) AddAccount(a core.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = append(s.accounts, a)
}

func (s *Store) AddUser(u core.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Key] = u
}

func (s *Store) AddTransactions(txs ...core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range txs {
		s.txs[t.AccountID] = append(s.txs[t.AccountID], t)
	}
}

func (s *Store) ListAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Account(nil), s.accounts...), nil
}

func (s *Store) ListUsersForAccounts(_ context.Context, accounts []core.Account) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []core.User
	for _, a := range accounts {
		if seen[a.UserKey] {
			continue
		}
		seen[a.UserKey] = true
		if u, ok := s.users[a.UserKey]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// QueryTransactions returns the account's transactions dated within r.
// Records without a date cannot be placed in a range and are returned as is;
// the month grouping drops them.
func (s *Store) QueryTransactions(_ context.Context, accountID string, r core.DateRange) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.txs[accountID] {
		if t.Date == nil {
			out = append(out, t)
			continue
		}
		when, err := core.ParseDate(*t.Date)
		if err != nil || r.Contains(when) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) WriteSummaries(_ context.Context, accountID string, daily []core.DailySpendingSummary, aggs core.MonthlySpendingAggregates) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.summaries[accountID]
	s.summaries[accountID] = Written{
		Daily:      append([]core.DailySpendingSummary(nil), daily...),
		Aggregates: aggs,
		Writes:     prev.Writes + 1,
	}
	return nil
}

// ReadSummaries implements store.SummaryReader.
func (s *Store) ReadSummaries(_ context.Context, accountID string) ([]core.DailySpendingSummary, core.MonthlySpendingAggregates, error) {
	w, _ := s.Summaries(accountID)
	return w.Daily, w.Aggregates, nil
}

// Summaries returns what was last written for accountID.
func (s *Store) Summaries(accountID string) (Written, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.summaries[accountID]
	return w, ok
}

// SummarizedAccounts lists the accounts that have summaries, sorted.
func (s *Store) SummarizedAccounts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.summaries))
	for id := range s.summaries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
