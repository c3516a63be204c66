package services

import (
	"sort"
	"sync"
	"time"
)

// Failure reasons recorded per account.
const (
	ReasonFetch      = "fetch"
	ReasonEmptyInput = "empty_input"
	ReasonAggregate  = "aggregate"
	ReasonWrite      = "write"
	ReasonPanic      = "panic"
	ReasonCanceled   = "canceled"
)

// AccountFailure describes why one account produced no summaries.
type AccountFailure struct {
	AccountID string
	Reason    string
	Err       error
}

// RunReport is the outcome of one job run. Concurrent account pipelines
// record into it; read it only after the run returned.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Accounts         int // accounts handed to the batch
	Chunks           int
	Succeeded        int
	Failures         []AccountFailure
	UnlinkedAccounts int // dropped before the batch: owner not found

	TransactionsRead    int
	DroppedTransactions int // undated, left out of every month
	MonthsWritten       int
	DaysWritten         int

	mu sync.Mutex
}

func (r *RunReport) recordSuccess(txRead, dropped, months, days int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Succeeded++
	r.TransactionsRead += txRead
	r.DroppedTransactions += dropped
	r.MonthsWritten += months
	r.DaysWritten += days
}

func (r *RunReport) recordFailure(accountID, reason string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures = append(r.Failures, AccountFailure{AccountID: accountID, Reason: reason, Err: err})
}

// recordRead counts transactions read for an account that later failed.
func (r *RunReport) recordRead(txRead int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.TransactionsRead += txRead
}

// Failed is the number of accounts that failed.
func (r *RunReport) Failed() int {
	return len(r.Failures)
}

// FailedAccountIDs returns the failed account ids sorted.
func (r *RunReport) FailedAccountIDs() []string {
	ids := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		ids = append(ids, f.AccountID)
	}
	sort.Strings(ids)
	return ids
}

// FailuresByReason counts failures per reason.
func (r *RunReport) FailuresByReason() map[string]int {
	out := make(map[string]int)
	for _, f := range r.Failures {
		out[f.Reason]++
	}
	return out
}

// DropRate is the share of read transactions that carried no usable date.
func (r *RunReport) DropRate() float64 {
	if r.TransactionsRead == 0 {
		return 0
	}
	return float64(r.DroppedTransactions) / float64(r.TransactionsRead)
}

func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
