package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")

	// ErrFetchFailure marks a per-account read failure. The run continues
	// with the remaining accounts.
	ErrFetchFailure = errors.New("fetch failure")

	// ErrFatalDecryption aborts the whole run: without the account listing
	// there is nothing to process.
	ErrFatalDecryption = errors.New("fatal decryption failure")
)

// FetchError wraps a failed read or decrypt of one account's transactions.
type FetchError struct {
	AccountID string
	Op        string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s for account %s: %v", e.Op, e.AccountID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailure
}

func NewFetchError(accountID, op string, err error) *FetchError {
	return &FetchError{AccountID: accountID, Op: op, Err: err}
}
