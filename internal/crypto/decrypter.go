package crypto

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"spending/internal/core"
	"spending/internal/store"
)

const maxConcurrentBatches = 8

// FieldDecrypter implements store.Decrypter on top of a Cipher. Records are
// processed in batches of BatchSize with a bounded number of batches in
// flight.
type FieldDecrypter struct {
	cipher    *Cipher
	batchSize int
}

var _ store.Decrypter = (*FieldDecrypter)(nil)

func NewFieldDecrypter(c *Cipher, batchSize int) *FieldDecrypter {
	if batchSize < 1 {
		batchSize = 100
	}
	return &FieldDecrypter{cipher: c, batchSize: batchSize}
}

func (d *FieldDecrypter) DecryptAccounts(ctx context.Context, accounts []core.Account) ([]core.Account, error) {
	return decryptBatched(ctx, accounts, d.batchSize, func(a core.Account) (core.Account, error) {
		var err error
		if a.InstitutionID, err = d.cipher.Decrypt(a.InstitutionID); err != nil {
			return a, fmt.Errorf("account %s institution id: %w", a.ID, err)
		}
		if a.InstitutionName, err = d.cipher.Decrypt(a.InstitutionName); err != nil {
			return a, fmt.Errorf("account %s institution name: %w", a.ID, err)
		}
		return a, nil
	})
}

func (d *FieldDecrypter) DecryptUsers(ctx context.Context, users []core.User) ([]core.User, error) {
	return decryptBatched(ctx, users, d.batchSize, func(u core.User) (core.User, error) {
		var err error
		if u.Username, err = d.cipher.Decrypt(u.Username); err != nil {
			return u, fmt.Errorf("user %s username: %w", u.Key, err)
		}
		return u, nil
	})
}

func (d *FieldDecrypter) DecryptTransactions(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	return decryptBatched(ctx, txs, d.batchSize, func(t core.Transaction) (core.Transaction, error) {
		var err error
		if t.Amount, err = d.cipher.decryptPtr(t.Amount); err != nil {
			return t, fmt.Errorf("transaction %s amount: %w", t.ID, err)
		}
		if t.Category, err = d.cipher.decryptPtr(t.Category); err != nil {
			return t, fmt.Errorf("transaction %s category: %w", t.ID, err)
		}
		for _, f := range []*string{&t.Name, &t.CurrencyCode, &t.PaymentChannel, &t.Type} {
			if *f, err = d.cipher.Decrypt(*f); err != nil {
				return t, fmt.Errorf("transaction %s: %w", t.ID, err)
			}
		}
		return t, nil
	})
}

// decryptBatched applies fn to every item and returns the results in input
// order. The input slice is not modified.
func decryptBatched[T any](ctx context.Context, items []T, batchSize int, fn func(T) (T, error)) ([]T, error) {
	out := make([]T, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBatches)

	for start := 0; start < len(items); start += batchSize {
		start := start
		end := min(start+batchSize, len(items))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				v, err := fn(items[i])
				if err != nil {
					return err
				}
				out[i] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// NoopDecrypter returns records unchanged. Used when no key is configured.
type NoopDecrypter struct{}

var _ store.Decrypter = NoopDecrypter{}

func (NoopDecrypter) DecryptAccounts(_ context.Context, accounts []core.Account) ([]core.Account, error) {
	return accounts, nil
}

func (NoopDecrypter) DecryptUsers(_ context.Context, users []core.User) ([]core.User, error) {
	return users, nil
}

func (NoopDecrypter) DecryptTransactions(_ context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	return txs, nil
}
