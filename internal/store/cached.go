package store

import (
	"context"
	"log/slog"

	"spending/internal/cache"
	"spending/internal/core"
)

// CachedAccountStore memoizes user records by key so that accounts sharing
// an owner, and repeated runs of a long lived job, resolve each user once.
type CachedAccountStore struct {
	AccountStore
	users *cache.LRUCache[core.User]
}

func NewCachedAccountStore(next AccountStore, users *cache.LRUCache[core.User]) *CachedAccountStore {
	return &CachedAccountStore{AccountStore: next, users: users}
}

func (c *CachedAccountStore) ListUsersForAccounts(ctx context.Context, accounts []core.Account) ([]core.User, error) {
	var (
		out     []core.User
		missing []core.Account
		seen    = make(map[string]bool)
	)
	for _, a := range accounts {
		if seen[a.UserKey] {
			continue
		}
		seen[a.UserKey] = true
		if u, ok := c.users.Get(a.UserKey); ok {
			out = append(out, u)
			continue
		}
		missing = append(missing, a)
	}

	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.AccountStore.ListUsersForAccounts(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, u := range fetched {
		c.users.Set(u.Key, u)
	}
	slog.DebugContext(ctx, "User lookup",
		"component", "cache",
		"cached", len(out),
		"fetched", len(fetched))
	return append(out, fetched...), nil
}
