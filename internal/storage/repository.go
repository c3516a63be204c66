package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"spending/internal/core"
	"spending/internal/store"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListAccounts implements store.AccountStore
func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT item_id, user_key, institution_id, institution_name, created_at
		FROM accounts ORDER BY item_id`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var (
			a         core.Account
			createdAt string
		)
		if err := rows.Scan(&a.ID, &a.UserKey, &a.InstitutionID, &a.InstitutionName, &createdAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		if a.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("account %s created_at: %w", a.ID, err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ListUsersForAccounts implements store.AccountStore
func (r *SQLiteRepository) ListUsersForAccounts(ctx context.Context, accounts []core.Account) ([]core.User, error) {
	seen := make(map[string]bool, len(accounts))
	var keys []any
	for _, a := range accounts {
		if a.UserKey == "" || seen[a.UserKey] {
			continue
		}
		seen[a.UserKey] = true
		keys = append(keys, a.UserKey)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	query := `SELECT user_key, username, created_at FROM users WHERE user_key IN (` +
		placeholders(len(keys)) + `) ORDER BY user_key`
	rows, err := r.db.QueryContext(ctx, query, keys...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var (
			u         core.User
			createdAt string
		)
		if err := rows.Scan(&u.Key, &u.Username, &createdAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if u.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("user %s created_at: %w", u.Key, err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// QueryTransactions implements store.TransactionStore. Undated records are
// returned as well so the aggregation can count them as skipped.
func (r *SQLiteRepository) QueryTransactions(ctx context.Context, accountID string, dr core.DateRange) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT transaction_id, account_id, amount, iso_currency_code, date, category,
		       payment_channel, transaction_type, name
		FROM transactions
		WHERE account_id = ?
		  AND (date IS NULL OR substr(date, 1, 10) BETWEEN ? AND ?)
		ORDER BY date, transaction_id`,
		accountID, dr.Start.String(), dr.End.String())
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var (
			t                      core.Transaction
			amount, date, category sql.NullString
		)
		err := rows.Scan(&t.ID, &t.AccountID, &amount, &t.CurrencyCode, &date, &category,
			&t.PaymentChannel, &t.Type, &t.Name)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Amount = nullable(amount)
		t.Date = nullable(date)
		t.Category = nullable(category)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// WriteSummaries implements store.SummaryWriter. Previous rows for the
// account are replaced inside one transaction.
func (r *SQLiteRepository) WriteSummaries(ctx context.Context, accountID string, daily []core.DailySpendingSummary, aggs core.MonthlySpendingAggregates) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_summaries WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("delete daily summaries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM monthly_aggregates WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("delete monthly aggregates: %w", err)
	}

	for _, d := range daily {
		spending, err := json.Marshal(d.Spending)
		if err != nil {
			return fmt.Errorf("encode daily %s: %w", d.Date, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO daily_summaries (account_id, date, spending) VALUES (?, ?, ?)`,
			accountID, d.Date, string(spending))
		if err != nil {
			return fmt.Errorf("insert daily %s: %w", d.Date, err)
		}
	}

	updatedAt := r.now().UTC().Format(time.RFC3339)
	for key, agg := range aggs {
		weekly, err := json.Marshal(agg.Weekly)
		if err != nil {
			return fmt.Errorf("encode weekly %s: %w", key, err)
		}
		monthly, err := json.Marshal(agg.Monthly)
		if err != nil {
			return fmt.Errorf("encode monthly %s: %w", key, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO monthly_aggregates (account_id, month_key, weekly, monthly, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			accountID, key, string(weekly), string(monthly), updatedAt)
		if err != nil {
			return fmt.Errorf("insert aggregates %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit summaries: %w", err)
	}

	slog.DebugContext(ctx, "Summaries saved to SQLite",
		"account_id", accountID,
		"days", len(daily),
		"months", len(aggs))
	return nil
}

// ReadSummaries returns what was last written for the account. Each month's
// Daily slice is rebuilt from the daily rows, sorted by date.
func (r *SQLiteRepository) ReadSummaries(ctx context.Context, accountID string) ([]core.DailySpendingSummary, core.MonthlySpendingAggregates, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, spending FROM daily_summaries WHERE account_id = ? ORDER BY date`, accountID)
	if err != nil {
		return nil, nil, fmt.Errorf("query daily summaries: %w", err)
	}
	defer rows.Close()

	var daily []core.DailySpendingSummary
	for rows.Next() {
		var date, spending string
		if err := rows.Scan(&date, &spending); err != nil {
			return nil, nil, fmt.Errorf("scan daily summary: %w", err)
		}
		d := core.DailySpendingSummary{Date: date}
		if err := json.Unmarshal([]byte(spending), &d.Spending); err != nil {
			return nil, nil, fmt.Errorf("decode daily %s: %w", date, err)
		}
		daily = append(daily, d)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	mrows, err := r.db.QueryContext(ctx,
		`SELECT month_key, weekly, monthly FROM monthly_aggregates WHERE account_id = ?`, accountID)
	if err != nil {
		return nil, nil, fmt.Errorf("query monthly aggregates: %w", err)
	}
	defer mrows.Close()

	aggs := core.MonthlySpendingAggregates{}
	for mrows.Next() {
		var key, weekly, monthly string
		if err := mrows.Scan(&key, &weekly, &monthly); err != nil {
			return nil, nil, fmt.Errorf("scan monthly aggregates: %w", err)
		}
		var agg core.AggregatedSpending
		if err := json.Unmarshal([]byte(weekly), &agg.Weekly); err != nil {
			return nil, nil, fmt.Errorf("decode weekly %s: %w", key, err)
		}
		if err := json.Unmarshal([]byte(monthly), &agg.Monthly); err != nil {
			return nil, nil, fmt.Errorf("decode monthly %s: %w", key, err)
		}
		aggs[key] = agg
	}
	if err := mrows.Err(); err != nil {
		return nil, nil, err
	}

	for _, d := range daily {
		t, err := core.ParseDate(d.Date)
		if err != nil {
			continue
		}
		key := core.MonthKey(t.Year(), t.Month())
		if agg, ok := aggs[key]; ok {
			agg.Daily = append(agg.Daily, d)
			aggs[key] = agg
		}
	}
	return daily, aggs, nil
}

// SaveAccounts upserts accounts.
func (r *SQLiteRepository) SaveAccounts(ctx context.Context, accounts ...core.Account) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for _, a := range accounts {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO accounts (item_id, user_key, institution_id, institution_name, created_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(item_id) DO UPDATE SET
					user_key = excluded.user_key,
					institution_id = excluded.institution_id,
					institution_name = excluded.institution_name,
					created_at = excluded.created_at`,
				a.ID, a.UserKey, a.InstitutionID, a.InstitutionName, a.CreatedAt.UTC().Format(time.RFC3339Nano))
			if err != nil {
				return fmt.Errorf("save account %s: %w", a.ID, err)
			}
		}
		return nil
	})
}

// SaveUsers upserts users.
func (r *SQLiteRepository) SaveUsers(ctx context.Context, users ...core.User) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for _, u := range users {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO users (user_key, username, created_at) VALUES (?, ?, ?)
				ON CONFLICT(user_key) DO UPDATE SET
					username = excluded.username,
					created_at = excluded.created_at`,
				u.Key, u.Username, u.CreatedAt.UTC().Format(time.RFC3339Nano))
			if err != nil {
				return fmt.Errorf("save user %s: %w", u.Key, err)
			}
		}
		return nil
	})
}

// SaveTransactions upserts transactions.
func (r *SQLiteRepository) SaveTransactions(ctx context.Context, txs ...core.Transaction) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for _, t := range txs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO transactions (transaction_id, account_id, amount, iso_currency_code, date,
					category, payment_channel, transaction_type, name)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(transaction_id) DO UPDATE SET
					account_id = excluded.account_id,
					amount = excluded.amount,
					iso_currency_code = excluded.iso_currency_code,
					date = excluded.date,
					category = excluded.category,
					payment_channel = excluded.payment_channel,
					transaction_type = excluded.transaction_type,
					name = excluded.name`,
				t.ID, t.AccountID, t.Amount, t.CurrencyCode, t.Date, t.Category,
				t.PaymentChannel, t.Type, t.Name)
			if err != nil {
				return fmt.Errorf("save transaction %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// SummarizedAccounts lists account IDs that have monthly aggregates, sorted.
func (r *SQLiteRepository) SummarizedAccounts(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT account_id FROM monthly_aggregates`)
	if err != nil {
		return nil, fmt.Errorf("query summarized accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, rows.Err()
}
