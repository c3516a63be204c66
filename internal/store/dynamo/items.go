package dynamo

import (
	"fmt"
	"strings"
	"time"

	"spending/internal/core"
)

// Key layout of the single table
const (
	accountsPK        = "ITEMS"
	userProfileSK     = "PROFILE"
	transactionPrefix = "TRANSACTION#"
	dailyPrefix       = "DAILY#"
	monthlyPrefix     = "MONTHLY#"

	summaryTypeDaily   = "DAILY"
	summaryTypeMonthly = "MONTHLY"
)

func accountSK(userKey, itemID string) string { return "USER#" + userKey + "#ITEM#" + itemID }
func userPK(userKey string) string            { return "USER#" + userKey }
func transactionsPK(itemID string) string     { return "ITEM#" + itemID + "#TRANSACTIONS" }
func summariesPK(itemID string) string        { return "ITEM#" + itemID + "#SUMMARIES" }

// transactionSK sorts transactions by date inside an account partition.
// Undated transactions sort before every dated one.
func transactionSK(t core.Transaction) string {
	date := ""
	if t.Date != nil {
		date = *t.Date
		if len(date) > 10 {
			date = date[:10]
		}
	}
	return transactionPrefix + date + "#" + t.ID
}

type accountItem struct {
	PK              string `dynamodbav:"pk"`
	SK              string `dynamodbav:"sk"`
	ItemID          string `dynamodbav:"item_id"`
	UserKey         string `dynamodbav:"user_key"`
	InstitutionID   string `dynamodbav:"institution_id"`
	InstitutionName string `dynamodbav:"institution_name"`
	CreatedAt       string `dynamodbav:"created_at"`
}

func accountItemFrom(a core.Account) accountItem {
	return accountItem{
		PK:              accountsPK,
		SK:              accountSK(a.UserKey, a.ID),
		ItemID:          a.ID,
		UserKey:         a.UserKey,
		InstitutionID:   a.InstitutionID,
		InstitutionName: a.InstitutionName,
		CreatedAt:       a.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (i accountItem) toCore() (core.Account, error) {
	created, err := parseTimestamp(i.CreatedAt)
	if err != nil {
		return core.Account{}, fmt.Errorf("account %s created_at: %w", i.ItemID, err)
	}
	userKey := i.UserKey
	if userKey == "" {
		// older items only carry the owner inside the sort key
		userKey, _ = strings.CutPrefix(i.SK, "USER#")
		userKey, _, _ = strings.Cut(userKey, "#ITEM#")
	}
	return core.Account{
		ID:              i.ItemID,
		UserKey:         userKey,
		InstitutionID:   i.InstitutionID,
		InstitutionName: i.InstitutionName,
		CreatedAt:       created,
	}, nil
}

type userItem struct {
	PK        string `dynamodbav:"pk"`
	SK        string `dynamodbav:"sk"`
	Username  string `dynamodbav:"username"`
	CreatedAt string `dynamodbav:"created_at"`
}

func userItemFrom(u core.User) userItem {
	return userItem{
		PK:        userPK(u.Key),
		SK:        userProfileSK,
		Username:  u.Username,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (i userItem) toCore() (core.User, error) {
	created, err := parseTimestamp(i.CreatedAt)
	if err != nil {
		return core.User{}, fmt.Errorf("user %s created_at: %w", i.PK, err)
	}
	return core.User{
		Key:       strings.TrimPrefix(i.PK, "USER#"),
		Username:  i.Username,
		CreatedAt: created,
	}, nil
}

type transactionItem struct {
	PK              string  `dynamodbav:"pk"`
	SK              string  `dynamodbav:"sk"`
	TransactionID   string  `dynamodbav:"transaction_id"`
	AccountID       string  `dynamodbav:"account_id"`
	Amount          *string `dynamodbav:"amount,omitempty"`
	ISOCurrencyCode string  `dynamodbav:"iso_currency_code"`
	Date            *string `dynamodbav:"date,omitempty"`
	Category        *string `dynamodbav:"category,omitempty"`
	PaymentChannel  string  `dynamodbav:"payment_channel"`
	TransactionType string  `dynamodbav:"transaction_type"`
	Name            string  `dynamodbav:"name"`
}

func transactionItemFrom(t core.Transaction) transactionItem {
	return transactionItem{
		PK:              transactionsPK(t.AccountID),
		SK:              transactionSK(t),
		TransactionID:   t.ID,
		AccountID:       t.AccountID,
		Amount:          t.Amount,
		ISOCurrencyCode: t.CurrencyCode,
		Date:            t.Date,
		Category:        t.Category,
		PaymentChannel:  t.PaymentChannel,
		TransactionType: t.Type,
		Name:            t.Name,
	}
}

func (i transactionItem) toCore() core.Transaction {
	return core.Transaction{
		ID:             i.TransactionID,
		AccountID:      i.AccountID,
		Amount:         i.Amount,
		CurrencyCode:   i.ISOCurrencyCode,
		Date:           i.Date,
		Category:       i.Category,
		PaymentChannel: i.PaymentChannel,
		Type:           i.TransactionType,
		Name:           i.Name,
	}
}

// summaryItem holds either one day of spending or one month of aggregates.
type summaryItem struct {
	PK        string             `dynamodbav:"pk"`
	SK        string             `dynamodbav:"sk"`
	Type      string             `dynamodbav:"type"`
	Date      string             `dynamodbav:"date,omitempty"`
	MonthKey  string             `dynamodbav:"month_key,omitempty"`
	Spending  map[string]float64 `dynamodbav:"spending,omitempty"`
	Weekly    map[string]float64 `dynamodbav:"weekly,omitempty"`
	Monthly   map[string]float64 `dynamodbav:"monthly,omitempty"`
	UpdatedAt string             `dynamodbav:"updated_at"`
}

func summaryItems(accountID string, daily []core.DailySpendingSummary, aggs core.MonthlySpendingAggregates, now time.Time) []summaryItem {
	pk := summariesPK(accountID)
	updated := now.UTC().Format(time.RFC3339)
	items := make([]summaryItem, 0, len(daily)+len(aggs))
	for _, d := range daily {
		items = append(items, summaryItem{
			PK:        pk,
			SK:        dailyPrefix + d.Date,
			Type:      summaryTypeDaily,
			Date:      d.Date,
			Spending:  d.Spending,
			UpdatedAt: updated,
		})
	}
	for key, agg := range aggs {
		items = append(items, summaryItem{
			PK:        pk,
			SK:        monthlyPrefix + key,
			Type:      summaryTypeMonthly,
			MonthKey:  key,
			Weekly:    agg.Weekly,
			Monthly:   agg.Monthly,
			UpdatedAt: updated,
		})
	}
	return items
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
