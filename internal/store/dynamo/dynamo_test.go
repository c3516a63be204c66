package dynamo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"spending/internal/core"
)

// fakeTable is an in-memory table that understands the key conditions the
// store issues. Query pages hold at most pageSize items.
type fakeTable struct {
	mu       sync.Mutex
	items    map[string]map[string]map[string]types.AttributeValue
	pageSize int
	// unprocessed is how many write requests the next BatchWriteItem call
	// hands back unprocessed
	unprocessed int
	writeCalls  int
}

func newFakeTable() *fakeTable {
	return &fakeTable{items: map[string]map[string]map[string]types.AttributeValue{}, pageSize: 2}
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeTable) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	vals := in.ExpressionAttributeValues
	part := f.items[str(vals[":pk"])]
	var sks []string
	for sk := range part {
		if from, ok := vals[":from"]; ok && (sk < str(from) || sk > str(vals[":to"])) {
			continue
		}
		if prefix, ok := vals[":prefix"]; ok && !strings.HasPrefix(sk, str(prefix)) {
			continue
		}
		if in.ExclusiveStartKey != nil && sk <= str(in.ExclusiveStartKey["sk"]) {
			continue
		}
		sks = append(sks, sk)
	}
	sort.Strings(sks)

	out := &dynamodb.QueryOutput{}
	for i, sk := range sks {
		if i == f.pageSize {
			last := out.Items[len(out.Items)-1]
			out.LastEvaluatedKey = map[string]types.AttributeValue{"pk": last["pk"], "sk": last["sk"]}
			break
		}
		out.Items = append(out.Items, part[sk])
	}
	return out, nil
}

func (f *fakeTable) BatchGetItem(_ context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := &dynamodb.BatchGetItemOutput{Responses: map[string][]map[string]types.AttributeValue{}}
	for table, ka := range in.RequestItems {
		for _, key := range ka.Keys {
			if item, ok := f.items[str(key["pk"])][str(key["sk"])]; ok {
				out.Responses[table] = append(out.Responses[table], item)
			}
		}
	}
	return out, nil
}

func (f *fakeTable) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.writeCalls++
	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}
	for table, reqs := range in.RequestItems {
		if len(reqs) > maxBatchWrite {
			panic("batch larger than 25 requests")
		}
		for _, req := range reqs {
			if f.unprocessed > 0 {
				f.unprocessed--
				out.UnprocessedItems[table] = append(out.UnprocessedItems[table], req)
				continue
			}
			switch {
			case req.PutRequest != nil:
				pk, sk := str(req.PutRequest.Item["pk"]), str(req.PutRequest.Item["sk"])
				if f.items[pk] == nil {
					f.items[pk] = map[string]map[string]types.AttributeValue{}
				}
				f.items[pk][sk] = req.PutRequest.Item
			case req.DeleteRequest != nil:
				delete(f.items[str(req.DeleteRequest.Key["pk"])], str(req.DeleteRequest.Key["sk"]))
			}
		}
	}
	return out, nil
}

func newTestStore(t *testing.T) (*Store, *fakeTable) {
	t.Helper()
	table := newFakeTable()
	s := NewWithClient(table, "spending")
	s.backoff = func(int) time.Duration { return 0 }
	s.now = func() time.Time { return time.Date(2024, 5, 15, 6, 0, 0, 0, time.UTC) }
	return s, table
}

func TestAccountsAndUsers(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	var accounts []core.Account
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		accounts = append(accounts, core.Account{ID: id, UserKey: "u-" + id[:1], CreatedAt: created})
	}
	accounts[1].UserKey = "u-a"
	if err := s.PutAccounts(ctx, accounts...); err != nil {
		t.Fatalf("PutAccounts: %v", err)
	}
	if err := s.PutUsers(ctx, core.User{Key: "u-a", Username: "ada", CreatedAt: created}, core.User{Key: "u-c", CreatedAt: created}); err != nil {
		t.Fatalf("PutUsers: %v", err)
	}

	got, err := s.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("ListAccounts returned %d accounts across pages, want 5", len(got))
	}
	for _, a := range got {
		if !a.CreatedAt.Equal(created) {
			t.Errorf("account %s created_at = %v", a.ID, a.CreatedAt)
		}
	}

	users, err := s.ListUsersForAccounts(ctx, got)
	if err != nil {
		t.Fatalf("ListUsersForAccounts: %v", err)
	}
	keys := map[string]string{}
	for _, u := range users {
		keys[u.Key] = u.Username
	}
	if len(keys) != 2 || keys["u-a"] != "ada" {
		t.Errorf("users = %+v", users)
	}
}

func TestAccountUserKeyFromSortKey(t *testing.T) {
	item := accountItem{SK: accountSK("owner-1", "item-9"), ItemID: "item-9", CreatedAt: "2024-01-01"}
	a, err := item.toCore()
	if err != nil {
		t.Fatal(err)
	}
	if a.UserKey != "owner-1" {
		t.Errorf("UserKey = %q, want owner-1", a.UserKey)
	}
}

func TestQueryTransactions(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	err := s.PutTransactions(ctx,
		core.Transaction{ID: "1", AccountID: "a", Date: core.Str("2024-04-30"), Amount: core.Str("1")},
		core.Transaction{ID: "2", AccountID: "a", Date: core.Str("2024-05-01"), Amount: core.Str("2"), Category: core.Str("TRAVEL")},
		core.Transaction{ID: "3", AccountID: "a", Date: core.Str("2024-05-15T10:00:00Z"), Amount: core.Str("3")},
		core.Transaction{ID: "4", AccountID: "a", Date: core.Str("2024-05-15"), Amount: core.Str("4")},
		core.Transaction{ID: "5", AccountID: "a", Date: core.Str("2024-05-16"), Amount: core.Str("5")},
		core.Transaction{ID: "6", AccountID: "a", Amount: core.Str("6")},
		core.Transaction{ID: "7", AccountID: "b", Date: core.Str("2024-05-03"), Amount: core.Str("7")},
	)
	if err != nil {
		t.Fatalf("PutTransactions: %v", err)
	}

	r := core.DateRange{
		Start: core.DateTriple{Day: 1, Month: 5, Year: 2024},
		End:   core.DateTriple{Day: 15, Month: 5, Year: 2024},
	}
	txs, err := s.QueryTransactions(ctx, "a", r)
	if err != nil {
		t.Fatalf("QueryTransactions: %v", err)
	}

	var ids []string
	for _, tx := range txs {
		ids = append(ids, tx.ID)
	}
	sort.Strings(ids)
	if strings.Join(ids, ",") != "2,3,4,6" {
		t.Errorf("ids = %v, want 2,3,4,6", ids)
	}
	for _, tx := range txs {
		if tx.ID == "2" && (tx.Category == nil || *tx.Category != "TRAVEL") {
			t.Errorf("category lost: %+v", tx)
		}
		if tx.ID == "6" && tx.Date != nil {
			t.Errorf("undated transaction gained a date")
		}
	}
}

func TestWriteSummariesReplacesPrevious(t *testing.T) {
	s, table := newTestStore(t)
	ctx := context.Background()

	var daily []core.DailySpendingSummary
	for d := 1; d <= 30; d++ {
		daily = append(daily, core.DailySpendingSummary{
			Date:     time.Date(2024, 4, d, 0, 0, 0, 0, time.UTC).Format(time.DateOnly),
			Spending: map[string]float64{"TRAVEL": float64(d)},
		})
	}
	aggs := core.MonthlySpendingAggregates{
		"2024-4": {Weekly: map[string]float64{"TRAVEL": 1}, Monthly: map[string]float64{"TRAVEL": 4}},
	}
	table.unprocessed = 3
	if err := s.WriteSummaries(ctx, "a", daily, aggs); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if table.writeCalls < 3 {
		t.Errorf("expected 31 items split in two batches plus a retry, got %d calls", table.writeCalls)
	}
	if n := len(table.items[summariesPK("a")]); n != 31 {
		t.Fatalf("stored %d summary items, want 31", n)
	}

	next := core.MonthlySpendingAggregates{
		"2024-5": {Weekly: map[string]float64{"FOOD_AND_DRINK": 2}, Monthly: map[string]float64{"FOOD_AND_DRINK": 9}},
	}
	nextDaily := []core.DailySpendingSummary{{Date: "2024-05-02", Spending: map[string]float64{"FOOD_AND_DRINK": 9}}}
	if err := s.WriteSummaries(ctx, "a", nextDaily, next); err != nil {
		t.Fatalf("second write: %v", err)
	}

	gotDaily, gotAggs, err := s.ReadSummaries(ctx, "a")
	if err != nil {
		t.Fatalf("ReadSummaries: %v", err)
	}
	if len(gotDaily) != 1 || gotDaily[0].Date != "2024-05-02" {
		t.Errorf("daily = %+v", gotDaily)
	}
	if len(gotAggs) != 1 || gotAggs["2024-5"].Monthly["FOOD_AND_DRINK"] != 9 {
		t.Errorf("aggregates = %+v", gotAggs)
	}
}

func TestWriteSummariesGivesUp(t *testing.T) {
	s, table := newTestStore(t)
	table.unprocessed = 1 << 20

	err := s.WriteSummaries(context.Background(), "a", nil, core.MonthlySpendingAggregates{
		"2024-5": {Weekly: map[string]float64{}, Monthly: map[string]float64{}},
	})
	if err == nil || !strings.Contains(err.Error(), "unprocessed") {
		t.Errorf("expected unprocessed error, got %v", err)
	}
}
