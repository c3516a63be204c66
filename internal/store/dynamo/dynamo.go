// Package dynamo stores accounts, users, transactions and spending summaries
// in a single DynamoDB table keyed by pk and sk.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"spending/internal/core"
	"spending/internal/store"
)

const (
	// DynamoDB request limits
	maxBatchWrite = 25
	maxBatchGet   = 100

	maxUnprocessedRetries = 5
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	dynamodb.QueryAPIClient
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

type Config struct {
	Region    string
	TableName string
	Endpoint  string // optional, e.g. DynamoDB Local
}

type Store struct {
	client API
	table  string
	now    func() time.Time
	// backoff between retries of unprocessed batch items
	backoff func(attempt int) time.Duration
}

var _ store.Store = (*Store)(nil)

// New loads the default AWS configuration and builds a store for cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithClient(client, cfg.TableName), nil
}

func NewWithClient(client API, table string) *Store {
	return &Store{
		client: client,
		table:  table,
		now:    time.Now,
		backoff: func(attempt int) time.Duration {
			return time.Duration(50<<attempt) * time.Millisecond
		},
	}
}

// ListAccounts implements store.AccountStore
func (s *Store) ListAccounts(ctx context.Context) ([]core.Account, error) {
	var items []accountItem
	err := s.query(ctx, &dynamodb.QueryInput{
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: accountsPK},
		},
	}, func(page []map[string]types.AttributeValue) error {
		var batch []accountItem
		if err := attributevalue.UnmarshalListOfMaps(page, &batch); err != nil {
			return fmt.Errorf("unmarshal accounts: %w", err)
		}
		items = append(items, batch...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	accounts := make([]core.Account, 0, len(items))
	for _, item := range items {
		a, err := item.toCore()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

// ListUsersForAccounts implements store.AccountStore
func (s *Store) ListUsersForAccounts(ctx context.Context, accounts []core.Account) ([]core.User, error) {
	seen := make(map[string]bool, len(accounts))
	var keys []map[string]types.AttributeValue
	for _, a := range accounts {
		if a.UserKey == "" || seen[a.UserKey] {
			continue
		}
		seen[a.UserKey] = true
		keys = append(keys, map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: userPK(a.UserKey)},
			"sk": &types.AttributeValueMemberS{Value: userProfileSK},
		})
	}

	var users []core.User
	for start := 0; start < len(keys); start += maxBatchGet {
		pending := keys[start:min(start+maxBatchGet, len(keys))]
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt > maxUnprocessedRetries {
				return nil, fmt.Errorf("list users: %d keys left unprocessed", len(pending))
			}
			if attempt > 0 {
				if err := s.sleep(ctx, attempt); err != nil {
					return nil, err
				}
			}
			out, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: map[string]types.KeysAndAttributes{
					s.table: {Keys: pending},
				},
			})
			if err != nil {
				return nil, fmt.Errorf("batch get users: %w", err)
			}

			var batch []userItem
			if err := attributevalue.UnmarshalListOfMaps(out.Responses[s.table], &batch); err != nil {
				return nil, fmt.Errorf("unmarshal users: %w", err)
			}
			for _, item := range batch {
				u, err := item.toCore()
				if err != nil {
					return nil, err
				}
				users = append(users, u)
			}
			pending = out.UnprocessedKeys[s.table].Keys
		}
	}
	return users, nil
}

// QueryTransactions implements store.TransactionStore. Undated transactions
// of the account are returned too so they get counted as skipped.
func (s *Store) QueryTransactions(ctx context.Context, accountID string, r core.DateRange) ([]core.Transaction, error) {
	pk := &types.AttributeValueMemberS{Value: transactionsPK(accountID)}
	inputs := []*dynamodb.QueryInput{
		{
			KeyConditionExpression: aws.String("pk = :pk AND sk BETWEEN :from AND :to"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":   pk,
				":from": &types.AttributeValueMemberS{Value: transactionPrefix + r.Start.String()},
				// '~' sorts after '#', so every id on the end date is included
				":to": &types.AttributeValueMemberS{Value: transactionPrefix + r.End.String() + "~"},
			},
		},
		{
			KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     pk,
				":prefix": &types.AttributeValueMemberS{Value: transactionPrefix + "#"},
			},
		},
	}

	var txs []core.Transaction
	for _, in := range inputs {
		err := s.query(ctx, in, func(page []map[string]types.AttributeValue) error {
			var batch []transactionItem
			if err := attributevalue.UnmarshalListOfMaps(page, &batch); err != nil {
				return fmt.Errorf("unmarshal transactions: %w", err)
			}
			for _, item := range batch {
				txs = append(txs, item.toCore())
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("query transactions for %s: %w", accountID, err)
		}
	}
	return txs, nil
}

// WriteSummaries implements store.SummaryWriter. Items from a previous
// write that are not part of this one are deleted.
func (s *Store) WriteSummaries(ctx context.Context, accountID string, daily []core.DailySpendingSummary, aggs core.MonthlySpendingAggregates) error {
	items := summaryItems(accountID, daily, aggs, s.now())
	keep := make(map[string]bool, len(items))

	var requests []types.WriteRequest
	for _, item := range items {
		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return fmt.Errorf("marshal summary %s: %w", item.SK, err)
		}
		keep[item.SK] = true
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: av}})
	}

	pk := summariesPK(accountID)
	err := s.query(ctx, &dynamodb.QueryInput{
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
		ProjectionExpression: aws.String("pk, sk"),
	}, func(page []map[string]types.AttributeValue) error {
		for _, key := range page {
			sk, ok := key["sk"].(*types.AttributeValueMemberS)
			if !ok || keep[sk.Value] {
				continue
			}
			requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{
				Key: map[string]types.AttributeValue{
					"pk": &types.AttributeValueMemberS{Value: pk},
					"sk": sk,
				},
			}})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("list previous summaries: %w", err)
	}

	if err := s.batchWrite(ctx, requests); err != nil {
		return fmt.Errorf("write summaries for %s: %w", accountID, err)
	}
	slog.DebugContext(ctx, "Summaries saved to DynamoDB",
		"account_id", accountID,
		"days", len(daily),
		"months", len(aggs),
		"requests", len(requests))
	return nil
}

// ReadSummaries returns what was last written for the account.
func (s *Store) ReadSummaries(ctx context.Context, accountID string) ([]core.DailySpendingSummary, core.MonthlySpendingAggregates, error) {
	var (
		daily []core.DailySpendingSummary
		aggs  = core.MonthlySpendingAggregates{}
	)
	err := s.query(ctx, &dynamodb.QueryInput{
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: summariesPK(accountID)},
		},
	}, func(page []map[string]types.AttributeValue) error {
		var batch []summaryItem
		if err := attributevalue.UnmarshalListOfMaps(page, &batch); err != nil {
			return fmt.Errorf("unmarshal summaries: %w", err)
		}
		for _, item := range batch {
			switch item.Type {
			case summaryTypeDaily:
				daily = append(daily, core.DailySpendingSummary{Date: item.Date, Spending: item.Spending})
			case summaryTypeMonthly:
				aggs[item.MonthKey] = core.AggregatedSpending{Weekly: item.Weekly, Monthly: item.Monthly}
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("read summaries for %s: %w", accountID, err)
	}
	return daily, aggs, nil
}

// PutAccounts writes account items.
func (s *Store) PutAccounts(ctx context.Context, accounts ...core.Account) error {
	return putAll(ctx, s, accounts, accountItemFrom)
}

// PutUsers writes user profile items.
func (s *Store) PutUsers(ctx context.Context, users ...core.User) error {
	return putAll(ctx, s, users, userItemFrom)
}

// PutTransactions writes transaction items.
func (s *Store) PutTransactions(ctx context.Context, txs ...core.Transaction) error {
	return putAll(ctx, s, txs, transactionItemFrom)
}

func putAll[T, I any](ctx context.Context, s *Store, records []T, toItem func(T) I) error {
	requests := make([]types.WriteRequest, 0, len(records))
	for _, r := range records {
		av, err := attributevalue.MarshalMap(toItem(r))
		if err != nil {
			return fmt.Errorf("marshal item: %w", err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: av}})
	}
	return s.batchWrite(ctx, requests)
}

func (s *Store) query(ctx context.Context, in *dynamodb.QueryInput, page func([]map[string]types.AttributeValue) error) error {
	in.TableName = aws.String(s.table)
	p := dynamodb.NewQueryPaginator(s.client, in)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return err
		}
		if err := page(out.Items); err != nil {
			return err
		}
	}
	return nil
}

// batchWrite sends requests in groups of 25, retrying unprocessed items.
func (s *Store) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	for start := 0; start < len(requests); start += maxBatchWrite {
		pending := requests[start:min(start+maxBatchWrite, len(requests))]
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt > maxUnprocessedRetries {
				return fmt.Errorf("%d write requests left unprocessed", len(pending))
			}
			if attempt > 0 {
				if err := s.sleep(ctx, attempt); err != nil {
					return err
				}
			}
			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{s.table: pending},
			})
			if err != nil {
				var throttled *types.ProvisionedThroughputExceededException
				if errors.As(err, &throttled) {
					continue
				}
				return fmt.Errorf("batch write: %w", err)
			}
			pending = out.UnprocessedItems[s.table]
		}
	}
	return nil
}

func (s *Store) sleep(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.backoff(attempt)):
		return nil
	}
}
