package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"spending/internal/backend"
	"spending/internal/cli"
	applog "spending/internal/log"
	"spending/internal/services"
)

// Response is returned to the scheduler that invoked the function.
type Response struct {
	RunID               string   `json:"runId"`
	Accounts            int      `json:"accounts"`
	Succeeded           int      `json:"succeeded"`
	FailedAccountIDs    []string `json:"failedAccountIds,omitempty"`
	UnlinkedAccounts    int      `json:"unlinkedAccounts"`
	DroppedTransactions int      `json:"droppedTransactions"`
	DurationMs          int64    `json:"durationMs"`
}

var (
	job    *services.Job
	logger *slog.Logger
	b      *backend.Backend
)

// init builds the backend once per execution environment so warm
// invocations reuse connections and the user cache.
func init() {
	logger = cli.SetupLogger(os.Getenv("LOG_LEVEL"), "json")
	cfg := cli.LoadAndValidateConfig(logger)
	b = cli.InitBackend(context.Background(), logger, cfg)
	job = b.NewJob(services.AggregationConfig{
		ChunkSize:    cfg.ChunkSize,
		LookbackDays: cfg.LookbackDays,
	})
}

func handleRequest(ctx context.Context, event events.CloudWatchEvent) (Response, error) {
	runID := event.ID
	if lc, ok := lambdacontext.FromContext(ctx); ok && runID == "" {
		runID = lc.AwsRequestID
	}
	if runID == "" {
		runID = applog.NewRunID()
	}
	ctx = applog.WithRunID(ctx, runID)

	logger.InfoContext(ctx, "Scheduled aggregation invoked",
		applog.FieldRunID, runID,
		"source", event.Source,
		"detail_type", event.DetailType)

	report, err := job.Run(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Aggregation run failed", applog.FieldRunID, runID, "error", err)
		return Response{RunID: runID}, err
	}

	if n := b.Caches.CleanNow(); len(n) > 0 {
		logger.DebugContext(ctx, "Expired cache entries evicted", "evicted", n)
	}

	return Response{
		RunID:               report.RunID,
		Accounts:            report.Accounts,
		Succeeded:           report.Succeeded,
		FailedAccountIDs:    report.FailedAccountIDs(),
		UnlinkedAccounts:    report.UnlinkedAccounts,
		DroppedTransactions: report.DroppedTransactions,
		DurationMs:          report.Duration().Milliseconds(),
	}, nil
}

func main() {
	lambda.Start(handleRequest)
}
