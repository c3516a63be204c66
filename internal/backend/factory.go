package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"spending/internal/amqp"
	"spending/internal/cache"
	"spending/internal/core"
	"spending/internal/crypto"
	"spending/internal/services"
	"spending/internal/storage"
	"spending/internal/store"
	"spending/internal/store/dynamo"
	gsheet "spending/internal/store/google"
	"spending/internal/store/memory"
)

const (
	userCacheSize = 10000
	userCacheTTL  = 6 * time.Hour
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	decrypter, err := f.createDecrypter(config)
	if err != nil {
		return nil, err
	}

	var cleanups []func() error
	primary, closeStore, err := f.createStore(ctx, config)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		cleanups = append(cleanups, closeStore)
	}

	writers := []store.SummaryWriter{primary}
	var exporter store.SummaryWriter
	if config.GoogleSpreadsheetID != "" {
		sheets, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      config.GoogleSpreadsheetID,
			SheetName:          config.GoogleSheetName,
			ServiceAccountJSON: config.GoogleServiceAccountJSON,
			ServiceAccountFile: config.GoogleServiceAccountFile,
		})
		if err != nil {
			runCleanups(cleanups)
			return nil, fmt.Errorf("failed to initialize Google Sheets export: %w", err)
		}
		exporter = sheets
		if !config.ExportViaWorker {
			writers = append(writers, exporter)
		}
		f.logger.Info("Initialized Google Sheets summary export",
			"spreadsheet_id", config.GoogleSpreadsheetID,
			"via_worker", config.ExportViaWorker)
	}

	// AMQP is optional: a broker outage must not stop the aggregation
	var publisher services.EventPublisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			publisher = client
			cleanups = append(cleanups, client.Close)
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	users := cache.NewLRUCache[core.User](userCacheSize, userCacheTTL)
	caches := cache.NewManager()
	caches.Register("users", users)
	cleanups = append(cleanups, func() error {
		caches.Stop()
		return nil
	})

	return &Backend{
		Store:     primary,
		Accounts:  store.NewCachedAccountStore(primary, users),
		Decrypter: decrypter,
		Writer:    store.NewMultiWriter(writers...),
		Exporter:  exporter,
		Publisher: publisher,
		Caches:    caches,
		Cleanup:   func() error { return runCleanups(cleanups) },
	}, nil
}

func (f *DefaultFactory) createStore(ctx context.Context, config Config) (store.Store, func() error, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, repo.Close, nil

	case DynamoDBBackend:
		s, err := dynamo.New(ctx, dynamo.Config{
			Region:    config.AWSRegion,
			TableName: config.DynamoDBTable,
			Endpoint:  config.DynamoDBEndpoint,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize DynamoDB store: %w", err)
		}
		f.logger.Info("Initialized DynamoDB backend",
			"table", config.DynamoDBTable,
			"region", config.AWSRegion,
			"custom_endpoint", config.DynamoDBEndpoint != "")
		return s, nil, nil

	case MemoryBackend:
		dataDir := config.DataDirectory
		if dataDir == "" {
			dataDir = "data" // Default directory
		}
		s, err := memory.NewFromFiles(dataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load memory backend: %w", err)
		}
		f.logger.Info("Initialized memory backend", "data_directory", dataDir)
		return s, nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createDecrypter(config Config) (store.Decrypter, error) {
	if config.EncryptionKey == "" {
		return crypto.NoopDecrypter{}, nil
	}
	c, err := crypto.NewCipherFromHex(config.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize record decryption: %w", err)
	}
	return crypto.NewFieldDecrypter(c, config.DecryptBatchSize), nil
}

// runCleanups releases resources in reverse order of acquisition.
func runCleanups(cleanups []func() error) error {
	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewJob wires the aggregation job on top of the backend.
func (b *Backend) NewJob(config services.AggregationConfig, opts ...services.JobOption) *services.Job {
	processor := services.NewAggregationProcessor(b.Store, b.Decrypter, b.Writer, b.Publisher, config)
	return services.NewJob(b.Accounts, b.Decrypter, processor, opts...)
}
