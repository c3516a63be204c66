package backend

import (
	"context"

	"spending/internal/cache"
	"spending/internal/services"
	"spending/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Backend is everything a job needs from the outside world.
type Backend struct {
	// Store is the primary backend for accounts, users, transactions and summaries
	Store store.Store
	// Accounts is Store's account side with cached user lookups
	Accounts  store.AccountStore
	Decrypter store.Decrypter
	// Writer writes to Store and, unless ExportViaWorker, every configured export
	Writer store.SummaryWriter
	// Exporter is the Sheets export, nil when not configured
	Exporter store.SummaryWriter
	// Publisher is nil when AMQP is not configured
	Publisher services.EventPublisher
	Caches    *cache.Manager
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*Backend, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// Memory backend specific
	DataDirectory string

	// SQLite specific
	SQLiteDBPath string

	// DynamoDB specific
	AWSRegion        string
	DynamoDBTable    string
	DynamoDBEndpoint string

	// Optional event publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Optional Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	// Hand the export to the worker consuming summaries written events
	ExportViaWorker bool

	// Hex encoded record key; empty disables decryption
	EncryptionKey    string
	DecryptBatchSize int
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	DynamoDBBackend BackendType = "dynamodb"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, DynamoDBBackend:
		return true
	default:
		return false
	}
}
