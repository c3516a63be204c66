package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Store backends
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
)

type Config struct {
	// Backend selection
	StoreBackend string
	DataDir      string // seed files for the memory backend

	// Database
	SQLiteDBPath string

	// DynamoDB
	AWSRegion        string
	DynamoDBTable    string
	DynamoDBEndpoint string

	// AMQP (optional, disabled when URL is empty)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets summary export (optional)
	GoogleSpreadsheetID      string
	GoogleSummarySheetName   string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	// Leave the export to cmd/spending-export-worker instead of the job
	ExportViaWorker bool

	// Record decryption, hex encoded 32 byte key. Empty means plaintext.
	EncryptionKey string

	// Batch
	ChunkSize        int
	DecryptBatchSize int
	LookbackDays     int

	// Scheduling
	RunInterval time.Duration
	RunOnce     bool

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		StoreBackend: getEnv("STORE_BACKEND", BackendMemory),
		DataDir:      getEnv("DATA_DIR", "./data"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/spending.db"),

		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		DynamoDBTable:    getEnv("DYNAMODB_TABLE", ""),
		DynamoDBEndpoint: getEnv("DYNAMODB_ENDPOINT", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "spending"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "summaries_written"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSummarySheetName:   getEnv("GOOGLE_SUMMARY_SHEET_NAME", "Summaries"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
		ExportViaWorker:          getEnvBool("EXPORT_VIA_WORKER", false),

		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),

		ChunkSize:        getEnvInt("CHUNK_SIZE", 100),
		DecryptBatchSize: getEnvInt("DECRYPT_BATCH_SIZE", 100),
		LookbackDays:     getEnvInt("LOOKBACK_DAYS", 90),

		RunInterval: getEnvDuration("RUN_INTERVAL", 24*time.Hour),
		RunOnce:     getEnvBool("RUN_ONCE", false),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate store backend
	validBackends := []string{BackendMemory, BackendSQLite, BackendDynamoDB}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.StoreBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid store backend '%s': must be one of %v", c.StoreBackend, validBackends))
	}

	switch c.StoreBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case BackendDynamoDB:
		if c.DynamoDBTable == "" {
			errors = append(errors, "DynamoDB table name is required when using dynamodb backend")
		}
		if c.AWSRegion == "" {
			errors = append(errors, "AWS region is required when using dynamodb backend")
		}
		if c.DynamoDBEndpoint != "" {
			if _, err := url.ParseRequestURI(c.DynamoDBEndpoint); err != nil {
				errors = append(errors, fmt.Sprintf("invalid DynamoDB endpoint '%s': %v", c.DynamoDBEndpoint, err))
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Sheets export needs credentials once a spreadsheet is configured
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSummarySheetName == "" {
			errors = append(errors, "Google summary sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.ExportViaWorker && c.AMQPURL == "" {
		errors = append(errors, "EXPORT_VIA_WORKER requires AMQP_URL: the worker is driven by summaries written events")
	}

	if c.EncryptionKey != "" {
		if key, err := hex.DecodeString(c.EncryptionKey); err != nil {
			errors = append(errors, "invalid encryption key: must be hex encoded")
		} else if len(key) != 32 {
			errors = append(errors, fmt.Sprintf("invalid encryption key length %d: must be 32 bytes", len(key)))
		}
	}

	// Validate batch configuration
	if c.ChunkSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid chunk size %d: must be at least 1", c.ChunkSize))
	} else if c.ChunkSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid chunk size %d: must be at most 1000", c.ChunkSize))
	}
	if c.DecryptBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid decrypt batch size %d: must be at least 1", c.DecryptBatchSize))
	}
	if c.LookbackDays < 1 {
		errors = append(errors, fmt.Sprintf("invalid lookback %d days: must be at least 1", c.LookbackDays))
	}

	if !c.RunOnce && c.RunInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid run interval %v: must be at least 1 minute", c.RunInterval))
	}

	if f := strings.ToLower(c.LogFormat); f != "" && f != "text" && f != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
