package backend

import (
	"fmt"

	"spending/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.StoreBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.StoreBackend)
	}

	return Config{
		Type:          backendType,
		DataDirectory: appConfig.DataDir,
		SQLiteDBPath:  appConfig.SQLiteDBPath,

		AWSRegion:        appConfig.AWSRegion,
		DynamoDBTable:    appConfig.DynamoDBTable,
		DynamoDBEndpoint: appConfig.DynamoDBEndpoint,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSummarySheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		ExportViaWorker:          appConfig.ExportViaWorker,

		EncryptionKey:    appConfig.EncryptionKey,
		DecryptBatchSize: appConfig.DecryptBatchSize,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case DynamoDBBackend:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DynamoDB table is required for dynamodb backend")
		}
		if c.AWSRegion == "" {
			return fmt.Errorf("AWS region is required for dynamodb backend")
		}
	case MemoryBackend:
		// DataDirectory defaults to "data" when empty
	}

	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP exchange and queue are required when AMQP URL is set")
	}
	if c.ExportViaWorker && c.AMQPURL == "" {
		return fmt.Errorf("AMQP URL is required when the export runs in the worker")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, DynamoDBBackend}
}
