package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRunID         = "run_id"
	FieldAccountID     = "account_id"
	FieldUserKey       = "user_key"
	FieldInstitution   = "institution"
	FieldMonthKey      = "month_key"
	FieldChunk         = "chunk"
	FieldChunkSize     = "chunk_size"
	FieldAccounts      = "accounts"
	FieldTransactions  = "transactions"
	FieldMonths        = "months"
	FieldDays          = "days"
	FieldDropped       = "dropped"
	FieldReason        = "reason"
	FieldDuration      = "duration_ms"
	FieldDurationHuman = "duration_human"
	FieldWindowStart   = "window_start"
	FieldWindowEnd     = "window_end"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldBackend       = "backend"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentJob         = "job"
	ComponentAggregation = "aggregation"
	ComponentStorage     = "storage"
	ComponentDynamo      = "dynamodb"
	ComponentAMQP        = "amqp"
	ComponentSheets      = "sheets"
	ComponentCache       = "cache"
	ComponentCrypto      = "crypto"
	ComponentBackend     = "backend"
	ComponentLambda      = "lambda"
)

// Operations defines standard operation names
const (
	OpList      = "list"
	OpQuery     = "query"
	OpDecrypt   = "decrypt"
	OpAggregate = "aggregate"
	OpWrite     = "write"
	OpPublish   = "publish"
	OpMigrate   = "migrate"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeDecryption    = "decryption_error"
	ErrorTypeEmptyInput    = "empty_input_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRunID(runID string) LogFields {
	if runID != "" {
		f[FieldRunID] = runID
	}
	return f
}

func (f LogFields) WithAccount(accountID string) LogFields {
	f[FieldAccountID] = accountID
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithWindow adds the queried date range
func (f LogFields) WithWindow(start, end string) LogFields {
	f[FieldWindowStart] = start
	f[FieldWindowEnd] = end
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
