package log

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldOperation    = "operation"
	FieldCollection   = "collection"
	FieldRecordID     = "record_id"
	FieldAmountCents  = "amount_cents"
	FieldCount        = "count"
	FieldLimit        = "limit"
	FieldPremium      = "premium"
	FieldMode         = "mode"
	FieldError        = "error"
	FieldErrorType    = "error_type"
	FieldKey          = "key"
	FieldBytes        = "bytes"
	FieldPlan         = "plan"
	FieldDuration     = "duration_ms"
	FieldBackend      = "backend"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentStore       = "store"
	ComponentGateway     = "gateway"
	ComponentStorage     = "storage"
	ComponentAMQP        = "amqp"
	ComponentEntitlement = "entitlement"
	ComponentExport      = "export"
	ComponentCache       = "cache"
	ComponentBackend     = "backend"
	ComponentMetrics     = "metrics"
)

// Operations defines standard operation names
const (
	OpCreate     = "create"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpContribute = "contribute"
	OpFetch      = "fetch"
	OpPersist    = "persist"
	OpRehydrate  = "rehydrate"
	OpExport     = "export"
	OpPublish    = "publish"
	OpConsume    = "consume"
	OpStartup    = "startup"
	OpShutdown   = "shutdown"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeLimit         = "limit_reached"
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

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithErrorType adds the error category
func (f LogFields) WithErrorType(errorType string) LogFields {
	f[FieldErrorType] = errorType
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRecord adds collection and record id fields
func (f LogFields) WithRecord(collection, id string) LogFields {
	f[FieldCollection] = collection
	if id != "" {
		f[FieldRecordID] = id
	}
	return f
}

// WithLimit adds the fields describing a free-tier check
func (f LogFields) WithLimit(count int, premium bool) LogFields {
	f[FieldCount] = count
	f[FieldPremium] = premium
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
