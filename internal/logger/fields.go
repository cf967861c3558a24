package logger

// Standard field names for structured logging.
// Use these constants instead of raw strings to ensure consistency.
const (
	FieldRequestID = "request_id"
	FieldComponent = "component"
	FieldOperation = "operation"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldQuery     = "query"
	FieldStatus    = "status"

	FieldDurationMS = "duration_ms"
	FieldDeadline   = "deadline"

	FieldError = "error"

	FieldCount         = "count"
	FieldSize          = "size"
	FieldSizeBefore    = "size_before"
	FieldSizeAfter     = "size_after"
	FieldTripleCount   = "triple_count"
	FieldMutationCount = "mutation_count"
	FieldProcessed     = "processed"
	FieldTotal         = "total"
	FieldErrors        = "errors"
	FieldBulkSize      = "bulk_size"
	FieldFile          = "file"
	FieldLine          = "line"
)
