package logging

import "log/slog"

// Common field names for consistent logging across the pipeline.
const (
	FieldService  = "service"
	FieldSourceID = "source_id"
	FieldEventID  = "event_id"
	FieldBatchID  = "batch_id"
	FieldShard    = "shard"
	FieldSequence = "sequence"
	FieldAttempt  = "attempt"
	FieldMethod   = "method"
	FieldPath     = "path"
	FieldStatus   = "status"
	FieldError    = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// SourceID returns a slog attribute for the event source ID.
func SourceID(id string) slog.Attr {
	return slog.String(FieldSourceID, id)
}

// EventID returns a slog attribute for an event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// BatchID returns a slog attribute for a batch ID.
func BatchID(id string) slog.Attr {
	return slog.String(FieldBatchID, id)
}

// Shard returns a slog attribute for a buffer shard index.
func Shard(n int) slog.Attr {
	return slog.Int(FieldShard, n)
}

// Sequence returns a slog attribute for a per-source sequence number.
func Sequence(n uint64) slog.Attr {
	return slog.Uint64(FieldSequence, n)
}

// Attempt returns a slog attribute for a retry attempt counter.
func Attempt(n int) slog.Attr {
	return slog.Int(FieldAttempt, n)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
