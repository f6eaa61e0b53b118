package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingAPIKey is wrapped by AuthError when no FIRMS credential is configured.
var ErrMissingAPIKey = errors.New("NASA_FIRMS_API_KEY is not configured")

// AuthError means the feed cannot be queried at all. It is the only error
// kind that aborts a run.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return "firms auth: " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// TransportError is a network or HTTP failure talking to the feed. The feed
// client absorbs it and reports "no detections" instead.
type TransportError struct {
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("firms transport: status %d: %v", e.StatusCode, e.Err)
	}
	return "firms transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// SchemaError means the payload is missing mandatory columns; the whole batch is discarded.
type SchemaError struct {
	Missing   []string
	Available []string
}

func (e *SchemaError) Error() string {
	return "firms schema: missing required columns: " + strings.Join(e.Missing, ", ")
}

// RowError wraps a failure processing a single detection. The row is skipped.
type RowError struct {
	Stage     string // "classify", "derive", "match", "save"
	Latitude  float64
	Longitude float64
	Err       error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row (%.4f, %.4f) %s: %v", e.Latitude, e.Longitude, e.Stage, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
