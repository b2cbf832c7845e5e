package ai

import (
	"context"
	"encoding/json"
	"errors"
)

// Request describes one structured-output exchange with a reasoning model.
// The reply must be a single JSON object; when Schema is set it is validated
// before the raw bytes are returned to the caller.
type Request struct {
	System      string
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float32
	Schema      *Schema
}

// Asker describes a reasoning backend that answers prompts with JSON objects.
type Asker interface {
	Ask(ctx context.Context, req Request) (json.RawMessage, error)
}

// Sentinel failure classes for Ask. Callers decide retry behaviour with
// Retryable rather than matching provider-specific errors.
var (
	// ErrTimeout marks calls abandoned because their context expired.
	ErrTimeout = errors.New("ai: request timed out")
	// ErrTransport marks network or provider API failures.
	ErrTransport = errors.New("ai: transport failure")
	// ErrMalformedReply marks replies that are not valid JSON or do not
	// satisfy the request schema. Retrying these wastes budget since the
	// model would be asked the exact same thing again.
	ErrMalformedReply = errors.New("ai: malformed reply")
)

// Retryable reports whether the failure is transient. Only timeouts and
// transport failures qualify; malformed replies never do.
func Retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrTransport)
}
