package embedding

import (
	"errors"
	"fmt"
)

// ErrorKind classifies embedding provider failures.
type ErrorKind string

const (
	// KindRateLimited means the provider throttled the request; retried with backoff.
	KindRateLimited ErrorKind = "rate_limited"
	// KindInvalidInput means the provider rejected the payload; never retried.
	KindInvalidInput ErrorKind = "invalid_input"
	// KindTransport covers network and server-side failures; retried a bounded
	// number of times before surfacing.
	KindTransport ErrorKind = "transport_failure"
)

// ProviderError wraps a provider failure with its classification and the
// zero-based index of the batch that failed. A failure of one batch fails the
// whole call; Batch preserves which one for diagnosis.
type ProviderError struct {
	Kind  ErrorKind
	Batch int
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider failed (%s, batch %d): %v", e.Kind, e.Batch, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Classify extracts the error kind from a provider error, defaulting to
// transport failure for unclassified errors.
func Classify(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransport
}

func classifyStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == 429:
		return KindRateLimited
	case statusCode >= 400 && statusCode < 500:
		return KindInvalidInput
	default:
		return KindTransport
	}
}
