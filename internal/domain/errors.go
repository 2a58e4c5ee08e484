package domain

import (
	"errors"
	"fmt"
)

// ErrNoData is returned when no requested provider contributed any usable
// reading. Zero is a valid score, so absence of data is an error, not a zero.
var ErrNoData = errors.New("no hazard data available")

// ErrorKind classifies a provider failure for retry and reporting decisions.
type ErrorKind string

const (
	KindNetwork      ErrorKind = "network"
	KindRateLimited  ErrorKind = "rate_limited"
	KindAuth         ErrorKind = "auth"
	KindInvalidParam ErrorKind = "invalid_parameter"
	KindNoData       ErrorKind = "no_data"
	KindServerError  ErrorKind = "server_error"
	KindTimeout      ErrorKind = "timeout"
)

// Transient reports whether a retry of the same call could plausibly succeed.
// Auth and parameter errors never benefit from retries. KindRateLimited is
// transient here because it covers remote throttling (429); local admission
// rejections surface before any retry loop runs, so they are never retried.
func (k ErrorKind) Transient() bool {
	switch k {
	case KindNetwork, KindServerError, KindRateLimited:
		return true
	default:
		return false
	}
}

// ProviderError is the typed failure surfaced by a provider client branch.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider %s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err with its provider and classification.
func NewProviderError(provider string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// KindOf extracts the ErrorKind from err, or KindNetwork if err is not a
// ProviderError (unclassified failures are treated as transient plumbing).
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindNetwork
}
