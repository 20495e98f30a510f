package model

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every *ConfigError via errors.Is.
	ErrConfiguration = errors.New("configuration error")
	// ErrDegenerateRiskInput is returned when entry and stop-loss coincide or are non-positive.
	ErrDegenerateRiskInput = errors.New("degenerate risk input")
	// ErrAllProvidersFailed is returned when every data provider failed or returned nothing.
	ErrAllProvidersFailed = errors.New("all data providers failed")
)

// ConfigError is fatal at construction and never retried.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

// ProviderErrorKind classifies market-data failures.
type ProviderErrorKind string

const (
	ProviderRateLimited ProviderErrorKind = "rate_limit"
	ProviderPermission  ProviderErrorKind = "permission"
	ProviderTransport   ProviderErrorKind = "transport"
	ProviderBadResponse ProviderErrorKind = "bad_response"
)

// ProviderError is a recoverable data-provider failure.
type ProviderError struct {
	Provider string
	Kind     ProviderErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError builds a ProviderError.
func NewProviderError(provider string, kind ProviderErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// ExecutionError is an order-path failure: rejected order, failed cancel or close.
type ExecutionError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
