package unifiedllm

import (
	"context"
	"errors"
	"fmt"
)

// SDKError is the base error type for all unified LLM errors.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SDKError) Unwrap() error {
	return e.Cause
}

// ProviderError represents an error returned by an LLM provider.
type ProviderError struct {
	SDKError
	Provider   string
	StatusCode int
	Retryable  bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s (status=%d, retryable=%v)", e.Provider, e.Message, e.StatusCode, e.Retryable)
}

// Concrete provider error types.

type AuthenticationError struct{ ProviderError }
type AccessDeniedError struct{ ProviderError }
type NotFoundError struct{ ProviderError }
type RateLimitError struct{ ProviderError }
type ServerError struct{ ProviderError }
type ContentFilterError struct{ ProviderError }
type ContextLengthError struct{ ProviderError }

// Non-provider errors.

type RequestTimeoutError struct{ SDKError }
type AbortError struct{ SDKError }
type ConfigurationError struct{ SDKError }

func (e *ProviderError) retryable() bool       { return e.Retryable }
func (e *AuthenticationError) retryable() bool { return false }
func (e *AccessDeniedError) retryable() bool   { return false }
func (e *NotFoundError) retryable() bool       { return false }
func (e *ContentFilterError) retryable() bool  { return false }
func (e *ContextLengthError) retryable() bool  { return false }
func (e *RateLimitError) retryable() bool      { return true }
func (e *ServerError) retryable() bool         { return true }
func (e *RequestTimeoutError) retryable() bool { return true }
func (e *AbortError) retryable() bool          { return false }
func (e *ConfigurationError) retryable() bool  { return false }

// IsRetryable reports whether err is safe to retry. The first typed error in
// the chain decides; a cancelled context never retries and anything else
// unknown does.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var r interface{ retryable() bool }
	if errors.As(err, &r) {
		return r.retryable()
	}
	return true
}
