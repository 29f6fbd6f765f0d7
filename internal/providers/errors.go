package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

// Sentinel error kinds callers branch on.
var (
	ErrMissingAPIKey   = errors.New("missing API key")
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrRateLimited     = errors.New("rate limited")
	ErrContentRejected = errors.New("content rejected by provider")
)

// APIError is a non-OK response from a hosted API.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Unwrap maps well-known status codes to sentinel error kinds.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrInvalidAPIKey
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// newAPIError builds an APIError, extracting the provider's error message
// from the response body when it follows the common {"error":{"message"}}
// shape.
func newAPIError(provider string, status int, body []byte) *APIError {
	msg := string(body)

	var wrapped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wrapped) == nil && wrapped.Error.Message != "" {
		msg = wrapped.Error.Message
	}

	return &APIError{Provider: provider, StatusCode: status, Message: msg}
}

// isRetryable reports whether an error is worth retrying: rate limits and
// server-side failures. Auth and request errors surface immediately.
func isRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return false
}

// doWithRetry runs fn with bounded exponential backoff for retryable errors.
func doWithRetry(ctx context.Context, maxRetries int, delay time.Duration, fn func() error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if delay <= 0 {
		delay = time.Second
	}
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(uint(maxRetries)),
		retry.Delay(delay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
	)
}
