package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error variables shared by provider implementations.
var (
	// ErrNoAPIKey indicates the provider has no credential configured.
	ErrNoAPIKey = errors.New("API key is required")

	// ErrEmptyResponse indicates the API returned no usable completion text.
	ErrEmptyResponse = errors.New("empty response from API")

	// ErrUnknownProvider indicates the configured provider name has no implementation.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrUnknownPersona indicates the requested agent persona is not registered.
	ErrUnknownPersona = errors.New("unknown agent persona")
)

// ErrorResponse represents a standard error response body, matching the
// OpenAI-compatible format: {"error":{"message":"...","code":"..."}}
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// APIError represents an error response from a provider API.
type APIError struct {
	StatusCode int
	Provider   string
	Type       string `json:"type"`
	Message    string `json:"message"`
	Code       string `json:"code"`
	RequestID  string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable returns true if the error is worth one more attempt.
func (e *APIError) IsRetryable() bool {
	if e.StatusCode >= 500 && e.StatusCode < 600 {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests
}

// IsAuthError returns true if this is an authentication error.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.Code == "invalid_api_key"
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	return false
}
