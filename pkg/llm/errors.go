package llm

import (
	"errors"
	"fmt"
)

// LLMError is the base error type for all LLM client errors.
type LLMError struct {
	Code    int
	Message string
	Cause   error
}

func (e *LLMError) Error() string {
	if e.Code == 0 {
		if e.Cause != nil {
			return fmt.Sprintf("llm error: %s: %v", e.Message, e.Cause)
		}
		return fmt.Sprintf("llm error: %s", e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("llm error %d: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("llm error %d: %s", e.Code, e.Message)
}

func (e *LLMError) Unwrap() error { return e.Cause }

// RateLimitError is returned when the provider rate-limits the request.
type RateLimitError struct{ LLMError }

// ServerError is returned on 5xx responses from the provider.
type ServerError struct{ LLMError }

// AuthError is returned on authentication/authorization failures.
type AuthError struct{ LLMError }

// ContextLengthError is returned when the request exceeds the model's context window.
type ContextLengthError struct{ LLMError }

// MalformedResponseError is returned when a 2xx response carries no usable completion.
type MalformedResponseError struct{ LLMError }

// NetworkError is returned when the request never produced an HTTP response.
type NetworkError struct{ LLMError }

// Retryable returns true if the error is transient. Nothing in this module
// retries; the flag is logged so operators can tell flaky upstreams apart.
func Retryable(err error) bool {
	var rl *RateLimitError
	var se *ServerError
	var ne *NetworkError
	return errors.As(err, &rl) || errors.As(err, &se) || errors.As(err, &ne)
}

// HTTPStatus returns the upstream HTTP status, or 0 when none was received.
func (e *LLMError) HTTPStatus() int { return e.Code }

// StatusCode extracts the upstream HTTP status from anywhere in err's chain, or 0.
func StatusCode(err error) int {
	var sc interface{ HTTPStatus() int }
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	return 0
}
