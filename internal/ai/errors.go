package ai

import (
	"fmt"
	"time"
)

// Display names used in error messages.
const (
	labelOpenAI     = "OpenAI"
	labelOpenRouter = "OpenRouter"
	labelOllama     = "Ollama"
)

// source names the backend that produced the error.
func (e *APIError) source() string {
	if e == nil || e.Provider == "" {
		return "provider"
	}
	return e.Provider
}

// AuthError is a 401/403 from OpenAI or OpenRouter: the API key is missing,
// revoked or lacks access to the model.
type AuthError struct{ *APIError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s rejected the API key: %v", e.source(), e.APIError)
}

// RateLimitError is a 429. RetryAfter is zero when the response gave no hint.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limit hit, retry in %s: %v", e.source(), e.RetryAfter.Round(time.Second), e.APIError)
	}
	return fmt.Sprintf("%s rate limit hit: %v", e.source(), e.APIError)
}

// ModelNotFoundError means the backend does not serve the requested model.
// For Ollama this usually means the model was never pulled.
type ModelNotFoundError struct{ *APIError }

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("%s does not serve the requested model: %v", e.source(), e.APIError)
}

// BadRequestError is a 400, typically a prompt that exceeds the model's
// context window or an invalid parameter.
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("%s refused the request: %v", e.source(), e.APIError)
}

// QuotaExceededError reports exhausted credits or billing limits.
type QuotaExceededError struct{ *APIError }

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s account quota exhausted: %v", e.source(), e.APIError)
}

// ServerError is a 5xx from the backend.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s server error: %v", e.source(), e.APIError)
}

// UnreachableError means no HTTP response arrived, e.g. a local Ollama that
// is not running.
type UnreachableError struct {
	Provider string
	Host     string
	Err      error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "unreachable"
	}
	who := e.Provider
	if who == "" {
		who = "endpoint"
	}
	if e.Host != "" {
		return fmt.Sprintf("%s unreachable at %s: %v", who, e.Host, e.Err)
	}
	return fmt.Sprintf("%s unreachable: %v", who, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }
