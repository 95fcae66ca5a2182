// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Provider errors.
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrRateLimit           = errors.New("rate limit exceeded")

	// Conversation errors.
	ErrInvalidUserInput      = errors.New("invalid user input")
	ErrStaleSelection        = errors.New("selection no longer pending")
	ErrUnauthorizedSelection = errors.New("selection from a different user")

	// Persistence errors.
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrNotFound           = errors.New("not found")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user. The
// wrapped error stays in the logs; only UserMessage ever reaches the chat.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
