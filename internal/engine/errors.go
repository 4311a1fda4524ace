package engine

import "fmt"

// EngineError represents a business logic error with a code
type EngineError struct {
	Err     error
	Message string
	Code    string
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeValidation   = "validation_failed"
	ErrCodeRateLimited  = "rate_limit_exceeded"
	ErrCodeNotFound     = "transaction_not_found"
	ErrCodeInvalidState = "invalid_state"
	ErrCodeEncoding     = "encoding_failed"
	ErrCodeInternal     = "internal_error"
)
