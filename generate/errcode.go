package generate

import (
	"context"
	"errors"
)

// Error codes returned to clients in reword.Error.Code.
const (
	CodeNotConfigured   = "not_configured"
	CodeInvalidInput    = "invalid_input"
	CodeEmptyOutput     = "empty_output"
	CodeInvalidResponse = "invalid_response"
	CodeSaveError       = "save_error"
	CodeCancelled       = "cancelled"
	CodeAPIError        = "api_error"
)

// Classify maps a generation error to a client error code.
func Classify(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled
	case errors.Is(err, ErrNotConfigured):
		return CodeNotConfigured
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrEmptyOutput):
		return CodeEmptyOutput
	case errors.Is(err, ErrResponseInvalid):
		return CodeInvalidResponse
	default:
		return CodeAPIError
	}
}
