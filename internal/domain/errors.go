package domain

import (
	"errors"
	"fmt"
)

// ErrorCode identifies one failure category of the fixed extraction taxonomy.
type ErrorCode string

const (
	// CodeFetchFailed: the content fetcher raised while reaching the source.
	CodeFetchFailed ErrorCode = "fetch_failed"
	// CodeEmptyContent: the source was reachable but yielded nothing usable.
	CodeEmptyContent ErrorCode = "empty_html"
	// CodeAgentError: the extraction engine raised mid-inference.
	CodeAgentError ErrorCode = "agent_error"
	// CodeNotFound: the engine completed cleanly but found no recipe.
	CodeNotFound ErrorCode = "recipe_not_found"
	// CodeConvertFailed: the candidate result could not be mapped to the
	// canonical schema.
	CodeConvertFailed ErrorCode = "convert_failed"
	// CodeUnauthorized: token or draft ownership mismatch at consumption time.
	CodeUnauthorized ErrorCode = "unauthorized"
	// CodeInvalidMode: malformed routing input to the streaming entry point.
	CodeInvalidMode ErrorCode = "invalid_mode_reference"
	// CodeUnexpected: anything outside the taxonomy on the single-shot path.
	CodeUnexpected ErrorCode = "unexpected_error"
)

// ErrNotFound indicates an absent store record.
var ErrNotFound = errors.New("record not found")

// DomainError carries a taxonomy code across the pipeline boundary. Raw
// collaborator errors are wrapped, never surfaced to callers as-is.
type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error.
func NewError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// Common error constructors
func FetchFailed(message string, err error) *DomainError {
	return NewError(CodeFetchFailed, message, err)
}

func EmptyContent(message string) *DomainError {
	return NewError(CodeEmptyContent, message, nil)
}

func AgentError(message string, err error) *DomainError {
	return NewError(CodeAgentError, message, err)
}

func ConvertFailed(message string, err error) *DomainError {
	return NewError(CodeConvertFailed, message, err)
}

func Unauthorized(message string) *DomainError {
	return NewError(CodeUnauthorized, message, nil)
}

// CodeOf extracts the taxonomy code from err, or CodeUnexpected when err is
// not a DomainError.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeUnexpected
}
