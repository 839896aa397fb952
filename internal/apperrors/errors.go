// Package apperrors defines the application error family shared by tools,
// agents and the orchestrator. Every member carries a machine-readable code,
// an HTTP-like status and a retryable flag.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error codes.
const (
	CodeInternal        = "INTERNAL"
	CodeUnknownTaskType = "UNKNOWN_TASK_TYPE"
	CodeInvalidPayload  = "INVALID_PAYLOAD"
	CodeHTTP            = "HTTP_ERROR"
	CodeTool            = "TOOL_ERROR"
	CodeToolNotFound    = "TOOL_NOT_FOUND"
	CodeRateLimit       = "RATE_LIMIT"
	CodeValidation      = "VALIDATION_ERROR"
	CodeGeneration      = "GENERATION_ERROR"
	CodeAgentPanic      = "AGENT_PANIC"
)

// DefaultStatus is used when a constructor is not given a status.
const DefaultStatus = 500

// AppError is the root of the error family.
//
// StatusCode 0 means "no status", e.g. a transport failure where no response
// was ever received.
type AppError struct {
	Message    string
	Code       string
	StatusCode int
	Retryable  bool
	Cause      error
}

// New returns an AppError with the default status and retryable=false.
func New(code, message string) *AppError {
	return &AppError{Message: message, Code: code, StatusCode: DefaultStatus}
}

// Newf is New with a format string.
func Newf(code, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// WithStatus sets the status and returns the same error.
func (e *AppError) WithStatus(status int) *AppError {
	e.StatusCode = status
	return e
}

// WithRetryable sets the retryable flag and returns the same error.
func (e *AppError) WithRetryable(retryable bool) *AppError {
	e.Retryable = retryable
	return e
}

// WithCause records the underlying error and returns the same error.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) Error() string { return e.Message }

func (e *AppError) Unwrap() error { return e.Cause }

// HTTPStatus reports the status and whether one is known.
func (e *AppError) HTTPStatus() (int, bool) {
	return e.StatusCode, e.StatusCode != 0
}

// AppErr returns the receiver. The method is promoted through embedding so
// that From can see every member of the family.
func (e *AppError) AppErr() *AppError { return e }

// Kind is the name of the concrete error type, used in structured logs.
func (e *AppError) Kind() string { return "AppError" }

// ToolError is raised by a tool's execution.
type ToolError struct {
	AppError
	ToolName string
}

// NewToolError returns a non-retryable TOOL_ERROR for the named tool.
func NewToolError(toolName, message string, cause error) *ToolError {
	return &ToolError{
		AppError: AppError{
			Message:    message,
			Code:       CodeTool,
			StatusCode: DefaultStatus,
			Cause:      cause,
		},
		ToolName: toolName,
	}
}

func (e *ToolError) Kind() string { return "ToolError" }

// RateLimitError signals that a tool or backend asked the caller to slow down.
type RateLimitError struct {
	AppError
	ToolName   string
	RetryAfter time.Duration
}

// NewRateLimitError returns a retryable RATE_LIMIT error with status 429.
func NewRateLimitError(toolName string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		AppError: AppError{
			Message: fmt.Sprintf("Rate limit exceeded for %s. Retry after %dms",
				toolName, retryAfter.Milliseconds()),
			Code:       CodeRateLimit,
			StatusCode: 429,
			Retryable:  true,
		},
		ToolName:   toolName,
		RetryAfter: retryAfter,
	}
}

func (e *RateLimitError) Kind() string { return "RateLimitError" }

// Violation is a single failed input constraint.
type Violation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Param      string `json:"param,omitempty"`
}

func (v Violation) String() string {
	if v.Param != "" {
		return fmt.Sprintf("%s: %s=%s", v.Field, v.Constraint, v.Param)
	}
	return fmt.Sprintf("%s: %s", v.Field, v.Constraint)
}

// ValidationError is a ToolError raised before execution when the input does
// not satisfy the tool's declared schema.
type ValidationError struct {
	ToolError
	Violations []Violation
}

// NewValidationError returns a VALIDATION_ERROR with status 400.
func NewValidationError(toolName string, violations []Violation, cause error) *ValidationError {
	msg := fmt.Sprintf("invalid input for %s", toolName)
	if len(violations) > 0 {
		parts := make([]string, len(violations))
		for i, v := range violations {
			parts[i] = v.String()
		}
		msg += ": " + strings.Join(parts, "; ")
	} else if cause != nil {
		msg += ": " + cause.Error()
	}
	return &ValidationError{
		ToolError: ToolError{
			AppError: AppError{
				Message:    msg,
				Code:       CodeValidation,
				StatusCode: 400,
				Cause:      cause,
			},
			ToolName: toolName,
		},
		Violations: violations,
	}
}

func (e *ValidationError) Kind() string { return "ValidationError" }

// appErrorer is implemented by every member of the family through the
// embedded AppError.
type appErrorer interface {
	AppErr() *AppError
}

// From returns the AppError view of err, looking through wrapping.
func From(err error) (*AppError, bool) {
	var ae appErrorer
	if errors.As(err, &ae) {
		return ae.AppErr(), true
	}
	return nil, false
}

// IsRetryable reports whether err belongs to the family and is retryable.
func IsRetryable(err error) bool {
	ae, ok := From(err)
	return ok && ae.Retryable
}

// KindOf names the concrete type of err for logging.
func KindOf(err error) string {
	var k interface{ Kind() string }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return fmt.Sprintf("%T", err)
}
