// Package errors defines the stable error codes reported to tool callers
// and maps internal failures onto them.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"tfmcp/internal/registry"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// NotFound indicates a lookup in one namespace found nothing
	NotFound ErrorCode = "NOT_FOUND"
	// NotFoundAfterFallback indicates every configured namespace was tried
	NotFoundAfterFallback ErrorCode = "NOT_FOUND_AFTER_FALLBACK"
	// RateLimited indicates the registry asked us to slow down
	RateLimited ErrorCode = "RATE_LIMITED"
	// NetworkError indicates the registry could not be reached or failed
	NetworkError ErrorCode = "NETWORK_ERROR"
	// Timeout indicates the request or batch deadline expired
	Timeout ErrorCode = "TIMEOUT"
	// MalformedResponse indicates the registry answered with unreadable data
	MalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	// InvalidParameter indicates bad tool input
	InvalidParameter ErrorCode = "INVALID_PARAMETER"
	// ConfigParseError indicates Terraform files could not be loaded
	ConfigParseError ErrorCode = "CONFIG_PARSE_ERROR"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
	// RetryLater suggests waiting before another attempt
	RetryLater FixActionType = "retry-later"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
	AfterMs     int64         `json:"afterMs,omitempty"`
}

// Drilldown represents a suggested follow-up tool call
type Drilldown struct {
	Label string `json:"label"`
	Query string `json:"query"`
}

// ToolError is an error with a stable code and suggestions for the caller
type ToolError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	Drilldowns     []Drilldown `json:"drilldowns,omitempty"`
	cause          error
}

// New creates a ToolError with the default fixes for code
func New(code ErrorCode, message string, cause error) *ToolError {
	return &ToolError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *ToolError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ToolError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *ToolError) WithDetails(details interface{}) *ToolError {
	e.Details = details
	return e
}

// WithDrilldowns adds follow-up suggestions
func (e *ToolError) WithDrilldowns(d ...Drilldown) *ToolError {
	e.Drilldowns = append(e.Drilldowns, d...)
	return e
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	NotFoundAfterFallback: {
		{
			Type:        RunCommand,
			Command:     "tfmcp provider --namespace <namespace> <name>",
			Safe:        true,
			Description: "Retry with an explicit namespace",
		},
		{
			Type:        OpenDocs,
			URL:         "https://registry.terraform.io/browse/providers",
			Description: "Browse the registry for the correct address",
		},
	},
	RateLimited: {
		{
			Type:        RetryLater,
			Description: "Retry after the registry's rate limit window",
		},
	},
	NetworkError: {
		{
			Type:        RunCommand,
			Command:     "curl -sI https://registry.terraform.io/.well-known/terraform.json",
			Safe:        true,
			Description: "Check that the registry is reachable",
		},
	},
	Timeout: {
		{
			Type:        RunCommand,
			Command:     "TFMCP_REGISTRY_BATCH_TIMEOUT_MS=60000 tfmcp deps",
			Safe:        true,
			Description: "Retry with a longer deadline",
		},
	},
	ConfigParseError: {
		{
			Type:        RunCommand,
			Command:     "terraform validate",
			Safe:        true,
			Description: "Show the configuration errors in detail",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return append([]FixAction(nil), fixes...)
	}
	return nil
}

var registryCodes = map[registry.ErrorKind]ErrorCode{
	registry.ErrNotFound:              NotFound,
	registry.ErrNotFoundAfterFallback: NotFoundAfterFallback,
	registry.ErrRateLimited:           RateLimited,
	registry.ErrNetwork:               NetworkError,
	registry.ErrTimeout:               Timeout,
	registry.ErrMalformedResponse:     MalformedResponse,
}

// registryDetails is attached to errors that came from the registry.
type registryDetails struct {
	Subject      string   `json:"subject,omitempty"`
	StatusCode   int      `json:"statusCode,omitempty"`
	Attempted    []string `json:"attemptedNamespaces,omitempty"`
	RetryAfterMs int64    `json:"retryAfterMs,omitempty"`
}

// FromError converts any error into a ToolError. ToolErrors pass through
// unchanged; registry errors keep their kind and details.
func FromError(err error) *ToolError {
	if err == nil {
		return nil
	}
	var te *ToolError
	if stderrors.As(err, &te) {
		return te
	}

	var re *registry.Error
	if stderrors.As(err, &re) {
		code, ok := registryCodes[re.Kind]
		if !ok {
			code = InternalError
		}
		out := New(code, re.Error(), nil)
		out.cause = err
		out.Details = registryDetails{
			Subject:      re.Subject,
			StatusCode:   re.StatusCode,
			Attempted:    re.Attempted,
			RetryAfterMs: re.RetryAfter.Milliseconds(),
		}
		if code == RateLimited && re.RetryAfter > 0 {
			out.SuggestedFixes = []FixAction{{
				Type:        RetryLater,
				AfterMs:     re.RetryAfter.Milliseconds(),
				Description: fmt.Sprintf("Retry after %s", re.RetryAfter.Round(time.Second)),
			}}
		}
		return out
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return New(Timeout, "operation timed out", err)
	}
	return New(InternalError, "unexpected error", err)
}

// CodeOf returns the stable code for err.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return FromError(err).Code
}
