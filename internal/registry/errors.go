package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrorKind classifies registry failures.
type ErrorKind string

const (
	// ErrNotFound is a single-namespace miss. The fallback resolver consumes it;
	// callers see ErrNotFoundAfterFallback instead.
	ErrNotFound              ErrorKind = "not_found"
	ErrNotFoundAfterFallback ErrorKind = "not_found_after_fallback"
	ErrRateLimited           ErrorKind = "rate_limited"
	ErrNetwork               ErrorKind = "network"
	ErrTimeout               ErrorKind = "timeout"
	ErrMalformedResponse     ErrorKind = "malformed_response"
)

// Error is the typed failure returned by every registry operation.
type Error struct {
	Kind ErrorKind
	// Subject is the query or URL the failure relates to.
	Subject string
	// StatusCode is the HTTP status, when one was received.
	StatusCode int
	// Attempted lists namespaces tried, in order, for fallback failures.
	Attempted []string
	// RetryAfter is the server's retry hint for rate limiting, zero if absent.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	switch e.Kind {
	case ErrNotFound:
		fmt.Fprintf(&b, "%s not found", e.Subject)
	case ErrNotFoundAfterFallback:
		fmt.Fprintf(&b, "%s not found in namespaces [%s]", e.Subject, strings.Join(e.Attempted, ", "))
	case ErrRateLimited:
		fmt.Fprintf(&b, "rate limited fetching %s", e.Subject)
		if e.RetryAfter > 0 {
			fmt.Fprintf(&b, " (retry after %s)", e.RetryAfter)
		}
	case ErrTimeout:
		fmt.Fprintf(&b, "timed out fetching %s", e.Subject)
	case ErrMalformedResponse:
		fmt.Fprintf(&b, "malformed response for %s", e.Subject)
	default:
		fmt.Fprintf(&b, "network error fetching %s", e.Subject)
		if e.StatusCode != 0 {
			fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: ErrTimeout})
// works as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Subject == "" && t.Err == nil
}

// KindOf returns the ErrorKind of err, or "" when err is not a registry error.
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// IsNotFound reports whether err is a single-namespace miss.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrNotFound
}

// classifyTransportError maps a transport-level failure to Timeout or Network.
func classifyTransportError(ctx context.Context, subject string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return &Error{Kind: ErrTimeout, Subject: subject, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: ErrTimeout, Subject: subject, Err: err}
	}
	return &Error{Kind: ErrNetwork, Subject: subject, Err: err}
}

// timeoutError reports a lookup abandoned because its context ended.
func timeoutError(subject string, cause error) *Error {
	return &Error{Kind: ErrTimeout, Subject: subject, Err: cause}
}
