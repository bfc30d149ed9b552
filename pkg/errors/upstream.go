package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// UpstreamError describes a non-2xx answer from the marketplace backend.
type UpstreamError struct {
	Status      int
	Message     string
	FieldErrors map[string]string
	// RetryAfter is how long the backend asked callers to wait, zero when it did not say.
	RetryAfter time.Duration
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return fmt.Sprintf("upstream status %d", e.Status)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
}

// CodeForStatus maps an upstream HTTP status onto the local error taxonomy.
func CodeForStatus(status int) Code {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return CodeValidation
	case status == http.StatusUnauthorized:
		return CodeUnauthorized
	case status == http.StatusForbidden:
		return CodeForbidden
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusConflict:
		return CodeConflict
	case status == http.StatusTooManyRequests:
		return CodeThrottled
	default:
		return CodeDependency
	}
}

// Upstream wraps an UpstreamError in a typed Error whose message is the server-supplied one,
// falling back to the provided message when the backend sent none.
func Upstream(upstream *UpstreamError, fallback string) *Error {
	if upstream == nil {
		return New(CodeDependency, fallback)
	}
	msg := upstream.Message
	if msg == "" {
		msg = fallback
	}
	typed := Wrap(CodeForStatus(upstream.Status), upstream, msg)
	if len(upstream.FieldErrors) > 0 {
		typed.WithDetails(upstream.FieldErrors)
	}
	return typed
}

// AsUpstream extracts an UpstreamError from the chain.
func AsUpstream(err error) *UpstreamError {
	var upstream *UpstreamError
	if stdErrors.As(err, &upstream) {
		return upstream
	}
	return nil
}

// ParseRetryAfter reads a Retry-After header in either delay-seconds or HTTP-date form.
// Unparseable and past values yield zero.
func ParseRetryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
