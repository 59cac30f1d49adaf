package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies failures talking to the completion endpoint.
type ErrorKind string

const (
	// KindUnavailable covers network, DNS and auth failures reaching the
	// endpoint, plus provider-side 5xx responses.
	KindUnavailable ErrorKind = "upstream_unavailable"
	// KindRateLimited means the provider signalled throttling (429).
	KindRateLimited ErrorKind = "upstream_rate_limited"
	// KindInvalidRequest means the provider rejected the payload, e.g. a
	// content-safety refusal or a malformed request.
	KindInvalidRequest ErrorKind = "upstream_invalid_request"
	// KindTimeout means the configured deadline elapsed mid-call.
	KindTimeout ErrorKind = "timeout"
	// KindCanceled means the caller abandoned the call.
	KindCanceled ErrorKind = "canceled"
)

// Error is a classified upstream failure.
type Error struct {
	Kind       ErrorKind
	Provider   string
	HTTPStatus int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s: %s (%d): %s", e.Provider, e.Kind, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Classify returns the kind of an error from a provider call. Unclassified
// errors count as unavailable: the call never produced a provider verdict.
func Classify(err error) ErrorKind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	return KindUnavailable
}

// IsRetryable reports whether resubmitting the identical request could
// succeed. Invalid requests and caller cancellations never are.
func IsRetryable(err error) bool {
	switch Classify(err) {
	case KindRateLimited, KindUnavailable, KindTimeout:
		return true
	}
	return false
}
