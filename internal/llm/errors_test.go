package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"typed rate limit", &Error{Kind: KindRateLimited, Provider: "azure"}, KindRateLimited},
		{"wrapped typed error", fmt.Errorf("call failed: %w", &Error{Kind: KindInvalidRequest}), KindInvalidRequest},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"canceled", context.Canceled, KindCanceled},
		{"plain network error", errors.New("dial tcp: connection refused"), KindUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", &Error{Kind: KindRateLimited}, true},
		{"unavailable", &Error{Kind: KindUnavailable}, true},
		{"timeout", context.DeadlineExceeded, true},
		{"invalid request", &Error{Kind: KindInvalidRequest}, false},
		{"canceled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Kind: KindRateLimited, Provider: "azure", HTTPStatus: 429, Message: "slow down"}
	got := err.Error()
	for _, want := range []string{"azure", "429", "slow down"} {
		if !strings.Contains(got, want) {
			t.Errorf("error message %q missing %q", got, want)
		}
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := &Error{Kind: KindUnavailable, Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
}
