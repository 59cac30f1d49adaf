package llm

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// fakeProvider is a scriptable provider for wrapper tests.
type fakeProvider struct {
	completeCalls int64
	streamCalls   int64
	failuresLeft  int
	failWith      error
	response      *Response
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, messages []Message, opts *Options) (*Response, error) {
	atomic.AddInt64(&f.completeCalls, 1)
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, f.failWith
	}
	if f.response != nil {
		return f.response, nil
	}
	return &Response{Content: "ok"}, nil
}

func (f *fakeProvider) CompleteStream(ctx context.Context, messages []Message, opts *Options) (Stream, error) {
	atomic.AddInt64(&f.streamCalls, 1)
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, f.failWith
	}
	return &scriptedStream{}, nil
}

func (f *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

// scriptedStream yields nothing and ends immediately.
type scriptedStream struct{ closed bool }

func (s *scriptedStream) Recv() (Chunk, error) { return Chunk{Final: true}, nil }
func (s *scriptedStream) Close() error         { s.closed = true; return nil }

func TestRetryProvider_RetriesTransientFailures(t *testing.T) {
	inner := &fakeProvider{
		failuresLeft: 2,
		failWith:     &Error{Kind: KindUnavailable, Provider: "fake", Message: "connection refused"},
	}
	p := NewRetryProvider(inner, &RetryConfig{
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Timeout:    time.Second,
	})

	resp, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("expected content 'ok', got %q", resp.Content)
	}
	if got := atomic.LoadInt64(&inner.completeCalls); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestRetryProvider_NoRetryOnInvalidRequest(t *testing.T) {
	inner := &fakeProvider{
		failuresLeft: 10,
		failWith:     &Error{Kind: KindInvalidRequest, Provider: "fake", Message: "content filtered"},
	}
	p := NewRetryProvider(inner, &RetryConfig{
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Timeout:    time.Second,
	})

	_, err := p.Complete(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if Classify(err) != KindInvalidRequest {
		t.Errorf("expected invalid request kind, got %q", Classify(err))
	}
	if got := atomic.LoadInt64(&inner.completeCalls); got != 1 {
		t.Errorf("expected 1 attempt, got %d", got)
	}
}

func TestRetryProvider_MaxRetriesExceeded(t *testing.T) {
	inner := &fakeProvider{
		failuresLeft: 10,
		failWith:     &Error{Kind: KindRateLimited, Provider: "fake", Message: "throttled"},
	}
	p := NewRetryProvider(inner, &RetryConfig{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Timeout:    time.Second,
	})

	_, err := p.Complete(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := atomic.LoadInt64(&inner.completeCalls); got != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", got)
	}
	if Classify(err) != KindRateLimited {
		t.Errorf("expected wrapped error to classify as rate limited, got %q", Classify(err))
	}
}

func TestRetryProvider_StreamsNeverRetried(t *testing.T) {
	inner := &fakeProvider{
		failuresLeft: 1,
		failWith:     &Error{Kind: KindUnavailable, Provider: "fake", Message: "down"},
	}
	p := NewRetryProvider(inner, &RetryConfig{
		MaxRetries: 5,
		RetryDelay: time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Timeout:    time.Second,
	})

	_, err := p.CompleteStream(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected stream open error to surface")
	}
	if got := atomic.LoadInt64(&inner.streamCalls); got != 1 {
		t.Errorf("expected exactly 1 stream attempt, got %d", got)
	}
}

func TestRetryProvider_ContextCancelStopsRetries(t *testing.T) {
	inner := &fakeProvider{
		failuresLeft: 100,
		failWith:     &Error{Kind: KindUnavailable, Provider: "fake", Message: "down"},
	}
	p := NewRetryProvider(inner, &RetryConfig{
		MaxRetries: 100,
		RetryDelay: 50 * time.Millisecond,
		MaxDelay:   time.Second,
		Timeout:    time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := p.Complete(ctx, nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt64(&inner.completeCalls); got > 2 {
		t.Errorf("expected retries to stop on cancel, got %d attempts", got)
	}
}

func TestRateLimitProvider_UnlimitedPassesThrough(t *testing.T) {
	inner := &fakeProvider{}
	p := NewRateLimitProvider(inner, &RateLimitConfig{RequestsPerMinute: 0})

	for i := 0; i < 10; i++ {
		if _, err := p.Complete(context.Background(), nil, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := atomic.LoadInt64(&inner.completeCalls); got != 10 {
		t.Errorf("expected 10 calls, got %d", got)
	}
}

func TestRateLimitProvider_BlocksWhenBucketEmpty(t *testing.T) {
	inner := &fakeProvider{}
	p := NewRateLimitProvider(inner, &RateLimitConfig{RequestsPerMinute: 1, BurstSize: 1})

	if _, err := p.CompleteStream(context.Background(), nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Complete(ctx, nil, nil)
	if err == nil {
		t.Fatal("expected second dispatch to block until context expiry")
	}
}
