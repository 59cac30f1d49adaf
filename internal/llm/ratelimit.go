package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimitConfig configures client-side throttling of upstream calls.
type RateLimitConfig struct {
	// RequestsPerMinute limits completion dispatches per minute (0 = unlimited)
	RequestsPerMinute int
	// BurstSize allows a temporary burst above the steady rate
	BurstSize int
}

// DefaultRateLimitConfig returns defaults suited to a small deployment quota.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         5,
	}
}

// RateLimitProvider throttles how fast requests are dispatched upstream.
// Both blocking completions and stream openings consume from the same
// bucket; an in-flight stream costs one dispatch regardless of length.
type RateLimitProvider struct {
	inner  Provider
	config *RateLimitConfig

	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
}

// NewRateLimitProvider creates a rate-limited provider wrapper.
func NewRateLimitProvider(inner Provider, config *RateLimitConfig) *RateLimitProvider {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	burst := config.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitProvider{
		inner:      inner,
		config:     config,
		tokens:     burst,
		lastRefill: time.Now(),
	}
}

// Name returns the underlying provider name.
func (r *RateLimitProvider) Name() string {
	return r.inner.Name()
}

// Complete waits for dispatch capacity, then delegates.
func (r *RateLimitProvider) Complete(ctx context.Context, messages []Message, opts *Options) (*Response, error) {
	if err := r.waitForCapacity(ctx); err != nil {
		return nil, err
	}
	return r.inner.Complete(ctx, messages, opts)
}

// CompleteStream waits for dispatch capacity, then opens the stream.
func (r *RateLimitProvider) CompleteStream(ctx context.Context, messages []Message, opts *Options) (Stream, error) {
	if err := r.waitForCapacity(ctx); err != nil {
		return nil, err
	}
	return r.inner.CompleteStream(ctx, messages, opts)
}

// Embed waits for dispatch capacity, then delegates.
func (r *RateLimitProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.waitForCapacity(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, texts)
}

// waitForCapacity blocks until the bucket grants a dispatch.
func (r *RateLimitProvider) waitForCapacity(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()

		if r.config.RequestsPerMinute == 0 {
			r.mu.Unlock()
			return nil
		}
		if r.tokens > 0 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}

		perToken := time.Minute / time.Duration(r.config.RequestsPerMinute)
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(perToken):
		}
	}
}

// refill adds tokens based on elapsed time, capped at the burst size.
func (r *RateLimitProvider) refill() {
	if r.config.RequestsPerMinute == 0 {
		return
	}
	now := time.Now()
	elapsed := now.Sub(r.lastRefill)

	add := int(elapsed.Minutes() * float64(r.config.RequestsPerMinute))
	if add > 0 {
		burst := r.config.BurstSize
		if burst <= 0 {
			burst = 1
		}
		r.tokens += add
		if r.tokens > burst {
			r.tokens = burst
		}
		r.lastRefill = now
	}
}
