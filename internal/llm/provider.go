package llm

import "context"

// Provider is the interface all chat-completion backends must implement.
type Provider interface {
	// Complete sends the full message sequence and blocks until the reply
	// is available.
	Complete(ctx context.Context, messages []Message, opts *Options) (*Response, error)
	// CompleteStream opens an incremental completion. The returned stream
	// is lazy and not restartable; a second consumption requires a new
	// call. Callers must Close it.
	CompleteStream(ctx context.Context, messages []Message, opts *Options) (Stream, error)
	// Embed returns embedding vectors for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Name returns the provider identifier (e.g. "azure", "openai").
	Name() string
}

// Options are per-request generation parameters. Nil fields fall back to
// the provider's configured defaults.
type Options struct {
	Temperature *float64
	MaxTokens   *int
}
