// Package relay forwards incremental model output to a client as it is
// produced, preserving arrival order and handling partial failure.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/efebarandurmaz/ragrelay/internal/llm"
)

// State tracks a relay through one request lifecycle.
type State int

const (
	StateIdle State = iota
	StateDispatched
	StateStreaming
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatched:
		return "dispatched"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// ErrClientDisconnected means the client transport went away mid-stream.
// It is a cleanup signal, never reported back to the client.
var ErrClientDisconnected = errors.New("client disconnected mid-stream")

// Sink is the client-facing transport for one streamed response.
type Sink interface {
	// SendDelta forwards one content fragment. An error means the client
	// is gone.
	SendDelta(delta string) error
	// SendDone writes the terminal end-of-stream marker.
	SendDone() error
	// SendError writes a distinguishable error terminator. Any deltas
	// already sent stay sent.
	SendError(err error) error
}

// Result is the finalized outcome of a completed stream.
type Result struct {
	Content string // concatenation of all deltas, in arrival order
	Chunks  int
}

// Relay drives a single streaming round-trip. One instance serves one
// request; instances share no state.
type Relay struct {
	provider llm.Provider
	state    State
}

// New creates an idle relay on the given provider.
func New(provider llm.Provider) *Relay {
	return &Relay{provider: provider, state: StateIdle}
}

// State returns the current lifecycle state.
func (r *Relay) State() State { return r.state }

// Run dispatches the completion and forwards chunks to the sink in strict
// receipt order until the upstream finishes or either side fails.
//
// On upstream failure an error terminator is written after whatever partial
// deltas the client already received, and the error is returned for the
// caller's retry policy — the relay itself never retries. On client
// disconnect the upstream stream is closed promptly and ErrClientDisconnected
// is returned; nothing further is written. Conversation history must only be
// updated from a non-nil Result.
func (r *Relay) Run(ctx context.Context, messages []llm.Message, opts *llm.Options, sink Sink) (*Result, error) {
	r.state = StateDispatched

	stream, err := r.provider.CompleteStream(ctx, messages, opts)
	if err != nil {
		r.state = StateFailed
		sink.SendError(err)
		return nil, err
	}
	defer stream.Close()

	var content strings.Builder
	chunks := 0

	for {
		select {
		case <-ctx.Done():
			r.state = StateFailed
			err := ctxError(ctx.Err())
			sink.SendError(err)
			return nil, err
		default:
		}

		chunk, err := stream.Recv()
		if err != nil {
			r.state = StateFailed
			sink.SendError(err)
			return nil, err
		}

		if chunk.Final {
			if err := sink.SendDone(); err != nil {
				r.state = StateFailed
				return nil, fmt.Errorf("%w: %v", ErrClientDisconnected, err)
			}
			r.state = StateCompleted
			return &Result{Content: content.String(), Chunks: chunks}, nil
		}

		r.state = StateStreaming
		content.WriteString(chunk.Delta)
		chunks++

		if err := sink.SendDelta(chunk.Delta); err != nil {
			// The client already left; stop draining upstream.
			r.state = StateFailed
			return nil, fmt.Errorf("%w: %v", ErrClientDisconnected, err)
		}
	}
}

func ctxError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.Error{Kind: llm.KindTimeout, Message: "stream deadline exceeded", Cause: err}
	}
	return &llm.Error{Kind: llm.KindCanceled, Message: "stream canceled", Cause: err}
}
