// Package rag orchestrates retrieval-augmented chat: retrieve documents,
// ground the system prompt, and generate an answer with the model provider.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/efebarandurmaz/ragrelay/internal/llm"
	"github.com/efebarandurmaz/ragrelay/internal/observability"
	"github.com/efebarandurmaz/ragrelay/internal/relay"
	"github.com/efebarandurmaz/ragrelay/internal/retrieval"
)

// DefaultTopK is the retrieval depth used when a request does not set one.
const DefaultTopK = 5

// Request is a single chat turn with optional grounding.
type Request struct {
	Message      string
	History      []llm.Message
	SystemPrompt string
	UseRAG       bool
	TopK         int
	Options      *llm.Options
}

// Response is the result of a blocking chat turn.
type Response struct {
	Answer    string
	Model     string
	Usage     *llm.Usage
	Documents []retrieval.Document
}

// Engine wires a model provider and a document retriever into the
// chat workflow. The retriever may be nil, in which case grounded
// requests fall back to direct chat.
type Engine struct {
	provider  llm.Provider
	retriever retrieval.Retriever
	metrics   *observability.ServiceMetrics
	logger    *slog.Logger
}

// New creates an engine. Logger and metrics may be nil.
func New(provider llm.Provider, retriever retrieval.Retriever, metrics *observability.ServiceMetrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		provider:  provider,
		retriever: retriever,
		metrics:   metrics,
		logger:    logger,
	}
}

// Documents retrieves documents for a query without generating an answer.
func (e *Engine) Documents(ctx context.Context, query string, topK int) ([]retrieval.Document, error) {
	if e.retriever == nil {
		return nil, fmt.Errorf("no retriever configured")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	ctx, span := observability.StartRetrievalSpan(ctx, e.retriever.Name(), topK)
	defer span.End()

	start := time.Now()
	docs, err := e.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("retrieve documents: %w", err)
	}
	observability.RecordRetrievalResult(span, len(docs), time.Since(start))
	if e.metrics != nil {
		e.metrics.RetrievalDuration.ObserveDuration(start)
	}

	e.logger.Debug("documents retrieved",
		"backend", e.retriever.Name(),
		"count", len(docs),
		"duration", time.Since(start))
	return docs, nil
}

// Chat runs a complete blocking chat turn and returns the full answer.
func (e *Engine) Chat(ctx context.Context, req Request) (*Response, error) {
	ctx, span := observability.StartChatSpan(ctx, false)
	defer span.End()

	messages, docs, err := e.prepare(ctx, req)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	llmCtx, llmSpan := observability.StartLLMSpan(ctx, e.provider.Name(), "")
	start := time.Now()
	resp, err := e.provider.Complete(llmCtx, messages, req.Options)
	if err != nil {
		observability.RecordError(llmSpan, err)
		llmSpan.End()
		observability.RecordError(span, err)
		return nil, err
	}
	if resp.Usage != nil {
		observability.RecordLLMMetrics(llmSpan, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, time.Since(start))
	}
	llmSpan.End()

	return &Response{
		Answer:    resp.Content,
		Model:     resp.Model,
		Usage:     resp.Usage,
		Documents: docs,
	}, nil
}

// ChatStream runs a streaming chat turn, relaying deltas to sink as they
// arrive. The returned documents are the grounding sources, available
// before the first delta so callers can surface citations.
func (e *Engine) ChatStream(ctx context.Context, req Request, sink relay.Sink) ([]retrieval.Document, *relay.Result, error) {
	ctx, span := observability.StartChatSpan(ctx, true)
	defer span.End()

	messages, docs, err := e.prepare(ctx, req)
	if err != nil {
		observability.RecordError(span, err)
		// The sink may already be an open stream; it still needs an
		// error terminator before it closes.
		sink.SendError(err)
		return nil, nil, err
	}

	r := relay.New(e.provider)
	relayCtx, relaySpan := observability.StartRelaySpan(ctx, e.provider.Name())
	result, err := r.Run(relayCtx, messages, req.Options, sink)
	if err != nil {
		observability.RecordError(relaySpan, err)
	}
	if result != nil {
		observability.RecordRelayResult(relaySpan, result.Chunks, r.State().String())
		if e.metrics != nil {
			e.metrics.StreamChunks.Add(float64(result.Chunks))
		}
	}
	relaySpan.End()

	return docs, result, err
}

// prepare resolves grounding and builds the message list for a request.
func (e *Engine) prepare(ctx context.Context, req Request) ([]llm.Message, []retrieval.Document, error) {
	var docs []retrieval.Document

	system := req.SystemPrompt
	if req.UseRAG && e.retriever != nil {
		var err error
		docs, err = e.Documents(ctx, req.Message, req.TopK)
		if err != nil {
			return nil, nil, err
		}
		system = GroundedPrompt(docs)
	} else if system == "" {
		system = DefaultSystemPrompt
	}

	turn := llm.BuildTurn(req.History, req.Message)
	return llm.WithSystem(system, turn), docs, nil
}
