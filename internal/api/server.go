// Package api exposes the chat service over HTTP: blocking and streaming
// chat completions, document search, and health endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/efebarandurmaz/ragrelay/internal/llm"
	"github.com/efebarandurmaz/ragrelay/internal/observability"
	"github.com/efebarandurmaz/ragrelay/internal/rag"
)

// Config holds front-door server configuration.
type Config struct {
	ListenAddr string // e.g. ":8000"

	// ModelName and EndpointConfigured feed the health endpoint.
	ModelName          string
	EndpointConfigured bool

	// DefaultTemperature and DefaultMaxTokens apply when a request
	// leaves the corresponding field unset.
	DefaultTemperature *float64
	DefaultMaxTokens   *int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{ListenAddr: ":8000"}
}

// Server is the chat service HTTP server.
type Server struct {
	config  *Config
	engine  *rag.Engine
	metrics *observability.ServiceMetrics
	server  *http.Server
}

// NewServer creates the front-door server. Metrics may be nil.
func NewServer(config *Config, engine *rag.Engine, metrics *observability.ServiceMetrics) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Server{
		config:  config,
		engine:  engine,
		metrics: metrics,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/chat/stream", s.handleChatStream)
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/api/health", s.handleHealth)
	if metrics != nil {
		mux.Handle("/api/metrics", metrics.Registry.Handler())
	}

	handler := corsMiddleware(loggingMiddleware(mux))

	s.server = &http.Server{
		Addr:        config.ListenAddr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: streamed responses stay open as long as the
		// model keeps producing.
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler returns the configured HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start() error {
	slog.Info("Chat API listening", "addr", s.config.ListenAddr)
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleChat handles POST /chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	if s.metrics != nil {
		s.metrics.ChatRequests.Inc()
		defer s.metrics.RequestDuration.ObserveDuration(start)
	}

	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	resp, err := s.engine.Chat(r.Context(), s.toEngineRequest(req))
	if err != nil {
		s.countError()
		writeMappedError(w, err)
		return
	}

	respondJSON(w, ChatResponse{
		Content: resp.Answer,
		Role:    string(llm.RoleAssistant),
		Model:   resp.Model,
		Usage:   toTokenUsage(resp.Usage),
		Sources: toSourceDocuments(resp.Documents, false),
	})
}

// handleChatStream handles POST /chat/stream (Server-Sent Events).
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.metrics != nil {
		s.metrics.StreamRequests.Inc()
	}

	// Validation failures are plain JSON errors; the stream only opens
	// once the request is accepted.
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	sink, err := newSSESink(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.ActiveStreams.Inc()
		defer s.metrics.ActiveStreams.Dec()
	}

	_, _, err = s.engine.ChatStream(r.Context(), s.toEngineRequest(req), sink)
	if err != nil {
		// The sink already carried the error terminator to the client,
		// or the client is gone.
		s.countError()
		slog.Warn("Stream ended with error", "error", err)
	}
}

// handleSearch handles GET /search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.metrics != nil {
		s.metrics.SearchRequests.Inc()
	}

	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query: must not be empty")
		return
	}

	topK := rag.DefaultTopK
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < MinTopK || n > MaxTopK {
			writeError(w, http.StatusBadRequest, "invalid_request", "top_k: must be an integer between 1 and 20")
			return
		}
		topK = n
	}

	docs, err := s.engine.Documents(r.Context(), query, topK)
	if err != nil {
		s.countError()
		writeMappedError(w, err)
		return
	}

	respondJSON(w, SearchResponse{
		Query:     query,
		Documents: toSourceDocuments(docs, true),
	})
}

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, HealthResponse{
		Status:             "healthy",
		EndpointConfigured: s.config.EndpointConfigured,
		Model:              s.config.ModelName,
	})
}

// decodeChatRequest parses and validates the body, writing the error
// response itself on failure.
func (s *Server) decodeChatRequest(w http.ResponseWriter, r *http.Request) (*ChatRequest, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body: "+err.Error())
		return nil, false
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return nil, false
	}
	return &req, true
}

func (s *Server) toEngineRequest(req *ChatRequest) rag.Request {
	temperature := req.Temperature
	if temperature == nil {
		temperature = s.config.DefaultTemperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == nil {
		maxTokens = s.config.DefaultMaxTokens
	}
	var opts *llm.Options
	if temperature != nil || maxTokens != nil {
		opts = &llm.Options{Temperature: temperature, MaxTokens: maxTokens}
	}
	return rag.Request{
		Message:      req.Message,
		History:      req.history(),
		SystemPrompt: req.SystemPrompt,
		UseRAG:       req.useRAG(),
		TopK:         req.topK(),
		Options:      opts,
	}
}

func (s *Server) countError() {
	if s.metrics != nil {
		s.metrics.RequestErrors.Inc()
	}
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// corsMiddleware adds CORS headers for browser clients
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
