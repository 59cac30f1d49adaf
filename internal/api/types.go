package api

import (
	"fmt"
	"unicode/utf8"

	"github.com/efebarandurmaz/ragrelay/internal/llm"
	"github.com/efebarandurmaz/ragrelay/internal/retrieval"
)

// Generation parameter bounds enforced on incoming requests.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinMaxTokens   = 1
	MaxMaxTokens   = 4096
	MinTopK        = 1
	MaxTopK        = 20
)

// ChatMessage is one prior turn supplied by the client.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /chat and POST /chat/stream.
type ChatRequest struct {
	Message             string        `json:"message"`
	ConversationHistory []ChatMessage `json:"conversation_history"`
	SystemPrompt        string        `json:"system_prompt"`
	MaxTokens           *int          `json:"max_tokens"`
	Temperature         *float64      `json:"temperature"`
	UseRAG              *bool         `json:"use_rag"`
	TopK                *int          `json:"top_k"`
}

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks field bounds. It does not mutate the request.
func (r *ChatRequest) Validate() error {
	if r.Message == "" {
		return &ValidationError{Field: "message", Message: "must not be empty"}
	}
	if r.Temperature != nil && (*r.Temperature < MinTemperature || *r.Temperature > MaxTemperature) {
		return &ValidationError{
			Field:   "temperature",
			Message: fmt.Sprintf("must be between %.1f and %.1f", MinTemperature, MaxTemperature),
		}
	}
	if r.MaxTokens != nil && (*r.MaxTokens < MinMaxTokens || *r.MaxTokens > MaxMaxTokens) {
		return &ValidationError{
			Field:   "max_tokens",
			Message: fmt.Sprintf("must be between %d and %d", MinMaxTokens, MaxMaxTokens),
		}
	}
	if r.TopK != nil && (*r.TopK < MinTopK || *r.TopK > MaxTopK) {
		return &ValidationError{
			Field:   "top_k",
			Message: fmt.Sprintf("must be between %d and %d", MinTopK, MaxTopK),
		}
	}
	for i, msg := range r.ConversationHistory {
		if !llm.Role(msg.Role).Valid() {
			return &ValidationError{
				Field:   fmt.Sprintf("conversation_history[%d].role", i),
				Message: fmt.Sprintf("unknown role %q", msg.Role),
			}
		}
		if msg.Content == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("conversation_history[%d].content", i),
				Message: "must not be empty",
			}
		}
	}
	return nil
}

// history converts the client-supplied turns to provider messages.
func (r *ChatRequest) history() []llm.Message {
	if len(r.ConversationHistory) == 0 {
		return nil
	}
	msgs := make([]llm.Message, len(r.ConversationHistory))
	for i, m := range r.ConversationHistory {
		msgs[i] = llm.Message{Role: llm.Role(m.Role), Content: m.Content}
	}
	return msgs
}

// useRAG reports the grounding choice, defaulting to enabled.
func (r *ChatRequest) useRAG() bool {
	return r.UseRAG == nil || *r.UseRAG
}

func (r *ChatRequest) topK() int {
	if r.TopK != nil {
		return *r.TopK
	}
	return 0
}

// TokenUsage mirrors llm.Usage on the wire.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// SourceDocument is one retrieved document in a response.
type SourceDocument struct {
	Title         string  `json:"title"`
	Source        string  `json:"source"`
	PageNumber    int     `json:"page_number"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	RerankerScore float64 `json:"reranker_score"`
}

// ChatResponse is the body of a successful POST /chat.
type ChatResponse struct {
	Content string           `json:"content"`
	Role    string           `json:"role"`
	Model   string           `json:"model"`
	Usage   *TokenUsage      `json:"usage,omitempty"`
	Sources []SourceDocument `json:"sources"`
}

// SearchResponse is the body of a successful GET /search.
type SearchResponse struct {
	Query     string           `json:"query"`
	Documents []SourceDocument `json:"documents"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status             string `json:"status"`
	EndpointConfigured bool   `json:"endpoint_configured"`
	Model              string `json:"model"`
}

const searchSnippetLimit = 500

// toSourceDocuments converts retrieved documents for the wire, truncating
// long content to a snippet.
func toSourceDocuments(docs []retrieval.Document, truncate bool) []SourceDocument {
	out := make([]SourceDocument, len(docs))
	for i, d := range docs {
		content := d.Content
		if truncate && len(content) > searchSnippetLimit {
			cut := searchSnippetLimit
			// Back up to a rune boundary so multibyte content is not
			// sliced mid-character.
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			content = content[:cut] + "..."
		}
		out[i] = SourceDocument{
			Title:         d.Title,
			Source:        d.Source,
			PageNumber:    d.PageNumber,
			Content:       content,
			Score:         d.Score,
			RerankerScore: d.RerankerScore,
		}
	}
	return out
}

func toTokenUsage(u *llm.Usage) *TokenUsage {
	if u == nil {
		return nil
	}
	return &TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}
