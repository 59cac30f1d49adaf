// Package retrieval provides document retrieval backends for grounding chat
// completions in indexed content.
package retrieval

import "context"

// Document is a retrieved chunk from the search index.
type Document struct {
	Content       string  `json:"content"`
	Title         string  `json:"title,omitempty"`
	Source        string  `json:"source,omitempty"`
	PageNumber    int     `json:"page_number,omitempty"`
	Score         float64 `json:"score,omitempty"`
	RerankerScore float64 `json:"reranker_score,omitempty"`
}

// Retriever finds the documents most relevant to a query.
type Retriever interface {
	// Retrieve returns up to topK documents, best match first.
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
	// Name returns the backend identifier (e.g. "azsearch", "qdrant").
	Name() string
}
