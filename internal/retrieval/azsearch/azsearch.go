// Package azsearch implements retrieval.Retriever against an Azure AI Search
// index using hybrid (keyword + vector) queries with optional semantic
// ranking.
package azsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/efebarandurmaz/ragrelay/internal/llm/azure"
	"github.com/efebarandurmaz/ragrelay/internal/retrieval"
)

const (
	// searchScope is the token audience for Azure AI Search.
	searchScope = "https://search.azure.com/.default"

	defaultAPIVersion = "2024-07-01"
)

// Config holds the connection and query settings for one search index.
type Config struct {
	Endpoint   string // e.g. https://mysearch.search.windows.net
	Index      string
	APIVersion string
	APIKey     string // optional; when empty the credential provider is used

	// UseSemanticRanker enables the semantic reranking stage.
	UseSemanticRanker bool
	// SemanticConfiguration names the semantic configuration in the index.
	SemanticConfiguration string
	// VectorField is the vector field queried with vectorizable text.
	VectorField string
}

// Client queries Azure AI Search over its REST API.
type Client struct {
	config Config
	apiKey string
	http   *http.Client
}

// New creates an Azure AI Search retriever. When cfg.APIKey is empty,
// requests authenticate with bearer tokens from cred.
func New(cfg Config, cred azure.CredentialProvider) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("azsearch: endpoint not configured")
	}
	if cfg.Index == "" {
		return nil, errors.New("azsearch: index not configured")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.VectorField == "" {
		cfg.VectorField = "embedding"
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	if cfg.APIKey == "" {
		if cred == nil {
			return nil, errors.New("azsearch: neither api key nor credential provider configured")
		}
		httpClient.Transport = azure.BearerTransport(cred, searchScope)
	}

	return &Client{
		config: cfg,
		apiKey: cfg.APIKey,
		http:   httpClient,
	}, nil
}

func (c *Client) Name() string { return "azsearch" }

type vectorQuery struct {
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	K      int    `json:"k"`
	Fields string `json:"fields"`
}

type searchRequest struct {
	Search                string        `json:"search"`
	Top                   int           `json:"top"`
	Select                string        `json:"select"`
	VectorQueries         []vectorQuery `json:"vectorQueries"`
	QueryType             string        `json:"queryType,omitempty"`
	SemanticConfiguration string        `json:"semanticConfiguration,omitempty"`
}

type searchResult struct {
	Score         float64 `json:"@search.score"`
	RerankerScore float64 `json:"@search.rerankerScore"`
	Content       string  `json:"content"`
	Title         string  `json:"title"`
	Source        string  `json:"source"`
	PageNumber    int     `json:"page_number"`
}

// Retrieve runs a hybrid search and returns up to topK documents.
func (c *Client) Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Document, error) {
	body := searchRequest{
		Search: query,
		Top:    topK,
		Select: "content,title,source,page_number",
		VectorQueries: []vectorQuery{{
			Kind:   "text",
			Text:   query,
			K:      topK,
			Fields: c.config.VectorField,
		}},
	}
	if c.config.UseSemanticRanker {
		body.QueryType = "semantic"
		body.SemanticConfiguration = c.config.SemanticConfiguration
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s",
		c.config.Endpoint, c.config.Index, c.config.APIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azsearch: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("azsearch: %s: %s", resp.Status, respBody)
	}

	var result struct {
		Value []searchResult `json:"value"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("azsearch: decoding response: %w", err)
	}

	docs := make([]retrieval.Document, len(result.Value))
	for i, r := range result.Value {
		docs[i] = retrieval.Document{
			Content:       r.Content,
			Title:         r.Title,
			Source:        r.Source,
			PageNumber:    r.PageNumber,
			Score:         r.Score,
			RerankerScore: r.RerankerScore,
		}
	}
	return docs, nil
}
