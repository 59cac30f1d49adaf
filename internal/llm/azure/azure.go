// Package azure implements llm.Provider against an Azure OpenAI deployment.
package azure

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/efebarandurmaz/ragrelay/internal/llm"
)

const (
	// cognitiveScope is the token audience for Azure OpenAI.
	cognitiveScope = "https://cognitiveservices.azure.com/.default"

	defaultAPIVersion = "2024-10-21"
)

// Config holds the connection settings for one Azure OpenAI resource.
type Config struct {
	Endpoint        string // e.g. https://myresource.openai.azure.com
	Deployment      string // chat model deployment name
	EmbedDeployment string // embedding deployment (optional)
	APIVersion      string
	APIKey          string // optional; when empty the credential provider is used
	Timeout         time.Duration
}

// Client implements llm.Provider for Azure OpenAI.
type Client struct {
	client          *openai.Client
	deployment      string
	embedDeployment string
}

// New creates an Azure OpenAI provider. When cfg.APIKey is empty, requests
// authenticate with bearer tokens from cred (ambient identity).
func New(cfg Config, cred CredentialProvider) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("azure: endpoint not configured")
	}
	if cfg.Deployment == "" {
		return nil, errors.New("azure: chat deployment not configured")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 300 * time.Second
	}

	var cc openai.ClientConfig
	switch {
	case cfg.APIKey != "":
		cc = openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
		cc.HTTPClient = &http.Client{Timeout: timeout}
	case cred != nil:
		cc = openai.DefaultAzureConfig("", cfg.Endpoint)
		cc.APIType = openai.APITypeAzureAD
		cc.HTTPClient = &http.Client{
			Timeout:   timeout,
			Transport: BearerTransport(cred, cognitiveScope),
		}
	default:
		return nil, errors.New("azure: neither api key nor credential provider configured")
	}

	if cfg.APIVersion != "" {
		cc.APIVersion = cfg.APIVersion
	} else {
		cc.APIVersion = defaultAPIVersion
	}

	return &Client{
		client:          openai.NewClientWithConfig(cc),
		deployment:      cfg.Deployment,
		embedDeployment: cfg.EmbedDeployment,
	}, nil
}

func (c *Client) Name() string { return "azure" }

// Complete blocks until the full reply is available.
func (c *Client) Complete(ctx context.Context, messages []llm.Message, opts *llm.Options) (*llm.Response, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(messages, opts, false))
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &llm.Error{
			Kind:     llm.KindUnavailable,
			Provider: "azure",
			Message:  "completion returned no choices",
		}
	}

	choice := resp.Choices[0]
	return &llm.Response{
		Content: choice.Message.Content,
		Model:   resp.Model,
		Usage: &llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		StopReason: string(choice.FinishReason),
	}, nil
}

// CompleteStream opens an incremental completion. Consuming the returned
// stream performs network I/O per chunk; it is not restartable.
func (c *Client) CompleteStream(ctx context.Context, messages []llm.Message, opts *llm.Options) (llm.Stream, error) {
	s, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(messages, opts, true))
	if err != nil {
		return nil, mapError(err)
	}
	return &stream{inner: s}, nil
}

// Embed returns embedding vectors for the given texts.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.embedDeployment == "" {
		return nil, errors.New("azure: embedding deployment not configured")
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.embedDeployment),
	})
	if err != nil {
		return nil, mapError(err)
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}

func (c *Client) buildRequest(messages []llm.Message, opts *llm.Options, streaming bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:    c.deployment,
		Messages: msgs,
		Stream:   streaming,
	}
	if opts != nil {
		if opts.Temperature != nil {
			req.Temperature = float32(*opts.Temperature)
			if req.Temperature == 0 {
				// go-openai marshals temperature with omitempty, so an
				// explicit 0 would vanish from the wire request. The
				// smallest nonzero float is its documented stand-in.
				req.Temperature = math.SmallestNonzeroFloat32
			}
		}
		if opts.MaxTokens != nil {
			req.MaxTokens = *opts.MaxTokens
		}
	}
	return req
}

var _ llm.Provider = (*Client)(nil)

// mapError converts go-openai failures to the llm error taxonomy.
func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.Error{Kind: llm.KindTimeout, Provider: "azure", Message: "request deadline exceeded", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &llm.Error{Kind: llm.KindCanceled, Provider: "azure", Message: "request canceled", Cause: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &llm.Error{
			Kind:       classifyStatus(apiErr.HTTPStatusCode),
			Provider:   "azure",
			HTTPStatus: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Cause:      err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &llm.Error{
			Kind:       classifyStatus(reqErr.HTTPStatusCode),
			Provider:   "azure",
			HTTPStatus: reqErr.HTTPStatusCode,
			Message:    fmt.Sprintf("request failed: %v", reqErr.Err),
			Cause:      err,
		}
	}

	// Network, DNS, TLS and credential failures all land here.
	return &llm.Error{Kind: llm.KindUnavailable, Provider: "azure", Message: err.Error(), Cause: err}
}

func classifyStatus(status int) llm.ErrorKind {
	switch status {
	case http.StatusTooManyRequests:
		return llm.KindRateLimited
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		// Includes Azure content-safety refusals, which surface as 400s.
		return llm.KindInvalidRequest
	default:
		return llm.KindUnavailable
	}
}
