// Package embed provides the HTTP client for the LLM service's embedding
// endpoint (BGE-M3 dense vectors, optionally sparse).
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/factory-kb/etl-service/internal/core"
	"github.com/factory-kb/etl-service/internal/logger"
)

// DefaultTimeout is generous because embedding a full batch of long passages
// can take a while on CPU-only deployments.
const DefaultTimeout = 120 * time.Second

// Config holds configuration for the embedding client.
type Config struct {
	// BaseURL is the LLM service base URL, e.g. http://localhost:8002.
	BaseURL string

	// ReturnSparse requests sparse vectors alongside the dense ones.
	ReturnSparse bool

	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// Client calls the LLM service's embedding endpoint.
type Client struct {
	baseURL      string
	returnSparse bool
	httpClient   *http.Client
}

var _ core.EmbedService = (*Client)(nil)

type embedRequest struct {
	Texts        []string `json:"texts"`
	ReturnSparse bool     `json:"return_sparse"`
}

type embedResponse struct {
	Embeddings []core.EmbeddingVector `json:"embeddings"`
}

// NewClient creates a new embedding client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL:      cfg.BaseURL,
		returnSparse: cfg.ReturnSparse,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
	}
}

// EmbedBatch generates one embedding per input text, in input order. An empty
// batch short-circuits to an empty result without a network call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([]core.EmbeddingVector, error) {
	if len(texts) == 0 {
		return []core.EmbeddingVector{}, nil
	}

	body, err := json.Marshal(embedRequest{Texts: texts, ReturnSparse: c.returnSparse})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/internal/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &core.UpstreamUnavailable{Service: "embedding service", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		logger.Error("Embedding service error (status %d): %s", resp.StatusCode, string(respBody))
		return nil, &core.UpstreamError{
			Service:    "embedding service",
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	if len(decoded.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d texts",
			len(decoded.Embeddings), len(texts))
	}

	return decoded.Embeddings, nil
}
