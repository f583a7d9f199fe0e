// Package llmsvc is the companion LLM service: it fronts Ollama with an
// embedding endpoint for the pipeline and a streaming chat endpoint.
package llmsvc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/factory-kb/etl-service/internal/core"
)

// Model defaults matching the deployed Ollama instance.
const (
	DefaultChatModel  = "qwen2.5:7b"
	DefaultEmbedModel = "nomic-embed-text"

	embedTimeout = 60 * time.Second
	chatTimeout  = 120 * time.Second
	pingTimeout  = 5 * time.Second
)

// OllamaConfig holds the upstream connection settings.
type OllamaConfig struct {
	Host       string
	ChatModel  string
	EmbedModel string
}

// OllamaClient talks to a single Ollama instance.
type OllamaClient struct {
	host       string
	chatModel  string
	embedModel string

	embedHTTP *http.Client
	chatHTTP  *http.Client
	pingHTTP  *http.Client
}

// NewOllamaClient creates a client. Zero config values fall back to defaults.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	return &OllamaClient{
		host:       cfg.Host,
		chatModel:  cfg.ChatModel,
		embedModel: cfg.EmbedModel,
		embedHTTP:  &http.Client{Timeout: embedTimeout},
		chatHTTP:   &http.Client{Timeout: chatTimeout},
		pingHTTP:   &http.Client{Timeout: pingTimeout},
	}
}

// ChatModel reports the configured chat model name.
func (c *OllamaClient) ChatModel() string { return c.chatModel }

// Embed generates one dense vector per input text via Ollama's /api/embed.
func (c *OllamaClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.embedModel,
		"input": texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.embedHTTP.Do(req)
	if err != nil {
		return nil, &core.UpstreamUnavailable{Service: "ollama", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &core.UpstreamError{
			Service:    "ollama",
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	var decoded struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	return decoded.Embeddings, nil
}

// GenerateStream streams completion tokens for prompt, invoking onToken for
// each one. The stream stops when Ollama reports done, onToken returns an
// error, or ctx is cancelled.
func (c *OllamaClient) GenerateStream(ctx context.Context, prompt string, onToken func(token string) error) error {
	body, err := json.Marshal(map[string]any{
		"model":  c.chatModel,
		"prompt": prompt,
		"stream": true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.chatHTTP.Do(req)
	if err != nil {
		return &core.UpstreamUnavailable{Service: "ollama", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return &core.UpstreamError{
			Service:    "ollama",
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var part struct {
			Response string `json:"response"`
			Done     bool   `json:"done"`
		}
		if err := json.Unmarshal(line, &part); err != nil {
			return fmt.Errorf("failed to decode stream line: %w", err)
		}
		if part.Response != "" {
			if err := onToken(part.Response); err != nil {
				return err
			}
		}
		if part.Done {
			return nil
		}
	}
	return scanner.Err()
}

// Ping reports whether Ollama answers on its root endpoint.
func (c *OllamaClient) Ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/", nil)
	if err != nil {
		return false
	}
	resp, err := c.pingHTTP.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
