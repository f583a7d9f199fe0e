package llmsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/factory-kb/etl-service/internal/core"
	"github.com/factory-kb/etl-service/internal/logger"
)

// ServiceName and ServiceVersion are reported by the health endpoint.
const (
	ServiceName    = "llm-service"
	ServiceVersion = "0.1.0"
)

// Ollama is the upstream surface the handlers need.
type Ollama interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	GenerateStream(ctx context.Context, prompt string, onToken func(token string) error) error
	Ping(ctx context.Context) bool
	ChatModel() string
}

// Server holds the companion service route handlers.
type Server struct {
	ollama Ollama
}

// New creates a server around the given Ollama client.
func New(ollama Ollama) *Server {
	return &Server{ollama: ollama}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /internal/embeddings", s.handleEmbeddings)
	mux.HandleFunc("POST /api/v1/chat/stream", s.handleChatStream)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

type embeddingsRequest struct {
	Texts        []string `json:"texts"`
	ReturnSparse bool     `json:"return_sparse"`
}

// handleEmbeddings proxies to Ollama's embed endpoint. Ollama only produces
// dense vectors, so return_sparse is accepted and ignored.
func (s *Server) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req embeddingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	dense, err := s.ollama.Embed(r.Context(), req.Texts)
	if err != nil {
		logger.Error("Embedding generation failed: %v", err)
		var upstream *core.UpstreamError
		if errors.As(err, &upstream) {
			writeError(w, http.StatusBadGateway,
				fmt.Sprintf("Ollama error: status %d", upstream.StatusCode))
			return
		}
		writeError(w, http.StatusInternalServerError, "Embedding generation failed")
		return
	}

	embeddings := make([]core.EmbeddingVector, len(dense))
	for i, vec := range dense {
		embeddings[i] = core.EmbeddingVector{Dense: vec}
	}

	writeJSON(w, http.StatusOK, map[string]any{"embeddings": embeddings})
}

type chatRequest struct {
	Query         string   `json:"query"`
	ChatSessionID string   `json:"chat_session_id"`
	Context       []string `json:"context"`
}

// handleChatStream streams the completion as SSE events: start, then one
// token event per generated token, an error event on upstream failure, and
// always a final done event. Consumer disconnect cancels the upstream request
// through the request context.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeEvent(w, flusher, "start", map[string]any{"status": "generating"})

	prompt := buildPrompt(req.Query, req.Context)

	err := s.ollama.GenerateStream(r.Context(), prompt, func(token string) error {
		writeEvent(w, flusher, "token", map[string]any{"content": token})
		return nil
	})
	if err != nil {
		logger.Error("Chat stream failed: %v", err)
		writeEvent(w, flusher, "error", map[string]any{"message": err.Error()})
	}

	writeEvent(w, flusher, "done", map[string]any{"status": "complete"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ollamaOK := s.ollama.Ping(r.Context())

	status := "healthy"
	connection := "connected"
	if !ollamaOK {
		status = "degraded"
		connection = "disconnected"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"service": ServiceName,
		"version": ServiceVersion,
		"ollama":  connection,
		"model":   s.ollama.ChatModel(),
	})
}

// buildPrompt frames the query with the retrieved context passages under the
// knowledge-base system instructions.
func buildPrompt(query string, contextPassages []string) string {
	systemPrompt := "あなたは生産工場のナレッジベースアシスタントです。\n" +
		"提供された情報源のみに基づいて回答してください。\n" +
		"情報源にない内容は「該当する情報が見つかりませんでした」と回答してください。\n" +
		"日本語で回答してください。\n"

	contextText := "情報源なし"
	if len(contextPassages) > 0 {
		contextText = strings.Join(contextPassages, "\n\n")
	}

	return fmt.Sprintf("%s\n\n【提供された情報源】\n%s\n\n【ユーザーの質問】\n%s",
		systemPrompt, contextText, query)
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		logger.Error("Failed to encode SSE payload: %v", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}
