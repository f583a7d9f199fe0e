// Package server is the ETL service's HTTP surface.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/factory-kb/etl-service/internal/core"
	"github.com/factory-kb/etl-service/internal/logger"
	"github.com/factory-kb/etl-service/internal/parser"
)

const (
	// ServiceName and Version are reported by the health endpoint.
	ServiceName = "etl-service"
	Version     = "0.1.0"

	// MaxUploadSize caps uploaded files at 100MB.
	MaxUploadSize = 100 * 1024 * 1024

	// multipartMemory is how much of a parsed form stays in memory.
	multipartMemory = 32 << 20
)

// Pipeline is the subset of pipeline operations the HTTP layer needs.
type Pipeline interface {
	Ingest(ctx context.Context, fileBytes []byte, fileName string, meta core.DocumentMeta) (*core.IngestResult, error)
	Search(ctx context.Context, query string, limit int, documentTypes []string, department string) ([]core.SearchResult, error)
	Delete(ctx context.Context, documentID string) error
}

// Server holds the route handlers.
type Server struct {
	pipeline Pipeline
}

// New creates a server around the given pipeline.
func New(p Pipeline) *Server {
	return &Server{pipeline: p}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/documents/upload", s.handleUpload)
	mux.HandleFunc("POST /api/v1/search", s.handleSearch)
	mux.HandleFunc("GET /api/v1/documents", s.handleListDocuments)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Some slack over the file cap so form field overhead does not trip it.
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large. Max 100MB.")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	fileName := header.Filename
	if fileName == "" {
		fileName = "unknown"
	}

	if parser.FormatFromFileName(fileName) == parser.FormatUnknown {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Unsupported file type: %s. Allowed: .pdf, .docx", fileName))
		return
	}

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}
	if len(fileBytes) > MaxUploadSize {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large. Max 100MB.")
		return
	}

	meta := core.DocumentMeta{
		DocumentType: r.FormValue("document_type"),
		Department:   r.FormValue("department"),
	}

	result, err := s.pipeline.Ingest(r.Context(), fileBytes, fileName, meta)
	if err != nil {
		logger.Error("Ingestion failed for %s: %v", fileName, err)
		var stageErr *core.StageError
		if errors.As(err, &stageErr) {
			writeError(w, http.StatusInternalServerError,
				fmt.Sprintf("Processing failed at stage %q", stageErr.Stage))
			return
		}
		writeError(w, http.StatusInternalServerError, "Processing failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"data": map[string]any{
			"document_id": result.DocumentID,
			"status":      result.Status,
			"chunk_count": result.ChunkCount,
			"message":     fmt.Sprintf("Document '%s' processed successfully", fileName),
		},
	})
}

type searchRequest struct {
	Query   string        `json:"query"`
	Limit   int           `json:"limit"`
	Filters searchFilters `json:"filters"`
}

type searchFilters struct {
	DocumentType stringList `json:"document_type"`
	Department   string     `json:"department"`
}

// stringList accepts either a JSON string or an array of strings.
type stringList []string

func (s *stringList) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '[' {
		var list []string
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*s = list
		return nil
	}
	var single string
	if err := json.Unmarshal(b, &single); err != nil {
		return err
	}
	if single != "" {
		*s = stringList{single}
	}
	return nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}

	results, err := s.pipeline.Search(r.Context(), req.Query, req.Limit,
		req.Filters.DocumentType, req.Filters.Department)
	if err != nil {
		if errors.Is(err, core.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("Search failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}
	if results == nil {
		results = []core.SearchResult{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"results": results,
			"total":   len(results),
		},
	})
}

// handleListDocuments is a placeholder listing; document metadata lives only
// in the vector index.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    []any{},
		"meta":    map[string]any{"total": 0, "page": 1, "limit": 20},
	})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")

	if err := s.pipeline.Delete(r.Context(), documentID); err != nil {
		if errors.Is(err, core.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("Delete failed for document %s: %v", documentID, err)
		writeError(w, http.StatusInternalServerError, "Delete failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"document_id": documentID,
			"message":     "Document chunks deleted",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": ServiceName,
		"version": Version,
	})
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
