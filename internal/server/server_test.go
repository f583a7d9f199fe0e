package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factory-kb/etl-service/internal/core"
)

type mockPipeline struct {
	ingestResult *core.IngestResult
	ingestErr    error
	ingestMeta   core.DocumentMeta
	ingestFile   string

	searchResults []core.SearchResult
	searchErr     error
	searchQuery   string
	searchLimit   int
	searchTypes   []string
	searchDept    string

	deletedID string
	deleteErr error
}

func (m *mockPipeline) Ingest(ctx context.Context, fileBytes []byte, fileName string, meta core.DocumentMeta) (*core.IngestResult, error) {
	m.ingestFile = fileName
	m.ingestMeta = meta
	if m.ingestErr != nil {
		return nil, m.ingestErr
	}
	return m.ingestResult, nil
}

func (m *mockPipeline) Search(ctx context.Context, query string, limit int, documentTypes []string, department string) ([]core.SearchResult, error) {
	m.searchQuery = query
	m.searchLimit = limit
	m.searchTypes = documentTypes
	m.searchDept = department
	return m.searchResults, m.searchErr
}

func (m *mockPipeline) Delete(ctx context.Context, documentID string) error {
	m.deletedID = documentID
	return m.deleteErr
}

func multipartUpload(t *testing.T, fileName string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func TestUpload_Accepted(t *testing.T) {
	p := &mockPipeline{ingestResult: &core.IngestResult{
		DocumentID: "doc-1", Status: core.StatusCompleted, ChunkCount: 7,
	}}
	h := New(p).Handler()

	body, contentType := multipartUpload(t, "manual.pdf", []byte("%PDF-1.7"),
		map[string]string{"document_type": "manual", "department": "quality"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			DocumentID string `json:"document_id"`
			Status     string `json:"status"`
			ChunkCount int    `json:"chunk_count"`
			Message    string `json:"message"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "doc-1", resp.Data.DocumentID)
	assert.Equal(t, core.StatusCompleted, resp.Data.Status)
	assert.Equal(t, 7, resp.Data.ChunkCount)
	assert.Contains(t, resp.Data.Message, "manual.pdf")

	assert.Equal(t, "manual.pdf", p.ingestFile)
	assert.Equal(t, "manual", p.ingestMeta.DocumentType)
	assert.Equal(t, "quality", p.ingestMeta.Department)
}

func TestUpload_UnsupportedExtension(t *testing.T) {
	p := &mockPipeline{}
	h := New(p).Handler()

	body, contentType := multipartUpload(t, "notes.txt", []byte("plain"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unsupported file type")
	// Rejected before the pipeline ran.
	assert.Empty(t, p.ingestFile)
}

func TestUpload_MissingFile(t *testing.T) {
	p := &mockPipeline{}
	h := New(p).Handler()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("document_type", "manual"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "File is required")
}

func TestUpload_PipelineFailure(t *testing.T) {
	p := &mockPipeline{ingestErr: &core.StageError{
		Stage: core.StageEmbedded,
		Err:   errors.New("embedding service down"),
	}}
	h := New(p).Handler()

	body, contentType := multipartUpload(t, "manual.pdf", []byte("%PDF"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "embedded")
	// Upstream detail stays out of the client-facing message.
	assert.NotContains(t, rec.Body.String(), "embedding service down")
}

func TestSearch_OK(t *testing.T) {
	p := &mockPipeline{searchResults: []core.SearchResult{
		{ChunkID: "c1", Score: 0.92, Text: "手順", DocumentID: "doc-1", ChunkIndex: 3},
	}}
	h := New(p).Handler()

	reqBody := `{"query":"納期","limit":5,"filters":{"document_type":["manual","report"],"department":"quality"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(reqBody))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Results []core.SearchResult `json:"results"`
			Total   int                 `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Data.Total)
	require.Len(t, resp.Data.Results, 1)
	assert.Equal(t, "c1", resp.Data.Results[0].ChunkID)

	assert.Equal(t, "納期", p.searchQuery)
	assert.Equal(t, 5, p.searchLimit)
	assert.Equal(t, []string{"manual", "report"}, p.searchTypes)
	assert.Equal(t, "quality", p.searchDept)
}

func TestSearch_SingleDocumentTypeString(t *testing.T) {
	p := &mockPipeline{}
	h := New(p).Handler()

	reqBody := `{"query":"q","filters":{"document_type":"manual"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(reqBody))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"manual"}, p.searchTypes)
}

func TestSearch_MissingQuery(t *testing.T) {
	p := &mockPipeline{}
	h := New(p).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"limit":5}`))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Query is required")
	assert.Empty(t, p.searchQuery)
}

func TestSearch_EmptyResults(t *testing.T) {
	p := &mockPipeline{searchResults: nil}
	h := New(p).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"query":"q"}`))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	// Results serialize as an empty array, never null.
	assert.Contains(t, rec.Body.String(), `"results":[]`)
	assert.Contains(t, rec.Body.String(), `"total":0`)
}

func TestListDocuments_Placeholder(t *testing.T) {
	h := New(&mockPipeline{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestDeleteDocument(t *testing.T) {
	p := &mockPipeline{}
	h := New(p).Handler()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/documents/doc-42", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "doc-42", p.deletedID)
	assert.Contains(t, rec.Body.String(), "doc-42")
}

func TestHealth(t *testing.T) {
	h := New(&mockPipeline{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, ServiceName, resp["service"])
	assert.Equal(t, Version, resp["version"])
}
