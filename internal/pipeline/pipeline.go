// Package pipeline orchestrates ingestion (store, parse, chunk, embed, index)
// and retrieval (embed query, filtered vector search).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/factory-kb/etl-service/internal/chunker"
	"github.com/factory-kb/etl-service/internal/core"
	"github.com/factory-kb/etl-service/internal/logger"
	"github.com/factory-kb/etl-service/internal/parser"
)

// DefaultEmbedBatchSize bounds how many chunk texts go to the embedding
// service per request. Batches run sequentially to keep memory pressure on
// the model host predictable.
const DefaultEmbedBatchSize = 8

// DefaultSearchLimit is the result count used when the caller passes none.
const DefaultSearchLimit = 10

// Config tunes the pipeline.
type Config struct {
	ChunkSize      int
	ChunkOverlap   int
	EmbedBatchSize int

	// EmbedMaxRetries is how many times a failed embedding batch is retried
	// before the whole ingestion fails.
	EmbedMaxRetries uint64
}

// Pipeline wires the object store, parser, embedding service and vector index
// behind the two public operations.
type Pipeline struct {
	store    core.ObjectStore
	parser   core.Parser
	embedder core.EmbedService
	index    core.VectorIndex

	chunkCfg       chunker.Config
	embedBatchSize int
	embedRetries   uint64
}

// New creates a pipeline. Zero config values fall back to defaults.
func New(store core.ObjectStore, p core.Parser, embedder core.EmbedService, index core.VectorIndex, cfg Config) *Pipeline {
	chunkCfg := chunker.Config{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap}
	if chunkCfg.ChunkSize <= 0 {
		chunkCfg.ChunkSize = chunker.DefaultChunkSize
	}
	if chunkCfg.ChunkOverlap < 0 {
		chunkCfg.ChunkOverlap = chunker.DefaultChunkOverlap
	}

	batchSize := cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	retries := cfg.EmbedMaxRetries
	if retries == 0 {
		retries = 2
	}

	return &Pipeline{
		store:          store,
		parser:         p,
		embedder:       embedder,
		index:          index,
		chunkCfg:       chunkCfg,
		embedBatchSize: batchSize,
		embedRetries:   retries,
	}
}

// Ingest runs a document through the full pipeline. The original file is
// stored first so a failure later in the pipeline never loses the upload. A
// document that parses to no chunkable text completes with a zero chunk count.
func (p *Pipeline) Ingest(ctx context.Context, fileBytes []byte, fileName string, meta core.DocumentMeta) (*core.IngestResult, error) {
	documentID := uuid.NewString()
	objectKey := documentID + "/" + fileName
	contentType := parser.FormatFromFileName(fileName).ContentType()

	logger.Info("Ingesting %s as document %s", fileName, documentID)

	if err := p.store.Put(ctx, objectKey, fileBytes, contentType); err != nil {
		return nil, &core.StageError{Stage: core.StageUploaded, Err: err}
	}

	doc, err := p.parser.Parse(fileBytes, fileName)
	if err != nil {
		return nil, &core.StageError{Stage: core.StageParsed, Err: err}
	}

	chunks := chunker.Split(doc.Text, p.chunkCfg)
	if len(chunks) == 0 {
		logger.Warn("Document %s produced no chunks", documentID)
		return &core.IngestResult{
			DocumentID: documentID,
			Status:     core.StatusCompleted,
			ChunkCount: 0,
			ObjectKey:  objectKey,
		}, nil
	}

	vectors, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return nil, &core.StageError{Stage: core.StageEmbedded, Err: err}
	}

	meta.FileName = fileName
	meta.FileType = doc.FileType

	points := make([]core.IndexPoint, len(chunks))
	for i, chunk := range chunks {
		points[i] = core.IndexPoint{
			ID:         uuid.NewString(),
			Vector:     vectors[i],
			DocumentID: documentID,
			Chunk:      chunk,
			Meta:       meta,
			IsLatest:   true,
		}
	}

	upsert := func() error {
		_, err := p.index.Upsert(ctx, points)
		return err
	}
	if err := backoff.Retry(upsert, p.retryPolicy(ctx)); err != nil {
		return nil, &core.StageError{Stage: core.StageIndexed, Err: err}
	}

	logger.Info("Document %s ingested: %d chunks", documentID, len(chunks))
	return &core.IngestResult{
		DocumentID: documentID,
		Status:     core.StatusCompleted,
		ChunkCount: len(chunks),
		ObjectKey:  objectKey,
	}, nil
}

// embedChunks embeds chunk texts in sequential batches, preserving chunk
// order. Each batch gets a bounded retry; a batch that keeps failing aborts
// the whole ingestion so the index never holds a partial document.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []core.Chunk) ([]core.EmbeddingVector, error) {
	vectors := make([]core.EmbeddingVector, 0, len(chunks))

	for start := 0; start < len(chunks); start += p.embedBatchSize {
		end := start + p.embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}

		batch, err := p.embedBatchWithRetry(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("batch starting at chunk %d: %w", start, err)
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

func (p *Pipeline) embedBatchWithRetry(ctx context.Context, texts []string) ([]core.EmbeddingVector, error) {
	var result []core.EmbeddingVector

	operation := func() error {
		batch, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			var upstream *core.UpstreamError
			if errors.As(err, &upstream) && upstream.StatusCode < 500 {
				// Client-side errors will not heal on retry.
				return backoff.Permanent(err)
			}
			logger.Warn("Embedding batch failed, retrying: %v", err)
			return err
		}
		result = batch
		return nil
	}

	if err := backoff.Retry(operation, p.retryPolicy(ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) retryPolicy(ctx context.Context) backoff.BackOffContext {
	return backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.embedRetries), ctx)
}

// Search embeds the query and runs a filtered vector search. Only points
// flagged latest are considered. A blank query is rejected before any network
// call.
func (p *Pipeline) Search(ctx context.Context, query string, limit int, documentTypes []string, department string) ([]core.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query must not be empty", core.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	vectors, err := p.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 query vector, got %d", len(vectors))
	}

	latest := true
	filter := &core.SearchFilter{
		IsLatest:      &latest,
		DocumentTypes: documentTypes,
		Department:    department,
	}

	var results []core.SearchResult
	search := func() error {
		var err error
		results, err = p.index.Search(ctx, vectors[0].Dense, limit, filter)
		return err
	}
	if err := backoff.Retry(search, p.retryPolicy(ctx)); err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	logger.Debug("Search %q returned %d results", query, len(results))
	return results, nil
}

// Delete removes a document's chunks from the vector index.
func (p *Pipeline) Delete(ctx context.Context, documentID string) error {
	if strings.TrimSpace(documentID) == "" {
		return fmt.Errorf("%w: document id must not be empty", core.ErrInvalidArgument)
	}
	return p.index.DeleteByDocument(ctx, documentID)
}
