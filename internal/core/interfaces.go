package core

import "context"

// EmbedService generates embeddings for a batch of texts. Implementations
// must return one vector per input text, in input order, and must not make a
// network call for an empty batch.
type EmbedService interface {
	EmbedBatch(ctx context.Context, texts []string) ([]EmbeddingVector, error)
}

// VectorIndex is the capability interface over the vector database.
type VectorIndex interface {
	// EnsureCollection is idempotent and safe to call on every process start.
	EnsureCollection(ctx context.Context) error

	// Upsert indexes the given points. Empty input returns 0 without a
	// network call. Point IDs are fresh; existing points are never
	// overwritten by content.
	Upsert(ctx context.Context, points []IndexPoint) (int, error)

	// Search returns up to limit results ordered by descending score.
	Search(ctx context.Context, vector []float32, limit int, filter *SearchFilter) ([]SearchResult, error)

	// DeleteByDocument removes every point belonging to the document.
	DeleteByDocument(ctx context.Context, documentID string) error
}

// ObjectStore persists raw uploaded files.
type ObjectStore interface {
	// EnsureBucket is idempotent and called once at process start.
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Parser extracts plain text and page boundaries from raw document bytes.
type Parser interface {
	Parse(fileBytes []byte, fileName string) (*ParsedDocument, error)
}
