package core

// DefaultEmbeddingDim is the dimension of the deployed BGE-M3 dense vectors.
const DefaultEmbeddingDim = 1024

// Chunk is one retrieval-sized passage produced by the chunker. Index is
// 0-based and document-global; it is never reset between sections.
type Chunk struct {
	Text      string `json:"text"`
	Index     int    `json:"chunk_index"`
	Heading   string `json:"heading"`
	CharCount int    `json:"char_count"`
}

// EmbeddingVector represents potentially hybrid embedding vectors.
type EmbeddingVector struct {
	Dense  []float32     `json:"dense"`
	Sparse *SparseVector `json:"sparse,omitempty"`
}

// SparseVector is a term-index to weight mapping. The index schema does not
// store it, but the embedding service can return it and the contract keeps it.
type SparseVector struct {
	Indices []int     `json:"indices"`
	Values  []float32 `json:"values"`
}

// DocumentMeta carries document-level metadata attached to every point of one
// ingestion.
type DocumentMeta struct {
	FileName     string
	FileType     string
	DocumentType string
	Department   string
}

// IndexPoint is one indexed chunk: a fresh UUID, its dense vector and the
// payload the vector database stores as scalar fields.
type IndexPoint struct {
	ID         string
	Vector     EmbeddingVector
	DocumentID string
	Chunk      Chunk
	Meta       DocumentMeta
	IsLatest   bool
}

// SearchFilter is a conjunctive set of constraints applied server-side.
// DocumentTypes with one element is an equality match, more elements an
// any-of match. Department is always an equality match.
type SearchFilter struct {
	IsLatest      *bool
	DocumentTypes []string
	Department    string
}

// SearchResult is one ranked hit from the vector index.
type SearchResult struct {
	ChunkID    string  `json:"chunk_id"`
	Score      float32 `json:"score"`
	Text       string  `json:"text"`
	DocumentID string  `json:"document_id"`
	FileName   string  `json:"file_name"`
	Heading    string  `json:"heading"`
	ChunkIndex int     `json:"chunk_index"`
}

// ParsedDocument is the parser collaborator's output: plain text plus the
// per-page (or per-section for Word) breakdown.
type ParsedDocument struct {
	Text      string
	Pages     []string
	FileName  string
	FileType  string
	PageCount int
}

// IngestResult is the terminal outcome of one ingestion.
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	ObjectKey  string `json:"minio_object_key,omitempty"`
}

// StatusCompleted is the only non-failure terminal ingestion status.
const StatusCompleted = "completed"
