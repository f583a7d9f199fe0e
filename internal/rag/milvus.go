// Package rag implements the vector index client on top of Milvus. One
// collection holds every chunk point: a dense BGE-M3 vector plus the scalar
// payload fields used for filtered similarity search.
package rag

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/factory-kb/etl-service/internal/core"
	"github.com/factory-kb/etl-service/internal/logger"
)

// DefaultCollection is the collection holding all chunk points.
const DefaultCollection = "document_chunks"

// Field names for the chunk collection.
const (
	FieldID           = "id"
	FieldDocumentID   = "document_id"
	FieldChunkIndex   = "chunk_index"
	FieldText         = "text"
	FieldHeading      = "heading"
	FieldCharCount    = "char_count"
	FieldFileName     = "file_name"
	FieldFileType     = "file_type"
	FieldDocumentType = "document_type"
	FieldDepartment   = "department"
	FieldIsLatest     = "is_latest"
	FieldDense        = "dense"
)

// VarChar limits reused across fields.
const (
	maxIDLength      = "255"
	maxVarCharLength = "65535"
)

// MilvusIndex implements core.VectorIndex.
type MilvusIndex struct {
	client       *milvusclient.Client
	collection   string
	embeddingDim int
}

var _ core.VectorIndex = (*MilvusIndex)(nil)

// NewMilvusIndex connects to Milvus at addr.
func NewMilvusIndex(ctx context.Context, addr, collection string, embeddingDim int) (*MilvusIndex, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	if embeddingDim <= 0 {
		embeddingDim = core.DefaultEmbeddingDim
	}

	logger.Info("Connecting to Milvus at %s (dim %d)", addr, embeddingDim)
	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{Address: addr})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Milvus: %w", err)
	}

	return &MilvusIndex{
		client:       c,
		collection:   collection,
		embeddingDim: embeddingDim,
	}, nil
}

// EnsureCollection creates the chunk collection, its vector index and the
// scalar indexes used for filtering if they do not exist yet, then loads the
// collection. Safe to call on every process start.
func (m *MilvusIndex) EnsureCollection(ctx context.Context) error {
	exists, err := m.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(m.collection))
	if err != nil {
		return fmt.Errorf("failed to check if collection exists: %w", err)
	}

	if !exists {
		schema := &entity.Schema{
			CollectionName: m.collection,
			Description:    "Document chunk vectors for retrieval",
			Fields: []*entity.Field{
				{
					Name:       FieldID,
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					AutoID:     false,
					TypeParams: map[string]string{"max_length": maxIDLength},
				},
				{
					Name:       FieldDocumentID,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": maxIDLength},
				},
				{
					Name:     FieldChunkIndex,
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:       FieldText,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": maxVarCharLength},
				},
				{
					Name:       FieldHeading,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": maxVarCharLength},
				},
				{
					Name:     FieldCharCount,
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:       FieldFileName,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": maxVarCharLength},
				},
				{
					Name:       FieldFileType,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": maxIDLength},
				},
				{
					Name:       FieldDocumentType,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": maxIDLength},
				},
				{
					Name:       FieldDepartment,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": maxIDLength},
				},
				{
					Name:     FieldIsLatest,
					DataType: entity.FieldTypeBool,
				},
				{
					Name:       FieldDense,
					DataType:   entity.FieldTypeFloatVector,
					TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.embeddingDim)},
				},
			},
		}

		createOpt := milvusclient.NewCreateCollectionOption(m.collection, schema)
		if err := m.client.CreateCollection(ctx, createOpt); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		denseIdx := index.NewHNSWIndex(entity.COSINE, 16, 200)
		if _, err := m.client.CreateIndex(ctx,
			milvusclient.NewCreateIndexOption(m.collection, FieldDense, denseIdx)); err != nil {
			return fmt.Errorf("failed to create index on dense vector field: %w", err)
		}

		// Scalar indexes backing the filter expressions.
		for _, field := range []string{FieldDocumentType, FieldDepartment, FieldFileType, FieldIsLatest} {
			if _, err := m.client.CreateIndex(ctx,
				milvusclient.NewCreateIndexOption(m.collection, field, index.NewInvertedIndex())); err != nil {
				return fmt.Errorf("failed to create index on %s: %w", field, err)
			}
		}

		logger.Info("Created collection %s with dense and scalar indexes", m.collection)
	}

	// Milvus requires the collection loaded before searching; loading an
	// already-loaded collection is a no-op.
	if _, err := m.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(m.collection)); err != nil {
		return fmt.Errorf("failed to load collection %s: %w", m.collection, err)
	}

	return nil
}

// Upsert indexes the given points in one batch. Empty input returns 0 without
// a network call. IDs are fresh per point, so prior generations of the same
// logical document are never overwritten here.
func (m *MilvusIndex) Upsert(ctx context.Context, points []core.IndexPoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	n := len(points)
	ids := make([]string, n)
	documentIDs := make([]string, n)
	chunkIndexes := make([]int64, n)
	texts := make([]string, n)
	headings := make([]string, n)
	charCounts := make([]int64, n)
	fileNames := make([]string, n)
	fileTypes := make([]string, n)
	documentTypes := make([]string, n)
	departments := make([]string, n)
	isLatest := make([]bool, n)
	vectors := make([][]float32, n)

	for i, p := range points {
		ids[i] = p.ID
		documentIDs[i] = p.DocumentID
		chunkIndexes[i] = int64(p.Chunk.Index)
		texts[i] = p.Chunk.Text
		headings[i] = p.Chunk.Heading
		charCounts[i] = int64(p.Chunk.CharCount)
		fileNames[i] = p.Meta.FileName
		fileTypes[i] = p.Meta.FileType
		documentTypes[i] = p.Meta.DocumentType
		departments[i] = p.Meta.Department
		isLatest[i] = p.IsLatest
		vectors[i] = p.Vector.Dense
	}

	insertOpt := milvusclient.NewColumnBasedInsertOption(m.collection,
		column.NewColumnVarChar(FieldID, ids),
		column.NewColumnVarChar(FieldDocumentID, documentIDs),
		column.NewColumnInt64(FieldChunkIndex, chunkIndexes),
		column.NewColumnVarChar(FieldText, texts),
		column.NewColumnVarChar(FieldHeading, headings),
		column.NewColumnInt64(FieldCharCount, charCounts),
		column.NewColumnVarChar(FieldFileName, fileNames),
		column.NewColumnVarChar(FieldFileType, fileTypes),
		column.NewColumnVarChar(FieldDocumentType, documentTypes),
		column.NewColumnVarChar(FieldDepartment, departments),
		column.NewColumnBool(FieldIsLatest, isLatest),
		column.NewColumnFloatVector(FieldDense, m.embeddingDim, vectors),
	)

	result, err := m.client.Insert(ctx, insertOpt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert points: %w", err)
	}

	logger.Info("Indexed %d chunk points into %s", result.InsertCount, m.collection)
	return int(result.InsertCount), nil
}

// Search runs an ANN search over the dense field, translating the filter into
// a Milvus boolean expression. Results come back ordered by descending score.
func (m *MilvusIndex) Search(ctx context.Context, vector []float32, limit int, filter *core.SearchFilter) ([]core.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	searchOpt := milvusclient.NewSearchOption(m.collection, limit, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(FieldDense).
		WithOutputFields(FieldDocumentID, FieldChunkIndex, FieldText, FieldHeading, FieldFileName)

	if expr := FilterExpr(filter); expr != "" {
		searchOpt = searchOpt.WithFilter(expr)
	}

	resultSets, err := m.client.Search(ctx, searchOpt)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}

	if len(resultSets) == 0 {
		return []core.SearchResult{}, nil
	}

	rs := resultSets[0]
	results := make([]core.SearchResult, 0, rs.ResultCount)

	for i := 0; i < rs.ResultCount; i++ {
		r := core.SearchResult{}

		if rs.IDs != nil {
			if id, err := rs.IDs.GetAsString(i); err == nil {
				r.ChunkID = id
			}
		}
		if i < len(rs.Scores) {
			r.Score = rs.Scores[i]
		}
		if col := rs.GetColumn(FieldText); col != nil {
			r.Text, _ = col.GetAsString(i)
		}
		if col := rs.GetColumn(FieldDocumentID); col != nil {
			r.DocumentID, _ = col.GetAsString(i)
		}
		if col := rs.GetColumn(FieldFileName); col != nil {
			r.FileName, _ = col.GetAsString(i)
		}
		if col := rs.GetColumn(FieldHeading); col != nil {
			r.Heading, _ = col.GetAsString(i)
		}
		if col := rs.GetColumn(FieldChunkIndex); col != nil {
			if idx, err := col.GetAsInt64(i); err == nil {
				r.ChunkIndex = int(idx)
			}
		}

		results = append(results, r)
	}

	return results, nil
}

// DeleteByDocument removes every point whose document_id matches.
func (m *MilvusIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	expr := fmt.Sprintf("%s == %s", FieldDocumentID, quote(documentID))

	result, err := m.client.Delete(ctx, milvusclient.NewDeleteOption(m.collection).WithExpr(expr))
	if err != nil {
		return fmt.Errorf("failed to delete points for document %s: %w", documentID, err)
	}

	logger.Info("Deleted %d points for document %s", result.DeleteCount, documentID)
	return nil
}

// Close closes the connection to Milvus.
func (m *MilvusIndex) Close(ctx context.Context) error {
	return m.client.Close(ctx)
}
