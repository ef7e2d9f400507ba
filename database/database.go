package database

import (
	"context"
	"math"
)

// EmbeddingRecord is one stored (text, vector, metadata) tuple.
type EmbeddingRecord struct {
	Text      string            `json:"text"`
	Vector    []float32         `json:"vector"`
	Provider  string            `json:"provider"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt int64             `json:"created_at"`
}

// SearchMatch is one ranked search result.
type SearchMatch struct {
	Record EmbeddingRecord `json:"record"`
	Score  float32         `json:"score"`
}

// CollectionSnapshot is an exportable copy of a collection. Restoring it
// into a fresh store reproduces an identical ordered record set.
type CollectionSnapshot struct {
	Name      string            `json:"name"`
	Dimension int               `json:"dimension"`
	Records   []EmbeddingRecord `json:"records"`
}

// CollectionInfo describes a stored collection.
type CollectionInfo struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Records   int    `json:"records"`
}

// VectorDatabase is the storage interface for embedding collections.
// A collection's vector length is fixed at creation; all inserts must match
// it. Callers never branch on the backing implementation.
type VectorDatabase interface {
	// CreateCollection is idempotent. It fails with ErrAlreadyExists only
	// when an existing collection has a different vector length recorded.
	CreateCollection(ctx context.Context, name string, dimension int) error

	// Insert appends records. It fails with ErrDimensionMismatch if any
	// record's vector length disagrees with the collection's length. The
	// collection is created on first write if absent.
	Insert(ctx context.Context, collection string, records []EmbeddingRecord) error

	// Search returns the topK records ranked by descending cosine
	// similarity, ties broken by insertion order (earlier wins). Fails
	// with ErrNotFound if the collection does not exist.
	Search(ctx context.Context, collection string, query []float32, topK int) ([]SearchMatch, error)

	DeleteCollection(ctx context.Context, name string) error
	Info(ctx context.Context, name string) (*CollectionInfo, error)

	Backup(ctx context.Context, name string) (*CollectionSnapshot, error)
	Restore(ctx context.Context, snapshot *CollectionSnapshot) error

	// Backend names the backing implementation ("local" or "weaviate").
	Backend() string
}

// CosineSimilarity computes dot(a,b) / (|a| * |b|). A zero-magnitude vector
// yields similarity 0 with every query.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
