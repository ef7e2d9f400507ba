package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/phamduchanh/docvec-be/types"
)

const BATCH_SIZE = 200

// backupLimit caps how many records one backup export fetches.
const backupLimit = 10000

// WeaviateStoreConfig holds connection settings for the remote backend.
type WeaviateStoreConfig struct {
	Host   string `mapstructure:"host"`
	APIKey string `mapstructure:"WEAVIATE_APIKEY"`
}

// WeaviateStore is the remote vector-database backend. Each collection maps
// to one weaviate class; vectors are supplied by the embedding pipeline, so
// classes are created without a vectorizer module. Ranking is delegated to
// the remote service.
type WeaviateStore struct {
	client *weaviate.Client

	// Weaviate classes do not record vector length; the handle keeps a
	// registry so dimension conflicts fail before reaching the service.
	mu   sync.Mutex
	dims map[string]int
}

func NewWeaviateStore(config WeaviateStoreConfig) (*WeaviateStore, error) {
	var scheme string
	if strings.Contains(config.Host, "https") {
		scheme = "https"
	} else {
		scheme = "http"
	}
	host := strings.TrimPrefix(config.Host, scheme+"://")
	cfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if config.APIKey != "" {
		cfg.AuthConfig = auth.ApiKey{
			Value: config.APIKey,
		}
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	return &WeaviateStore{
		client: client,
		dims:   make(map[string]int),
	}, nil
}

func (s *WeaviateStore) Backend() string { return "weaviate" }

// classNameFor maps a collection name to a GraphQL-valid weaviate class name.
func classNameFor(collection string) string {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, collection)
	if cleaned == "" {
		cleaned = "Collection"
	}
	return strings.ToUpper(cleaned[:1]) + cleaned[1:]
}

func collectionClassObject(collection string) *models.Class {
	return &models.Class{
		Class: classNameFor(collection),
		Properties: []*models.Property{
			{Name: "text", DataType: []string{"text"}},
			{Name: "provider", DataType: []string{"text"}},
			{Name: "meta", DataType: []string{"text"}},
			{Name: "createdAt", DataType: []string{"int"}},
		},
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
	}
}

func (s *WeaviateStore) hasClass(ctx context.Context, className string) (bool, error) {
	schema, err := s.client.Schema().Getter().Do(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get schema: %w", types.ErrServiceUnavailable)
	}
	for _, class := range schema.Classes {
		if class.Class == className {
			return true, nil
		}
	}
	return false, nil
}

func (s *WeaviateStore) recordedDimension(collection string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dim, ok := s.dims[collection]
	return dim, ok
}

func (s *WeaviateStore) recordDimension(collection string, dim int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dims[collection] = dim
}

func (s *WeaviateStore) forgetDimension(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dims, collection)
}

func (s *WeaviateStore) CreateCollection(ctx context.Context, name string, dimension int) error {
	if dim, ok := s.recordedDimension(name); ok && dim != dimension {
		return fmt.Errorf("collection %s has dimension %d, requested %d: %w",
			name, dim, dimension, types.ErrAlreadyExists)
	}

	className := classNameFor(name)
	exists, err := s.hasClass(ctx, className)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.Schema().ClassCreator().WithClass(collectionClassObject(name)).Do(ctx); err != nil {
			return fmt.Errorf("failed to create class %s: %w", className, err)
		}
	}
	s.recordDimension(name, dimension)
	return nil
}

func (s *WeaviateStore) Insert(ctx context.Context, collection string, records []EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	dim, known := s.recordedDimension(collection)
	if !known {
		dim = len(records[0].Vector)
		if err := s.CreateCollection(ctx, collection, dim); err != nil {
			return err
		}
	}
	for _, rec := range records {
		if len(rec.Vector) != dim {
			return fmt.Errorf("record vector length %d, collection %s expects %d: %w",
				len(rec.Vector), collection, dim, types.ErrDimensionMismatch)
		}
	}

	className := classNameFor(collection)
	total := len(records)
	for i := 0; i < total; i += BATCH_SIZE {
		end := i + BATCH_SIZE
		if end > total {
			end = total
		}
		batcher := s.client.Batch().ObjectsBatcher()
		for j := i; j < end; j++ {
			meta, _ := json.Marshal(records[j].Metadata)
			batcher = batcher.WithObjects(&models.Object{
				Class: className,
				Properties: map[string]interface{}{
					"text":      records[j].Text,
					"provider":  records[j].Provider,
					"meta":      string(meta),
					"createdAt": records[j].CreatedAt,
				},
				Vector: records[j].Vector,
			})
		}
		if _, err := batcher.Do(ctx); err != nil {
			return fmt.Errorf("failed to insert batch %d-%d: %w", i, end, err)
		}
		log.Printf("Inserted batch %d-%d of %d records into %s", i, end, total, collection)
	}
	return nil
}

func (s *WeaviateStore) Search(ctx context.Context, collection string, query []float32, topK int) ([]SearchMatch, error) {
	className := classNameFor(collection)
	exists, err := s.hasClass(ctx, className)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, types.ErrNotFound
	}
	if topK <= 0 {
		topK = 5
	}

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "provider"},
		{Name: "meta"},
		{Name: "createdAt"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(query)

	result, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", types.ErrServiceUnavailable)
	}
	if result.Errors != nil {
		return nil, fmt.Errorf("search failed: %v", result.Errors[0].Message)
	}

	var matches []SearchMatch
	if data, ok := result.Data["Get"].(map[string]interface{})[className].([]interface{}); ok {
		for _, item := range data {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			match := SearchMatch{Record: parseRecord(obj)}
			if additional, ok := obj["_additional"].(map[string]interface{}); ok {
				if distance, ok := additional["distance"].(float64); ok {
					// Weaviate reports cosine distance; similarity = 1 - distance.
					match.Score = float32(1 - distance)
				}
			}
			matches = append(matches, match)
		}
	}
	return matches, nil
}

func (s *WeaviateStore) DeleteCollection(ctx context.Context, name string) error {
	className := classNameFor(name)
	exists, err := s.hasClass(ctx, className)
	if err != nil {
		return err
	}
	if !exists {
		return types.ErrNotFound
	}
	if err := s.client.Schema().ClassDeleter().WithClassName(className).Do(ctx); err != nil {
		return fmt.Errorf("failed to delete class %s: %w", className, err)
	}
	s.forgetDimension(name)
	return nil
}

func (s *WeaviateStore) Info(ctx context.Context, name string) (*CollectionInfo, error) {
	snapshot, err := s.Backup(ctx, name)
	if err != nil {
		return nil, err
	}
	return &CollectionInfo{
		Name:      name,
		Dimension: snapshot.Dimension,
		Records:   len(snapshot.Records),
	}, nil
}

func (s *WeaviateStore) Backup(ctx context.Context, name string) (*CollectionSnapshot, error) {
	className := classNameFor(name)
	exists, err := s.hasClass(ctx, className)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, types.ErrNotFound
	}

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "provider"},
		{Name: "meta"},
		{Name: "createdAt"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "vector"}}},
	}
	result, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithFields(fields...).
		WithSort(graphql.Sort{Path: []string{"createdAt"}, Order: graphql.Asc}).
		WithLimit(backupLimit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup failed: %w", types.ErrServiceUnavailable)
	}
	if result.Errors != nil {
		return nil, fmt.Errorf("backup failed: %v", result.Errors[0].Message)
	}

	snapshot := &CollectionSnapshot{Name: name}
	if dim, ok := s.recordedDimension(name); ok {
		snapshot.Dimension = dim
	}
	if data, ok := result.Data["Get"].(map[string]interface{})[className].([]interface{}); ok {
		for _, item := range data {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			rec := parseRecord(obj)
			if additional, ok := obj["_additional"].(map[string]interface{}); ok {
				rec.Vector = parseVector(additional["vector"])
			}
			if snapshot.Dimension == 0 {
				snapshot.Dimension = len(rec.Vector)
			}
			snapshot.Records = append(snapshot.Records, rec)
		}
	}
	return snapshot, nil
}

func (s *WeaviateStore) Restore(ctx context.Context, snapshot *CollectionSnapshot) error {
	if snapshot == nil || snapshot.Name == "" {
		return fmt.Errorf("empty snapshot: %w", types.ErrInvalidInput)
	}
	if err := s.CreateCollection(ctx, snapshot.Name, snapshot.Dimension); err != nil {
		return err
	}
	return s.Insert(ctx, snapshot.Name, snapshot.Records)
}

// Helper functions

func parseRecord(obj map[string]interface{}) EmbeddingRecord {
	rec := EmbeddingRecord{}
	if text, ok := obj["text"].(string); ok {
		rec.Text = text
	}
	if provider, ok := obj["provider"].(string); ok {
		rec.Provider = provider
	}
	if meta, ok := obj["meta"].(string); ok && meta != "" {
		var parsed map[string]string
		if err := json.Unmarshal([]byte(meta), &parsed); err == nil {
			rec.Metadata = parsed
		}
	}
	if createdAt, ok := obj["createdAt"].(float64); ok {
		rec.CreatedAt = int64(createdAt)
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().Unix()
	}
	return rec
}

func parseVector(v interface{}) []float32 {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	vector := make([]float32, 0, len(arr))
	for _, item := range arr {
		if f, ok := item.(float64); ok {
			vector = append(vector, float32(f))
		}
	}
	return vector
}
