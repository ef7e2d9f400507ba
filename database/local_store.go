package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/phamduchanh/docvec-be/types"
)

// LocalStore persists one JSON file per collection under a data directory.
// Collections are bounded by per-document embedding counts, so search loads
// the whole collection into memory. Writes are exclusive per collection;
// writers to different collections never block each other.
type LocalStore struct {
	dataDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type localCollection struct {
	Name      string            `json:"name"`
	Dimension int               `json:"dimension"`
	Records   []EmbeddingRecord `json:"records"`
}

func NewLocalStore(dataDir string) (*LocalStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &LocalStore{
		dataDir: dataDir,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

func (s *LocalStore) Backend() string { return "local" }

// lockFor returns the write lock scoped to one collection name.
func (s *LocalStore) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

func (s *LocalStore) path(name string) string {
	// Collection names come from user input; keep the file name safe.
	safe := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, name)
	return filepath.Join(s.dataDir, safe+".json")
}

func (s *LocalStore) load(name string) (*localCollection, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read collection %s: %w", name, err)
	}
	var col localCollection
	if err := json.Unmarshal(data, &col); err != nil {
		return nil, fmt.Errorf("failed to decode collection %s: %w", name, err)
	}
	return &col, nil
}

func (s *LocalStore) save(col *localCollection) error {
	data, err := json.Marshal(col)
	if err != nil {
		return fmt.Errorf("failed to encode collection %s: %w", col.Name, err)
	}
	tmp := s.path(col.Name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write collection %s: %w", col.Name, err)
	}
	return os.Rename(tmp, s.path(col.Name))
}

func (s *LocalStore) CreateCollection(ctx context.Context, name string, dimension int) error {
	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.load(name)
	if err == nil {
		if existing.Dimension != dimension {
			return fmt.Errorf("collection %s has dimension %d, requested %d: %w",
				name, existing.Dimension, dimension, types.ErrAlreadyExists)
		}
		return nil
	}
	if err != types.ErrNotFound {
		return err
	}
	return s.save(&localCollection{Name: name, Dimension: dimension, Records: []EmbeddingRecord{}})
}

func (s *LocalStore) Insert(ctx context.Context, collection string, records []EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	lock := s.lockFor(collection)
	lock.Lock()
	defer lock.Unlock()

	col, err := s.load(collection)
	if err == types.ErrNotFound {
		col = &localCollection{
			Name:      collection,
			Dimension: len(records[0].Vector),
			Records:   []EmbeddingRecord{},
		}
	} else if err != nil {
		return err
	}

	for _, rec := range records {
		if len(rec.Vector) != col.Dimension {
			return fmt.Errorf("record vector length %d, collection %s expects %d: %w",
				len(rec.Vector), collection, col.Dimension, types.ErrDimensionMismatch)
		}
	}
	col.Records = append(col.Records, records...)
	return s.save(col)
}

func (s *LocalStore) Search(ctx context.Context, collection string, query []float32, topK int) ([]SearchMatch, error) {
	col, err := s.load(collection)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}

	matches := make([]SearchMatch, 0, len(col.Records))
	for _, rec := range col.Records {
		matches = append(matches, SearchMatch{
			Record: rec,
			Score:  CosineSimilarity(rec.Vector, query),
		})
	}
	// Stable sort keeps insertion order on score ties, earlier records win.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *LocalStore) DeleteCollection(ctx context.Context, name string) error {
	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return types.ErrNotFound
		}
		return fmt.Errorf("failed to delete collection %s: %w", name, err)
	}
	return nil
}

func (s *LocalStore) Info(ctx context.Context, name string) (*CollectionInfo, error) {
	col, err := s.load(name)
	if err != nil {
		return nil, err
	}
	return &CollectionInfo{
		Name:      col.Name,
		Dimension: col.Dimension,
		Records:   len(col.Records),
	}, nil
}

func (s *LocalStore) Backup(ctx context.Context, name string) (*CollectionSnapshot, error) {
	col, err := s.load(name)
	if err != nil {
		return nil, err
	}
	records := make([]EmbeddingRecord, len(col.Records))
	copy(records, col.Records)
	return &CollectionSnapshot{
		Name:      col.Name,
		Dimension: col.Dimension,
		Records:   records,
	}, nil
}

func (s *LocalStore) Restore(ctx context.Context, snapshot *CollectionSnapshot) error {
	if snapshot == nil || snapshot.Name == "" {
		return fmt.Errorf("empty snapshot: %w", types.ErrInvalidInput)
	}
	if err := s.CreateCollection(ctx, snapshot.Name, snapshot.Dimension); err != nil {
		return err
	}
	return s.Insert(ctx, snapshot.Name, snapshot.Records)
}
