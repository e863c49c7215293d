package storage

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
)

// ChromemStore is a Backend on chromem-go. Similarity is cosine, so the
// reported distance is 1 - similarity.
type ChromemStore struct {
	db *chromem.DB
}

// NewChromemStore opens a persistent DB at path, or an in-memory one when
// path is empty.
func NewChromemStore(path string, compress bool) (*ChromemStore, error) {
	if path == "" {
		return &ChromemStore{db: chromem.NewDB()}, nil
	}
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem db at %s: %w", path, err)
	}
	return &ChromemStore{db: db}, nil
}

// Name implements Backend.
func (s *ChromemStore) Name() string { return BackendChromem }

// CreateOrGet implements Backend.
func (s *ChromemStore) CreateOrGet(_ context.Context, collection string) error {
	metadata := map[string]string{"hnsw:space": "cosine"}
	if _, err := s.db.GetOrCreateCollection(collection, metadata, nil); err != nil {
		return fmt.Errorf("failed to create collection %q: %w", collection, err)
	}
	return nil
}

func (s *ChromemStore) collection(name string) (*chromem.Collection, error) {
	c := s.db.GetCollection(name, nil)
	if c == nil {
		return nil, &ErrCollectionNotFound{Collection: name}
	}
	return c, nil
}

// Has implements Backend.
func (s *ChromemStore) Has(ctx context.Context, collection, id string) (bool, error) {
	c, err := s.collection(collection)
	if err != nil {
		return false, err
	}
	// GetByID only fails for unknown ids.
	if _, err := c.GetByID(ctx, id); err != nil {
		return false, nil
	}
	return true, nil
}

// Add implements Backend.
func (s *ChromemStore) Add(ctx context.Context, collection string, ids []string, embeddings [][]float32, metadatas []map[string]string, documents []string) error {
	if err := checkAddArgs(ids, embeddings, metadatas, documents); err != nil {
		return err
	}
	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	if err := c.Add(ctx, ids, embeddings, metadatas, documents); err != nil {
		return fmt.Errorf("failed to add %d documents to %q: %w", len(ids), collection, err)
	}
	return nil
}

// Query implements Backend.
func (s *ChromemStore) Query(ctx context.Context, collection string, embedding []float32, n int) (*QueryResult, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	result := &QueryResult{}
	// chromem rejects n larger than the collection.
	if count := c.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return result, nil
	}

	hits, err := c.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", collection, err)
	}
	for _, h := range hits {
		result.IDs = append(result.IDs, h.ID)
		result.Documents = append(result.Documents, h.Content)
		result.Metadatas = append(result.Metadatas, h.Metadata)
		result.Distances = append(result.Distances, 1-float64(h.Similarity))
	}
	return result, nil
}

// Count implements Backend.
func (s *ChromemStore) Count(_ context.Context, collection string) (int, error) {
	c, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}

// Reset implements Backend.
func (s *ChromemStore) Reset(_ context.Context) error {
	if err := s.db.Reset(); err != nil {
		return fmt.Errorf("failed to reset chromem db: %w", err)
	}
	return nil
}

// Close implements Backend. The persistent DB writes on every add.
func (s *ChromemStore) Close() error { return nil }
