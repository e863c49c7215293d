package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

type memoryEntry struct {
	id        string
	document  string
	metadata  map[string]string
	embedding []float32
}

type memoryCollection struct {
	entries   []*memoryEntry
	byID      map[string]*memoryEntry
	dimension int
}

// MemoryVectorStore is a process-local Backend using brute-force cosine
// distance.
type MemoryVectorStore struct {
	collections map[string]*memoryCollection
	mu          sync.RWMutex
}

// NewMemoryVectorStore creates an empty store.
func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{
		collections: make(map[string]*memoryCollection),
	}
}

// Name implements Backend.
func (m *MemoryVectorStore) Name() string { return BackendMemory }

// CreateOrGet implements Backend.
func (m *MemoryVectorStore) CreateOrGet(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collection]; !ok {
		m.collections[collection] = &memoryCollection{byID: make(map[string]*memoryEntry)}
	}
	return nil
}

func (m *MemoryVectorStore) get(collection string) (*memoryCollection, error) {
	c, ok := m.collections[collection]
	if !ok {
		return nil, &ErrCollectionNotFound{Collection: collection}
	}
	return c, nil
}

// Has implements Backend.
func (m *MemoryVectorStore) Has(_ context.Context, collection, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.get(collection)
	if err != nil {
		return false, err
	}
	_, ok := c.byID[id]
	return ok, nil
}

// Add implements Backend.
func (m *MemoryVectorStore) Add(_ context.Context, collection string, ids []string, embeddings [][]float32, metadatas []map[string]string, documents []string) error {
	if err := checkAddArgs(ids, embeddings, metadatas, documents); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(collection)
	if err != nil {
		return err
	}

	for i, id := range ids {
		if c.dimension == 0 {
			c.dimension = len(embeddings[i])
		} else if len(embeddings[i]) != c.dimension {
			return fmt.Errorf("embedding dimension %d does not match collection dimension %d", len(embeddings[i]), c.dimension)
		}
		if _, exists := c.byID[id]; exists {
			return fmt.Errorf("document %q already exists in %q", id, collection)
		}
	}

	for i, id := range ids {
		e := &memoryEntry{id: id, document: documents[i], embedding: embeddings[i]}
		if metadatas != nil {
			e.metadata = metadatas[i]
		}
		c.entries = append(c.entries, e)
		c.byID[id] = e
	}
	return nil
}

// Query implements Backend.
func (m *MemoryVectorStore) Query(_ context.Context, collection string, embedding []float32, n int) (*QueryResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.get(collection)
	if err != nil {
		return nil, err
	}

	result := &QueryResult{}
	if len(c.entries) == 0 || n <= 0 {
		return result, nil
	}
	if len(embedding) != c.dimension {
		return nil, fmt.Errorf("query dimension %d does not match collection dimension %d", len(embedding), c.dimension)
	}

	type scoredEntry struct {
		entry    *memoryEntry
		distance float64
	}

	scores := make([]scoredEntry, 0, len(c.entries))
	for _, e := range c.entries {
		scores = append(scores, scoredEntry{entry: e, distance: 1 - float64(cosineSimilarity(embedding, e.embedding))})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].distance < scores[j].distance
	})

	if n > len(scores) {
		n = len(scores)
	}

	for _, s := range scores[:n] {
		result.IDs = append(result.IDs, s.entry.id)
		result.Documents = append(result.Documents, s.entry.document)
		result.Metadatas = append(result.Metadatas, s.entry.metadata)
		result.Distances = append(result.Distances, s.distance)
	}
	return result, nil
}

// Count implements Backend.
func (m *MemoryVectorStore) Count(_ context.Context, collection string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.get(collection)
	if err != nil {
		return 0, err
	}
	return len(c.entries), nil
}

// Reset implements Backend.
func (m *MemoryVectorStore) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections = make(map[string]*memoryCollection)
	return nil
}

// Close implements Backend.
func (m *MemoryVectorStore) Close() error { return nil }

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
