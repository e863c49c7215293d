// Package storage indexes document sections for similarity search.
package storage

import (
	"context"
	"fmt"
)

// Backend names.
const (
	BackendChromem   = "chromem"
	BackendSQLiteVec = "sqlite-vec"
	BackendMemory    = "memory"
)

// QueryResult holds parallel slices ordered by ascending distance.
type QueryResult struct {
	IDs       []string
	Documents []string
	Metadatas []map[string]string
	Distances []float64
}

// Len returns the number of hits.
func (r *QueryResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Documents)
}

// Backend is a vector store holding named collections.
type Backend interface {
	// CreateOrGet creates the collection if it does not exist.
	CreateOrGet(ctx context.Context, collection string) error
	Has(ctx context.Context, collection, id string) (bool, error)
	Add(ctx context.Context, collection string, ids []string, embeddings [][]float32, metadatas []map[string]string, documents []string) error
	// Query returns up to n nearest neighbours. Fewer are returned when the
	// collection is smaller than n.
	Query(ctx context.Context, collection string, embedding []float32, n int) (*QueryResult, error)
	Count(ctx context.Context, collection string) (int, error)
	// Reset drops every collection.
	Reset(ctx context.Context) error
	Close() error
	Name() string
}

// ErrCollectionNotFound is returned for operations on unknown collections.
type ErrCollectionNotFound struct {
	Collection string
}

func (e *ErrCollectionNotFound) Error() string {
	return fmt.Sprintf("collection %q not found", e.Collection)
}

// Options selects a backend.
type Options struct {
	Backend string
	// Path is a directory for chromem or a file/DSN for sqlite-vec. Empty
	// means in-memory.
	Path     string
	Compress bool
}

// NewBackend opens the backend named by opts.Backend.
func NewBackend(opts Options) (Backend, error) {
	switch opts.Backend {
	case "", BackendChromem:
		return NewChromemStore(opts.Path, opts.Compress)
	case BackendSQLiteVec:
		dsn := opts.Path
		if dsn == "" {
			dsn = ":memory:"
		}
		return NewSQLiteVectorStore(dsn)
	case BackendMemory:
		return NewMemoryVectorStore(), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", opts.Backend)
	}
}

func checkAddArgs(ids []string, embeddings [][]float32, metadatas []map[string]string, documents []string) error {
	if len(embeddings) != len(ids) || len(documents) != len(ids) || (metadatas != nil && len(metadatas) != len(ids)) {
		return fmt.Errorf("mismatched add arguments: %d ids, %d embeddings, %d metadatas, %d documents",
			len(ids), len(embeddings), len(metadatas), len(documents))
	}
	return nil
}
