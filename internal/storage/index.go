package storage

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"pdf-quiz-rag/internal/embeddings"
	apperrors "pdf-quiz-rag/internal/errors"
	"pdf-quiz-rag/internal/logger"
	"pdf-quiz-rag/internal/models"
)

const metadataSectionID = "section_id"

// Collection is a handle to one document's indexed sections.
type Collection struct {
	Name string
}

// UpsertReport summarises one Upsert call.
type UpsertReport struct {
	Added    int
	Existing int
	Blank    int
	Failed   int
}

// Index embeds sections and stores them in a Backend.
type Index struct {
	backend  Backend
	embedder embeddings.Embedder
}

// NewIndex creates an Index.
func NewIndex(backend Backend, embedder embeddings.Embedder) *Index {
	return &Index{backend: backend, embedder: embedder}
}

// BackendName reports the backend in use.
func (x *Index) BackendName() string { return x.backend.Name() }

// EmbeddingModel reports the embedding model in use.
func (x *Index) EmbeddingModel() string { return x.embedder.ModelName() }

// EnsureCollection creates the collection if needed. Safe to call repeatedly.
func (x *Index) EnsureCollection(ctx context.Context, key string) (Collection, error) {
	if err := x.backend.CreateOrGet(ctx, key); err != nil {
		return Collection{}, apperrors.ErrIndexQuery.WithCause(err)
	}
	return Collection{Name: key}, nil
}

// Upsert embeds and adds the sections not already stored. Blank sections
// and sections whose embedding fails are skipped; the rest go to the
// backend in one call.
func (x *Index) Upsert(ctx context.Context, c Collection, sections []models.Section) (UpsertReport, error) {
	var report UpsertReport

	var (
		ids       []string
		vectors   [][]float32
		metadatas []map[string]string
		documents []string
	)
	seen := make(map[string]bool, len(sections))

	for _, sec := range sections {
		id := sec.DocumentID()
		if seen[id] {
			report.Existing++
			continue
		}
		seen[id] = true

		exists, err := x.backend.Has(ctx, c.Name, id)
		if err != nil {
			return report, apperrors.ErrIndexQuery.WithCause(err)
		}
		if exists {
			report.Existing++
			continue
		}

		if strings.TrimSpace(sec.Text) == "" {
			logger.Warn("Section %d of %s is blank, skipping", sec.ID, c.Name)
			report.Blank++
			continue
		}

		vec, err := x.embedder.Embed(ctx, sec.Text)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			logger.Warn("%v", apperrors.ErrEmbedding.WithCause(fmt.Errorf("section %d of %s: %w", sec.ID, c.Name, err)))
			report.Failed++
			continue
		}

		ids = append(ids, id)
		vectors = append(vectors, vec)
		metadatas = append(metadatas, map[string]string{metadataSectionID: strconv.Itoa(sec.ID)})
		documents = append(documents, sec.Text)
	}

	if len(ids) > 0 {
		if err := x.backend.Add(ctx, c.Name, ids, vectors, metadatas, documents); err != nil {
			return report, apperrors.ErrIndexQuery.WithCause(err)
		}
	}
	report.Added = len(ids)

	logger.Info("Added %d sections to collection %s (%d already present, %d blank, %d failed)",
		report.Added, c.Name, report.Existing, report.Blank, report.Failed)
	return report, nil
}

// Query returns the topK sections nearest to text, most similar first.
func (x *Index) Query(ctx context.Context, c Collection, text string, topK int) ([]models.RetrievalResult, error) {
	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, apperrors.ErrEmbedding.WithCause(err)
	}

	res, err := x.backend.Query(ctx, c.Name, vec, topK)
	if err != nil {
		return nil, apperrors.ErrIndexQuery.WithCause(err)
	}

	out := make([]models.RetrievalResult, 0, res.Len())
	for i := 0; i < res.Len(); i++ {
		var meta map[string]string
		if i < len(res.Metadatas) {
			meta = res.Metadatas[i]
		}
		sectionID, _ := strconv.Atoi(meta[metadataSectionID])
		out = append(out, models.RetrievalResult{
			Text:       res.Documents[i],
			Metadata:   models.SectionMetadata{SectionID: sectionID},
			Confidence: Confidence(res.Distances[i]),
		})
	}
	return out, nil
}

// Count returns the number of stored sections.
func (x *Index) Count(ctx context.Context, c Collection) (int, error) {
	n, err := x.backend.Count(ctx, c.Name)
	if err != nil {
		return 0, apperrors.ErrIndexQuery.WithCause(err)
	}
	return n, nil
}

// Reset drops every collection.
func (x *Index) Reset(ctx context.Context) error {
	if err := x.backend.Reset(ctx); err != nil {
		return apperrors.ErrIndexQuery.WithCause(err)
	}
	return nil
}

// Close releases the backend.
func (x *Index) Close() error {
	return x.backend.Close()
}

// Confidence maps a distance to max(0, 1-distance) rounded to 4 places and
// clamped to [0, 1].
func Confidence(distance float64) float64 {
	if math.IsNaN(distance) {
		return 0
	}
	c := math.Round(math.Max(0, 1-distance)*1e4) / 1e4
	return math.Min(1, c)
}
