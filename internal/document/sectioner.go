package document

import (
	"context"
	"fmt"
	"sort"
	"strings"

	apperrors "pdf-quiz-rag/internal/errors"
	"pdf-quiz-rag/internal/logger"
	"pdf-quiz-rag/internal/models"
)

// Extracted is the result of a single extraction pass.
type Extracted struct {
	// Sections maps 1-based page numbers to non-blank page text.
	Sections map[int]string
	FullText string
}

// Ordered returns the sections sorted by id.
func (e *Extracted) Ordered() []models.Section {
	ids := make([]int, 0, len(e.Sections))
	for id := range e.Sections {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]models.Section, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Section{ID: id, Text: e.Sections[id]})
	}
	return out
}

// Sectioner splits documents into page sections.
type Sectioner struct {
	extractor Extractor
}

// NewSectioner creates a Sectioner backed by extractor.
func NewSectioner(extractor Extractor) *Sectioner {
	return &Sectioner{extractor: extractor}
}

// Extract returns both the sections and the flattened text of src.
func (s *Sectioner) Extract(ctx context.Context, src Source) (*Extracted, error) {
	pages, err := s.extractor.ExtractPageWise(ctx, src)
	if err != nil {
		return nil, err
	}

	sections := make(map[int]string, len(pages))
	for i, page := range pages {
		if strings.TrimSpace(page) == "" {
			logger.Warn("Page %d of %s is blank, skipping", i+1, src.Name)
			continue
		}
		sections[i+1] = page
	}

	return &Extracted{Sections: sections, FullText: joinPages(pages)}, nil
}

// Sectionize maps page numbers to page text. Blank pages are dropped.
func (s *Sectioner) Sectionize(ctx context.Context, src Source) (map[int]string, error) {
	ex, err := s.Extract(ctx, src)
	if err != nil {
		return nil, err
	}
	return ex.Sections, nil
}

// Flatten returns the whole document as one string.
func (s *Sectioner) Flatten(ctx context.Context, src Source) (string, error) {
	return s.extractor.ExtractAll(ctx, src)
}

// ExtractPage returns the text of page n (1-based).
func (s *Sectioner) ExtractPage(ctx context.Context, src Source, n int) (string, error) {
	return s.ExtractInterval(ctx, src, n, 0)
}

// ExtractInterval returns the text of pages n-interval through n+interval,
// clipped to the document.
func (s *Sectioner) ExtractInterval(ctx context.Context, src Source, n, interval int) (string, error) {
	if interval < 0 {
		return "", apperrors.ErrDocumentOpen.WithCause(fmt.Errorf("negative page interval %d", interval))
	}

	pages, err := s.extractor.ExtractPageWise(ctx, src)
	if err != nil {
		return "", err
	}
	if n < 1 || n > len(pages) {
		return "", apperrors.ErrDocumentOpen.WithCause(fmt.Errorf("page %d out of range 1..%d", n, len(pages)))
	}

	first := max(1, n-interval)
	last := min(len(pages), n+interval)
	return joinPages(pages[first-1 : last]), nil
}
