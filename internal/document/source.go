// Package document turns raw PDF bytes into numbered sections and full text.
package document

import (
	"fmt"
	"io"

	apperrors "pdf-quiz-rag/internal/errors"
)

// Source is a named in-memory document.
type Source struct {
	Name string
	Data []byte
}

// FromReader reads r fully into a Source.
func FromReader(name string, r io.Reader) (Source, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Source{}, apperrors.ErrDocumentOpen.WithCause(fmt.Errorf("read %s: %w", name, err))
	}
	return Source{Name: name, Data: data}, nil
}
