package generation

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	apperrors "pdf-quiz-rag/internal/errors"
)

// Template names.
const (
	PromptOutline   = "outline"
	PromptQuestions = "questions"
	PromptChat      = "chat"
)

const promptExt = ".prompt"

//go:embed prompts/*.prompt
var defaultPrompts embed.FS

// PromptStore provides prompt templates by name.
type PromptStore interface {
	Load(name string) (string, error)
}

// FilePromptStore reads <dir>/<name>.prompt and falls back to the built-in
// template when the file does not exist.
type FilePromptStore struct {
	dir string
}

// NewFilePromptStore creates a store. An empty dir uses only the built-in
// templates.
func NewFilePromptStore(dir string) *FilePromptStore {
	return &FilePromptStore{dir: dir}
}

// Load implements PromptStore.
func (s *FilePromptStore) Load(name string) (string, error) {
	if s.dir != "" {
		data, err := os.ReadFile(filepath.Join(s.dir, name+promptExt))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", apperrors.ErrConfiguration.WithCause(fmt.Errorf("read prompt %q: %w", name, err))
		}
	}

	data, err := defaultPrompts.ReadFile("prompts/" + name + promptExt)
	if err != nil {
		return "", apperrors.ErrConfiguration.WithCause(fmt.Errorf("prompt %q not found", name))
	}
	return string(data), nil
}

// MapPromptStore serves templates from memory.
type MapPromptStore map[string]string

// Load implements PromptStore.
func (m MapPromptStore) Load(name string) (string, error) {
	t, ok := m[name]
	if !ok {
		return "", apperrors.ErrConfiguration.WithCause(fmt.Errorf("prompt %q not found", name))
	}
	return t, nil
}
