package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pdf-quiz-rag/internal/config"
	"pdf-quiz-rag/internal/document"
	"pdf-quiz-rag/internal/embeddings"
	"pdf-quiz-rag/internal/generation"
	"pdf-quiz-rag/internal/generator"
	"pdf-quiz-rag/internal/llm"
	"pdf-quiz-rag/internal/logger"
	"pdf-quiz-rag/internal/storage"
)

// app holds the wired pipeline and everything that needs closing.
type app struct {
	service *generator.Service
	backend string
	closers []io.Closer
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	backend, err := storage.NewBackend(cfg.StorageOptions())
	if err != nil {
		return nil, fmt.Errorf("open %s index: %w", cfg.Index.Backend, err)
	}
	a.backend = backend.Name()

	embedder, err := embeddings.New(ctx, cfg.EmbeddingOptions())
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	if c, ok := embedder.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	index := storage.NewIndex(backend, embedder)
	a.closers = append(a.closers, index)

	completer, err := llm.New(ctx, cfg.LLMOptions())
	if err != nil {
		a.close()
		return nil, err
	}
	if c, ok := completer.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	adapter, err := generation.NewAdapter(generation.Config{
		Completer: completer,
		Prompts:   generation.NewFilePromptStore(cfg.Generation.PromptDir),
	})
	if err != nil {
		a.close()
		return nil, err
	}

	sectioner := document.NewSectioner(document.NewPDFToText(cfg.Document.PDFToText))
	a.service, err = generator.NewService(sectioner, index, adapter, cfg.GeneratorOptions())
	if err != nil {
		a.close()
		return nil, err
	}

	logger.Debug("Pipeline ready: index=%s embedding=%s llm=%s", a.backend, embedder.ModelName(), completer.ModelName())
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logger.Warn("Error closing %T: %v", a.closers[i], err)
		}
	}
	a.closers = nil
}

// readPDF loads a PDF from disk for ingestion.
func readPDF(path string) (document.Source, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return document.Source{}, errors.New("only PDF files are supported")
	}
	f, err := os.Open(path)
	if err != nil {
		return document.Source{}, err
	}
	defer f.Close()
	return document.FromReader(filepath.Base(path), f)
}
