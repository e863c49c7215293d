package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	apperrors "pdf-quiz-rag/internal/errors"
)

// Extractor pulls text out of a document.
type Extractor interface {
	// ExtractPageWise returns the text of each page, in page order.
	ExtractPageWise(ctx context.Context, src Source) ([]string, error)
	// ExtractAll returns the text of the whole document.
	ExtractAll(ctx context.Context, src Source) (string, error)
}

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// DefaultPDFToTextBinary is the poppler binary used when none is configured.
const DefaultPDFToTextBinary = "pdftotext"

// PDFToText extracts text with poppler's pdftotext. Pages are separated by
// form feeds in its output.
type PDFToText struct {
	Binary string
	Runner CommandRunner
	// TempDir holds the scratch copy of the PDF. Empty means os.TempDir().
	TempDir string
}

// NewPDFToText creates an extractor that shells out to binary.
func NewPDFToText(binary string) *PDFToText {
	if binary == "" {
		binary = DefaultPDFToTextBinary
	}
	return &PDFToText{Binary: binary, Runner: execRunner{}}
}

// InstallInstructions explains how to get pdftotext on common platforms.
func InstallInstructions() string {
	return "pdftotext not found: install poppler (brew install poppler on macOS, apt install poppler-utils on Debian/Ubuntu)"
}

// ExtractPageWise implements Extractor.
func (p *PDFToText) ExtractPageWise(ctx context.Context, src Source) ([]string, error) {
	out, err := p.run(ctx, src)
	if err != nil {
		return nil, err
	}

	pages := strings.Split(string(out), "\f")
	// pdftotext terminates every page with a form feed
	if n := len(pages); n > 0 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return pages, nil
}

// ExtractAll implements Extractor.
func (p *PDFToText) ExtractAll(ctx context.Context, src Source) (string, error) {
	pages, err := p.ExtractPageWise(ctx, src)
	if err != nil {
		return "", err
	}
	return joinPages(pages), nil
}

func (p *PDFToText) run(ctx context.Context, src Source) ([]byte, error) {
	if len(src.Data) == 0 {
		return nil, apperrors.ErrDocumentOpen.WithCause(fmt.Errorf("%q is empty", src.Name))
	}

	f, err := os.CreateTemp(p.TempDir, "quizrag-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	defer func() { _ = os.Remove(f.Name()) }()

	if _, err := f.Write(src.Data); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close scratch file: %w", err)
	}

	runner := p.Runner
	if runner == nil {
		runner = execRunner{}
	}
	out, err := runner.Run(ctx, p.Binary, "-enc", "UTF-8", "-layout", f.Name(), "-")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, apperrors.ErrConfiguration.WithCause(errors.New(InstallInstructions()))
		}
		return nil, apperrors.ErrDocumentOpen.WithCause(fmt.Errorf("extract %q: %w", src.Name, err))
	}
	return out, nil
}

func joinPages(pages []string) string {
	var b strings.Builder
	for _, page := range pages {
		b.WriteString(page)
		if !strings.HasSuffix(page, "\n") {
			b.WriteString("\n")
		}
	}
	// a document of blank pages has no text
	if strings.TrimSpace(b.String()) == "" {
		return ""
	}
	return b.String()
}
