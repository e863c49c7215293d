// Package generator drives ingestion, question generation and chat for
// documents held in the similarity index.
package generator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"pdf-quiz-rag/internal/document"
	apperrors "pdf-quiz-rag/internal/errors"
	"pdf-quiz-rag/internal/logger"
	"pdf-quiz-rag/internal/models"
	"pdf-quiz-rag/internal/storage"
)

// Defaults for Options fields left at zero.
const (
	DefaultDirectQuestionCount   = 5
	DefaultGroundedQuestionCount = 10
	DefaultGroundedTopK          = 1
	DefaultChatTopK              = 3
	DefaultMaxConcurrency        = 4
	DefaultCacheSize             = 32
)

// Sectioner extracts sections and full text in one pass.
type Sectioner interface {
	Extract(ctx context.Context, src document.Source) (*document.Extracted, error)
}

// Index is the similarity index the service stores sections in.
type Index interface {
	EnsureCollection(ctx context.Context, key string) (storage.Collection, error)
	Upsert(ctx context.Context, c storage.Collection, sections []models.Section) (storage.UpsertReport, error)
	Query(ctx context.Context, c storage.Collection, text string, topK int) ([]models.RetrievalResult, error)
	Reset(ctx context.Context) error
	BackendName() string
	EmbeddingModel() string
}

// Generator produces outlines, questions and answers.
type Generator interface {
	ExtractOutline(ctx context.Context, fullText string) (*models.TopicOutline, error)
	GenerateQuestions(ctx context.Context, contextText, topic string, count int) ([]models.Question, error)
	AnswerQuestion(ctx context.Context, contextText, question string) (*models.ChatAnswer, error)
	ModelName() string
}

// Options tunes the service.
type Options struct {
	DirectQuestionCount   int
	GroundedQuestionCount int
	GroundedTopK          int
	ChatTopK              int
	MaxConcurrency        int
	// CacheSize bounds how many documents stay ingested at once. The least
	// recently used one is dropped first.
	CacheSize int
}

func (o Options) withDefaults() Options {
	if o.DirectQuestionCount <= 0 {
		o.DirectQuestionCount = DefaultDirectQuestionCount
	}
	if o.GroundedQuestionCount <= 0 {
		o.GroundedQuestionCount = DefaultGroundedQuestionCount
	}
	if o.GroundedTopK <= 0 {
		o.GroundedTopK = DefaultGroundedTopK
	}
	if o.ChatTopK <= 0 {
		o.ChatTopK = DefaultChatTopK
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	if o.CacheSize <= 0 {
		o.CacheSize = DefaultCacheSize
	}
	return o
}

// Service is safe for concurrent use, except that Reset must not run while
// a generation is in flight for the same document.
type Service struct {
	sectioner Sectioner
	index     Index
	gen       Generator
	opts      Options

	// texts caches full document text and doubles as the set of ingested keys
	texts  *lru.Cache[string, string]
	ingest singleflight.Group
	now    func() time.Time
}

// NewService wires a Service.
func NewService(sectioner Sectioner, index Index, gen Generator, opts Options) (*Service, error) {
	opts = opts.withDefaults()
	texts, err := lru.NewWithEvict(opts.CacheSize, func(key string, _ string) {
		logger.Info("Document %s dropped from cache", key)
	})
	if err != nil {
		return nil, apperrors.ErrConfiguration.WithCause(err)
	}
	return &Service{
		sectioner: sectioner,
		index:     index,
		gen:       gen,
		opts:      opts,
		texts:     texts,
		now:       time.Now,
	}, nil
}

// Ingest extracts src, indexes its sections and returns its collection key.
// A document whose key is already ingested is not read again.
func (s *Service) Ingest(ctx context.Context, src document.Source) (string, error) {
	key := document.Sanitize(src.Name)
	if key == "" {
		return "", apperrors.ErrDocumentOpen.WithMessage("Document has no name")
	}
	if s.texts.Contains(key) {
		logger.Debug("Document %s already ingested", key)
		return key, nil
	}

	// the shared extraction keeps running when the caller that started it goes away
	ch := s.ingest.DoChan(key, func() (any, error) {
		if s.texts.Contains(key) {
			return nil, nil
		}
		work := context.WithoutCancel(ctx)
		ex, err := s.sectioner.Extract(work, src)
		if err != nil {
			return nil, err
		}
		c, err := s.index.EnsureCollection(work, key)
		if err != nil {
			return nil, err
		}
		if _, err := s.index.Upsert(work, c, ex.Ordered()); err != nil {
			return nil, err
		}
		s.texts.Add(key, ex.FullText)
		logger.Info("Ingested %s as %s (%d sections)", src.Name, key, len(ex.Sections))
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
	}
	return key, nil
}

// Ingested reports whether key is currently ingested.
func (s *Service) Ingested(key string) bool {
	return s.texts.Contains(key)
}

func (s *Service) fullText(key string) (string, error) {
	text, ok := s.texts.Get(key)
	if !ok {
		return "", apperrors.ErrNotIngested.WithCause(fmt.Errorf("collection %q", key))
	}
	return text, nil
}

// GenerateDirect builds questions for every outline topic from the full
// document text.
func (s *Service) GenerateDirect(ctx context.Context, key string) (*models.Envelope, error) {
	text, err := s.fullText(key)
	if err != nil {
		return nil, err
	}

	outline, err := s.gen.ExtractOutline(ctx, text)
	if err != nil {
		return nil, err
	}

	questions, err := s.perTopic(ctx, outline.Topics, func(ctx context.Context, topic string) ([]models.Question, error) {
		return s.gen.GenerateQuestions(ctx, text, topic, s.opts.DirectQuestionCount)
	})
	if err != nil {
		return nil, err
	}
	return s.envelope(outline, questions, models.ModeDirect), nil
}

// GenerateGrounded builds questions for every outline topic from the
// sections retrieved for that topic, and records those sections on each
// question.
func (s *Service) GenerateGrounded(ctx context.Context, key string) (*models.Envelope, error) {
	text, err := s.fullText(key)
	if err != nil {
		return nil, err
	}

	outline, err := s.gen.ExtractOutline(ctx, text)
	if err != nil {
		return nil, err
	}

	c := storage.Collection{Name: key}
	questions, err := s.perTopic(ctx, outline.Topics, func(ctx context.Context, topic string) ([]models.Question, error) {
		results, err := s.index.Query(ctx, c, topic, s.opts.GroundedTopK)
		if err != nil {
			return nil, err
		}
		qs, err := s.gen.GenerateQuestions(ctx, BuildContext(results), topic, s.opts.GroundedQuestionCount)
		if err != nil {
			return nil, err
		}
		for i := range qs {
			qs[i].SourceSection = append([]models.RetrievalResult(nil), results...)
		}
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return s.envelope(outline, questions, models.ModeGrounded), nil
}

// Answer answers question from the sections most similar to it.
func (s *Service) Answer(ctx context.Context, key, question string) (*models.ChatAnswer, error) {
	if _, err := s.fullText(key); err != nil {
		return nil, err
	}

	results, err := s.index.Query(ctx, storage.Collection{Name: key}, question, s.opts.ChatTopK)
	if err != nil {
		return nil, err
	}
	answer, err := s.gen.AnswerQuestion(ctx, BuildContext(results), question)
	if err != nil {
		return nil, err
	}
	answer.SupportingSections = results
	return answer, nil
}

// Reset forgets every document and empties the index.
func (s *Service) Reset(ctx context.Context) error {
	s.texts.Purge()
	if err := s.index.Reset(ctx); err != nil {
		return err
	}
	logger.Info("All documents reset")
	return nil
}

// Evict forgets one document's cached text. Its vectors stay in the index,
// so ingesting it again only re-reads the document.
func (s *Service) Evict(key string) bool {
	return s.texts.Remove(key)
}

// perTopic runs fn for each topic with bounded concurrency and returns the
// results flattened in topic order. The first error cancels the rest.
func (s *Service) perTopic(ctx context.Context, topics []string, fn func(context.Context, string) ([]models.Question, error)) ([]models.Question, error) {
	slots := make([][]models.Question, len(topics))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrency)
	for i, topic := range topics {
		g.Go(func() error {
			qs, err := fn(gctx, topic)
			if err != nil {
				return err
			}
			slots[i] = qs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []models.Question
	for _, qs := range slots {
		out = append(out, qs...)
	}
	return out, nil
}

func (s *Service) envelope(outline *models.TopicOutline, questions []models.Question, mode string) *models.Envelope {
	if questions == nil {
		questions = []models.Question{}
	}
	return &models.Envelope{
		Metadata: models.Metadata{
			GeneratedAt:        s.now().UTC(),
			TotalQuestionCount: len(questions),
			Title:              outline.Title,
			GenerationMode:     mode,
			ModelID:            s.gen.ModelName(),
			EmbeddingModelID:   s.index.EmbeddingModel(),
			IndexBackendID:     s.index.BackendName(),
		},
		Questions: questions,
	}
}

// BuildContext joins retrieval results into prompt context, one line per
// result in the order given.
func BuildContext(results []models.RetrievalResult) string {
	var b strings.Builder
	for _, r := range results {
		b.WriteString(r.Text)
		b.WriteString(" Page number: ")
		b.WriteString(strconv.Itoa(r.Metadata.SectionID))
		b.WriteString("\n")
	}
	return b.String()
}
