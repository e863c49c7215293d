package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-quiz-rag/internal/document"
	apperrors "pdf-quiz-rag/internal/errors"
	"pdf-quiz-rag/internal/models"
	"pdf-quiz-rag/internal/storage"
)

// MockExtractor serves fixed pages and counts extraction passes.
type MockExtractor struct {
	pages      []string
	shouldFail bool
	delay      time.Duration
	calls      atomic.Int32
}

func (m *MockExtractor) ExtractPageWise(context.Context, document.Source) ([]string, error) {
	m.calls.Add(1)
	time.Sleep(m.delay)
	if m.shouldFail {
		return nil, apperrors.ErrDocumentOpen.WithCause(errors.New("mock extraction failure"))
	}
	return m.pages, nil
}

func (m *MockExtractor) ExtractAll(ctx context.Context, src document.Source) (string, error) {
	pages, err := m.ExtractPageWise(ctx, src)
	return strings.Join(pages, "\n"), err
}

// keywordEmbedder gives each keyword its own dimension.
type keywordEmbedder struct {
	keywords []string
}

func (k keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(k.keywords)+1)
	vec[len(k.keywords)] = 0.1
	lower := strings.ToLower(text)
	for i, kw := range k.keywords {
		if strings.Contains(lower, kw) {
			vec[i] = 1
		}
	}
	return vec, nil
}

func (keywordEmbedder) ModelName() string { return "keyword-embed" }

// MockGenerator returns one question per requested count and records the
// context it was given for each topic.
type MockGenerator struct {
	mu       sync.Mutex
	outline  models.TopicOutline
	delays   map[string]time.Duration
	failOn   string
	contexts map[string]string
	counts   map[string]int
	chatCtx  string
}

func newMockGenerator(title string, topics ...string) *MockGenerator {
	return &MockGenerator{
		outline:  models.TopicOutline{Title: title, Topics: topics, TopicCount: len(topics)},
		delays:   map[string]time.Duration{},
		contexts: map[string]string{},
		counts:   map[string]int{},
	}
}

func (m *MockGenerator) ExtractOutline(context.Context, string) (*models.TopicOutline, error) {
	out := m.outline
	return &out, nil
}

func (m *MockGenerator) GenerateQuestions(ctx context.Context, contextText, topic string, count int) ([]models.Question, error) {
	if d := m.delays[topic]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if topic == m.failOn {
		return nil, apperrors.ErrModelOutput.WithCause(fmt.Errorf("bad output for %s", topic))
	}

	m.mu.Lock()
	m.contexts[topic] = contextText
	m.counts[topic] = count
	m.mu.Unlock()

	qs := make([]models.Question, count)
	for i := range qs {
		qs[i] = models.Question{
			ID:            fmt.Sprintf("%s-%d", topic, i),
			Topic:         topic,
			Kind:          "true_false",
			PromptText:    fmt.Sprintf("%s question %d", topic, i),
			Options:       []string{"True", "False"},
			CorrectOption: "True",
		}
	}
	return qs, nil
}

func (m *MockGenerator) AnswerQuestion(_ context.Context, contextText, question string) (*models.ChatAnswer, error) {
	m.mu.Lock()
	m.chatCtx = contextText
	m.mu.Unlock()
	return &models.ChatAnswer{QuestionText: question, AnswerText: "answer", GeneratedAt: time.Now()}, nil
}

func (m *MockGenerator) ModelName() string { return "mock-model" }

type fixture struct {
	svc       *Service
	extractor *MockExtractor
	gen       *MockGenerator
	index     *storage.Index
}

func newFixture(t *testing.T, pages []string, gen *MockGenerator, opts Options) *fixture {
	t.Helper()
	extractor := &MockExtractor{pages: pages}
	index := storage.NewIndex(storage.NewMemoryVectorStore(), keywordEmbedder{keywords: []string{"mitosis", "photosynthesis", "genetics"}})
	svc, err := NewService(document.NewSectioner(extractor), index, gen, opts)
	require.NoError(t, err)
	return &fixture{svc: svc, extractor: extractor, gen: gen, index: index}
}

var biologyPages = []string{
	"Mitosis is how a cell divides.",
	"Photosynthesis turns light into sugar.",
	"Genetics studies heredity.",
}

func source(name string) document.Source {
	return document.Source{Name: name, Data: []byte("%PDF-1.4")}
}

func TestIngest_Idempotent(t *testing.T) {
	f := newFixture(t, biologyPages, newMockGenerator("Biology"), Options{})
	ctx := context.Background()

	key, err := f.svc.Ingest(ctx, source("Bio Book.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "Bio_Book.pdf", key)

	c := storage.Collection{Name: key}
	before, err := f.index.Count(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 3, before)

	again, err := f.svc.Ingest(ctx, source("Bio Book.pdf"))
	require.NoError(t, err)
	assert.Equal(t, key, again)

	after, err := f.index.Count(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, int32(1), f.extractor.calls.Load())
}

func TestIngest_Concurrent(t *testing.T) {
	f := newFixture(t, biologyPages, newMockGenerator("Biology"), Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Ingest(ctx, source("bio.pdf"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := f.index.Count(ctx, storage.Collection{Name: "bio.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestIngest_CancelledCallerLeavesOthersRunning(t *testing.T) {
	f := newFixture(t, biologyPages, newMockGenerator("Biology"), Options{})
	f.extractor.delay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := f.svc.Ingest(ctx, source("bio.pdf"))
		first <- err
	}()

	second := make(chan error, 1)
	go func() {
		time.Sleep(5 * time.Millisecond)
		_, err := f.svc.Ingest(context.Background(), source("bio.pdf"))
		second <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-first, context.Canceled)
	assert.NoError(t, <-second)
	assert.True(t, f.svc.Ingested("bio.pdf"))
	assert.Equal(t, int32(1), f.extractor.calls.Load())
}

func TestIngest_Errors(t *testing.T) {
	f := newFixture(t, biologyPages, newMockGenerator("Biology"), Options{})
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, source(""))
	assert.ErrorIs(t, err, apperrors.ErrDocumentOpen)

	f.extractor.shouldFail = true
	_, err = f.svc.Ingest(ctx, source("broken.pdf"))
	assert.ErrorIs(t, err, apperrors.ErrDocumentOpen)
	assert.False(t, f.svc.Ingested("broken.pdf"))
}

func TestGenerateDirect_PreservesTopicOrder(t *testing.T) {
	gen := newMockGenerator("Letters", "A", "B", "C")
	gen.delays["A"] = 30 * time.Millisecond
	gen.delays["C"] = 60 * time.Millisecond
	f := newFixture(t, biologyPages, gen, Options{DirectQuestionCount: 2})
	ctx := context.Background()

	key, err := f.svc.Ingest(ctx, source("letters.pdf"))
	require.NoError(t, err)

	env, err := f.svc.GenerateDirect(ctx, key)
	require.NoError(t, err)

	var topics []string
	for _, q := range env.Questions {
		topics = append(topics, q.Topic)
	}
	assert.Equal(t, []string{"A", "A", "B", "B", "C", "C"}, topics)

	assert.Equal(t, 6, env.Metadata.TotalQuestionCount)
	assert.Equal(t, "Letters", env.Metadata.Title)
	assert.Equal(t, models.ModeDirect, env.Metadata.GenerationMode)
	assert.Equal(t, "mock-model", env.Metadata.ModelID)
	assert.Equal(t, "keyword-embed", env.Metadata.EmbeddingModelID)
	assert.Equal(t, "memory", env.Metadata.IndexBackendID)
	assert.False(t, env.Metadata.GeneratedAt.IsZero())

	// direct mode sends the whole document
	assert.Contains(t, gen.contexts["B"], "Genetics studies heredity.")
	assert.Nil(t, env.Questions[0].SourceSection)
}

func TestGenerateDirect_DefaultCount(t *testing.T) {
	gen := newMockGenerator("Bio", "Cells")
	f := newFixture(t, biologyPages, gen, Options{})
	ctx := context.Background()

	key, err := f.svc.Ingest(ctx, source("bio.pdf"))
	require.NoError(t, err)
	env, err := f.svc.GenerateDirect(ctx, key)
	require.NoError(t, err)

	assert.Len(t, env.Questions, DefaultDirectQuestionCount)
	assert.Equal(t, DefaultDirectQuestionCount, gen.counts["Cells"])
}

func TestGenerateDirect_UnitFailureFailsAll(t *testing.T) {
	gen := newMockGenerator("Bio", "A", "B", "C")
	gen.failOn = "B"
	f := newFixture(t, biologyPages, gen, Options{})
	ctx := context.Background()

	key, err := f.svc.Ingest(ctx, source("bio.pdf"))
	require.NoError(t, err)

	env, err := f.svc.GenerateDirect(ctx, key)
	assert.ErrorIs(t, err, apperrors.ErrModelOutput)
	assert.Nil(t, env)
}

func TestGenerateGrounded_EndToEnd(t *testing.T) {
	gen := newMockGenerator("Biology", "photosynthesis", "genetics")
	f := newFixture(t, biologyPages, gen, Options{})
	ctx := context.Background()

	key, err := f.svc.Ingest(ctx, source("bio.pdf"))
	require.NoError(t, err)

	env, err := f.svc.GenerateGrounded(ctx, key)
	require.NoError(t, err)

	assert.Equal(t, models.ModeGrounded, env.Metadata.GenerationMode)
	assert.Equal(t, 2*DefaultGroundedQuestionCount, env.Metadata.TotalQuestionCount)
	require.Len(t, env.Questions, 2*DefaultGroundedQuestionCount)

	for i, q := range env.Questions {
		want := 2
		if i >= DefaultGroundedQuestionCount {
			want = 3
		}
		require.Len(t, q.SourceSection, DefaultGroundedTopK)
		assert.Equal(t, want, q.SourceSection[0].Metadata.SectionID, "question %d", i)
		assert.GreaterOrEqual(t, q.SourceSection[0].Confidence, 0.0)
		assert.LessOrEqual(t, q.SourceSection[0].Confidence, 1.0)
	}

	assert.Equal(t, "Photosynthesis turns light into sugar. Page number: 2\n", gen.contexts["photosynthesis"])
	assert.Equal(t, "Genetics studies heredity. Page number: 3\n", gen.contexts["genetics"])
}

func TestAnswer(t *testing.T) {
	gen := newMockGenerator("Biology")
	f := newFixture(t, biologyPages, gen, Options{})
	ctx := context.Background()

	key, err := f.svc.Ingest(ctx, source("bio.pdf"))
	require.NoError(t, err)

	ans, err := f.svc.Answer(ctx, key, "How does mitosis work?")
	require.NoError(t, err)

	assert.Equal(t, "answer", ans.AnswerText)
	require.Len(t, ans.SupportingSections, DefaultChatTopK)
	assert.Equal(t, 1, ans.SupportingSections[0].Metadata.SectionID)
	assert.True(t, strings.HasPrefix(gen.chatCtx, "Mitosis is how a cell divides. Page number: 1\n"))
	assert.Equal(t, 3, strings.Count(gen.chatCtx, "Page number:"))
}

func TestNotIngested(t *testing.T) {
	f := newFixture(t, biologyPages, newMockGenerator("Bio", "A"), Options{})
	ctx := context.Background()

	_, err := f.svc.GenerateDirect(ctx, "unknown.pdf")
	assert.ErrorIs(t, err, apperrors.ErrNotIngested)
	_, err = f.svc.GenerateGrounded(ctx, "unknown.pdf")
	assert.ErrorIs(t, err, apperrors.ErrNotIngested)
	_, err = f.svc.Answer(ctx, "unknown.pdf", "q")
	assert.ErrorIs(t, err, apperrors.ErrNotIngested)
}

func TestReset(t *testing.T) {
	f := newFixture(t, biologyPages, newMockGenerator("Bio", "A"), Options{})
	ctx := context.Background()

	key, err := f.svc.Ingest(ctx, source("bio.pdf"))
	require.NoError(t, err)
	_, err = f.svc.GenerateDirect(ctx, key)
	require.NoError(t, err)

	require.NoError(t, f.svc.Reset(ctx))

	_, err = f.svc.GenerateDirect(ctx, key)
	assert.ErrorIs(t, err, apperrors.ErrNotIngested)
	_, err = f.svc.GenerateGrounded(ctx, key)
	assert.ErrorIs(t, err, apperrors.ErrNotIngested)
	_, err = f.svc.Answer(ctx, key, "q")
	assert.ErrorIs(t, err, apperrors.ErrNotIngested)

	// ingesting again starts from an empty index
	_, err = f.svc.Ingest(ctx, source("bio.pdf"))
	require.NoError(t, err)
	n, err := f.index.Count(ctx, storage.Collection{Name: key})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestEvict(t *testing.T) {
	f := newFixture(t, biologyPages, newMockGenerator("Bio", "A"), Options{})
	ctx := context.Background()

	key, err := f.svc.Ingest(ctx, source("bio.pdf"))
	require.NoError(t, err)

	assert.True(t, f.svc.Evict(key))
	assert.False(t, f.svc.Evict(key))

	_, err = f.svc.GenerateDirect(ctx, key)
	assert.ErrorIs(t, err, apperrors.ErrNotIngested)

	_, err = f.svc.Ingest(ctx, source("bio.pdf"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.extractor.calls.Load())

	n, err := f.index.Count(ctx, storage.Collection{Name: key})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestCacheBound(t *testing.T) {
	f := newFixture(t, biologyPages, newMockGenerator("Bio", "A"), Options{CacheSize: 1})
	ctx := context.Background()

	first, err := f.svc.Ingest(ctx, source("one.pdf"))
	require.NoError(t, err)
	second, err := f.svc.Ingest(ctx, source("two.pdf"))
	require.NoError(t, err)

	assert.False(t, f.svc.Ingested(first))
	assert.True(t, f.svc.Ingested(second))
}

func TestBuildContext(t *testing.T) {
	got := BuildContext([]models.RetrievalResult{
		{Text: "first", Metadata: models.SectionMetadata{SectionID: 4}},
		{Text: "second", Metadata: models.SectionMetadata{SectionID: 1}},
	})
	assert.Equal(t, "first Page number: 4\nsecond Page number: 1\n", got)
	assert.Empty(t, BuildContext(nil))
}
