package generation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pdf-quiz-rag/internal/errors"
	"pdf-quiz-rag/internal/llm"
	"pdf-quiz-rag/internal/models"
)

// MockCompleter records prompts and returns a canned response.
type MockCompleter struct {
	mu         sync.Mutex
	response   any
	shouldFail bool
	prompts    []string
	schemas    []llm.Schema
}

func (m *MockCompleter) Complete(_ context.Context, prompt string, schema llm.Schema) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	m.schemas = append(m.schemas, schema)
	if m.shouldFail {
		return nil, errors.New("mock completion failure")
	}
	return m.response, nil
}

func (m *MockCompleter) ModelName() string { return "mock-model" }

var testPrompts = MapPromptStore{
	PromptOutline:   "OUTLINE <{context}>",
	PromptQuestions: "QUESTIONS n={n} topic={topic} <{context}>",
	PromptChat:      "CHAT q={question} <{context}>",
}

func newTestAdapter(t *testing.T, response any) (*Adapter, *MockCompleter) {
	t.Helper()
	mock := &MockCompleter{response: response}
	a, err := NewAdapter(Config{Completer: mock, Prompts: testPrompts})
	require.NoError(t, err)
	a.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return a, mock
}

func TestExtractOutline(t *testing.T) {
	a, mock := newTestAdapter(t, "```json\n{\"title\":\"Biology 101\",\"topics\":[\" Cells \",\"Genetics\"]}\n```")

	outline, err := a.ExtractOutline(context.Background(), "full {topic} text")
	require.NoError(t, err)

	assert.Equal(t, "Biology 101", outline.Title)
	assert.Equal(t, []string{"Cells", "Genetics"}, outline.Topics)
	assert.Equal(t, 2, outline.TopicCount)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), outline.GeneratedAt)

	require.Len(t, mock.prompts, 1)
	assert.Equal(t, "OUTLINE <full {topic} text>", mock.prompts[0])
	assert.Equal(t, "object", mock.schemas[0]["type"])
}

func TestExtractOutline_TypedValue(t *testing.T) {
	a, _ := newTestAdapter(t, &models.TopicOutline{Title: "T", Topics: []string{"A"}})

	outline, err := a.ExtractOutline(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, 1, outline.TopicCount)
}

func TestExtractOutline_Errors(t *testing.T) {
	t.Run("invalid json", func(t *testing.T) {
		a, _ := newTestAdapter(t, "the book is about cells")
		_, err := a.ExtractOutline(context.Background(), "text")
		assert.ErrorIs(t, err, apperrors.ErrModelOutput)
	})

	t.Run("missing title", func(t *testing.T) {
		a, _ := newTestAdapter(t, `{"topics":["A"]}`)
		_, err := a.ExtractOutline(context.Background(), "text")
		assert.ErrorIs(t, err, apperrors.ErrModelOutput)
	})

	t.Run("unsupported type", func(t *testing.T) {
		a, _ := newTestAdapter(t, 42)
		_, err := a.ExtractOutline(context.Background(), "text")
		assert.ErrorIs(t, err, apperrors.ErrModelOutput)
	})

	t.Run("completer failure", func(t *testing.T) {
		a, mock := newTestAdapter(t, nil)
		mock.shouldFail = true
		_, err := a.ExtractOutline(context.Background(), "text")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mock completion failure")
	})
}

func TestGenerateQuestions(t *testing.T) {
	response := `{"questions":[
		{"kind":"multiple_choice","prompt_text":"What is a cell?","options":["A","B","C","D"],"correct_option":"A","page_number":2,"explanation":"p2"},
		{"topic":"Other","kind":"true_false","prompt_text":"Cells divide.","options":["True","False"],"correct_option":"True","explanation":"p3"}
	]}`
	a, mock := newTestAdapter(t, response)

	qs, err := a.GenerateQuestions(context.Background(), "ctx", "Cells", 5)
	require.NoError(t, err)
	require.Len(t, qs, 2)

	assert.Equal(t, "QUESTIONS n=5 topic=Cells <ctx>", mock.prompts[0])

	assert.Equal(t, "Cells", qs[0].Topic)
	assert.Equal(t, "Cells", qs[1].Topic)
	assert.Equal(t, 2, qs[0].PageNumber)
	assert.Nil(t, qs[0].SourceSection)

	for _, q := range qs {
		_, err := uuid.Parse(q.ID)
		assert.NoError(t, err)
	}
	assert.NotEqual(t, qs[0].ID, qs[1].ID)
}

func TestGenerateQuestions_KeepsRequestedTopic(t *testing.T) {
	a, _ := newTestAdapter(t, `{"questions":[{"topic":"Cell Division (Mitosis)","kind":"true_false","prompt_text":"Cells divide.","options":["True","False"],"correct_option":"True"}]}`)

	qs, err := a.GenerateQuestions(context.Background(), "ctx", "Mitosis", 1)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "Mitosis", qs[0].Topic)
}

func TestGenerateQuestions_FreshIDs(t *testing.T) {
	a, _ := newTestAdapter(t, `{"questions":[{"id":"fixed","kind":"true_false","prompt_text":"Q","options":["True","False"],"correct_option":"True"}]}`)

	first, err := a.GenerateQuestions(context.Background(), "ctx", "T", 1)
	require.NoError(t, err)
	second, err := a.GenerateQuestions(context.Background(), "ctx", "T", 1)
	require.NoError(t, err)

	assert.NotEqual(t, "fixed", first[0].ID)
	assert.NotEqual(t, first[0].ID, second[0].ID)
}

func TestGenerateQuestions_InvalidRecord(t *testing.T) {
	a, _ := newTestAdapter(t, `{"questions":[{"kind":"true_false","prompt_text":"","options":["True","False"],"correct_option":"True"}]}`)
	_, err := a.GenerateQuestions(context.Background(), "ctx", "T", 1)
	assert.ErrorIs(t, err, apperrors.ErrModelOutput)
}

func TestAnswerQuestion(t *testing.T) {
	a, mock := newTestAdapter(t, []byte(`{"answer_text":"Mitochondria make ATP."}`))

	ans, err := a.AnswerQuestion(context.Background(), "ctx", "What makes ATP?")
	require.NoError(t, err)

	assert.Equal(t, "CHAT q=What makes ATP? <ctx>", mock.prompts[0])
	assert.Equal(t, "What makes ATP?", ans.QuestionText)
	assert.Equal(t, "Mitochondria make ATP.", ans.AnswerText)
	assert.Empty(t, ans.SupportingSections)
	assert.False(t, ans.GeneratedAt.IsZero())
}

func TestNewAdapter_MissingTemplate(t *testing.T) {
	_, err := NewAdapter(Config{
		Completer: &MockCompleter{},
		Prompts:   MapPromptStore{PromptOutline: "x", PromptQuestions: "y"},
	})
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)

	_, err = NewAdapter(Config{})
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestFilePromptStore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chat.prompt"), []byte("custom {question}"), 0o600))

	s := NewFilePromptStore(dir)

	chat, err := s.Load(PromptChat)
	require.NoError(t, err)
	assert.Equal(t, "custom {question}", chat)

	outline, err := s.Load(PromptOutline)
	require.NoError(t, err)
	assert.Contains(t, outline, "{context}")

	questions, err := NewFilePromptStore("").Load(PromptQuestions)
	require.NoError(t, err)
	assert.Contains(t, questions, "{topic}")
	assert.Contains(t, questions, "{n}")

	_, err = s.Load("summary")
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}
