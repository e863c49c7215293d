// Package generation turns document text into topic outlines, questions and
// answers by prompting a language model for schema-shaped JSON.
package generation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "pdf-quiz-rag/internal/errors"
	"pdf-quiz-rag/internal/llm"
	"pdf-quiz-rag/internal/logger"
	"pdf-quiz-rag/internal/models"
)

// Config holds everything an Adapter needs. To change any of it, build a
// new Adapter.
type Config struct {
	Completer llm.Completer
	Prompts   PromptStore
}

// Adapter is safe for concurrent use.
type Adapter struct {
	completer llm.Completer
	templates map[string]string
	now       func() time.Time
}

// NewAdapter loads every template up front. A missing template is a
// configuration error.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.Completer == nil {
		return nil, apperrors.ErrConfiguration.WithMessage("Generation requires a language model")
	}
	prompts := cfg.Prompts
	if prompts == nil {
		prompts = NewFilePromptStore("")
	}

	templates := make(map[string]string, 3)
	for _, name := range []string{PromptOutline, PromptQuestions, PromptChat} {
		t, err := prompts.Load(name)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(t) == "" {
			return nil, apperrors.ErrConfiguration.WithCause(fmt.Errorf("prompt %q is empty", name))
		}
		templates[name] = t
	}

	return &Adapter{completer: cfg.Completer, templates: templates, now: time.Now}, nil
}

// ModelName reports the model behind the adapter.
func (a *Adapter) ModelName() string { return a.completer.ModelName() }

func (a *Adapter) render(name string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(a.templates[name])
}

// ExtractOutline asks for the document title and main topics.
func (a *Adapter) ExtractOutline(ctx context.Context, fullText string) (*models.TopicOutline, error) {
	prompt := a.render(PromptOutline, map[string]string{"context": fullText})

	raw, err := a.completer.Complete(ctx, prompt, outlineSchema)
	if err != nil {
		return nil, fmt.Errorf("extract outline: %w", err)
	}
	outline, err := models.Coerce[models.TopicOutline](raw)
	if err != nil {
		return nil, err
	}

	out := *outline
	out.Topics = make([]string, 0, len(outline.Topics))
	for _, t := range outline.Topics {
		if t = strings.TrimSpace(t); t != "" {
			out.Topics = append(out.Topics, t)
		}
	}
	out.TopicCount = len(out.Topics)
	out.GeneratedAt = a.now().UTC()

	logger.Debug("Outline %q with %d topics", out.Title, out.TopicCount)
	return &out, nil
}

// GenerateQuestions asks for count questions about topic from contextText.
// count is a target; fewer or more may come back.
func (a *Adapter) GenerateQuestions(ctx context.Context, contextText, topic string, count int) ([]models.Question, error) {
	prompt := a.render(PromptQuestions, map[string]string{
		"context": contextText,
		"topic":   topic,
		"n":       strconv.Itoa(count),
	})

	raw, err := a.completer.Complete(ctx, prompt, questionBatchSchema)
	if err != nil {
		return nil, fmt.Errorf("generate questions for %q: %w", topic, err)
	}
	batch, err := models.Coerce[models.QuestionBatch](raw)
	if err != nil {
		return nil, err
	}

	questions := make([]models.Question, len(batch.Questions))
	for i, q := range batch.Questions {
		q.ID = uuid.NewString()
		// the requested topic is the grouping key, whatever the model wrote
		q.Topic = topic
		q.SourceSection = nil
		questions[i] = q
	}

	if len(questions) != count {
		logger.Debug("Asked for %d questions on %q, got %d", count, topic, len(questions))
	}
	return questions, nil
}

// AnswerQuestion answers question from contextText. Supporting sections are
// left for the caller to attach.
func (a *Adapter) AnswerQuestion(ctx context.Context, contextText, question string) (*models.ChatAnswer, error) {
	prompt := a.render(PromptChat, map[string]string{
		"context":  contextText,
		"question": question,
	})

	raw, err := a.completer.Complete(ctx, prompt, chatSchema)
	if err != nil {
		return nil, fmt.Errorf("answer question: %w", err)
	}
	answer, err := models.Coerce[models.ChatAnswer](raw)
	if err != nil {
		return nil, err
	}

	out := *answer
	out.QuestionText = question
	out.GeneratedAt = a.now().UTC()
	out.SupportingSections = nil
	return &out, nil
}
