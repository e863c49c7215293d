package models

import (
	"fmt"
	"strings"
	"time"
)

// Generation modes reported in envelope metadata.
const (
	ModeDirect   = "direct"
	ModeGrounded = "RAG Pipeline"
)

// TopicOutline is the title and main topics extracted from a document.
type TopicOutline struct {
	Title       string    `json:"title"`
	TopicCount  int       `json:"topic_count"`
	GeneratedAt time.Time `json:"generated_at"`
	Topics      []string  `json:"topics"`
}

// Validate checks the outline returned by the model.
func (o *TopicOutline) Validate() error {
	if strings.TrimSpace(o.Title) == "" {
		return fmt.Errorf("title is required")
	}
	for i, t := range o.Topics {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("topic %d is empty", i)
		}
	}
	return nil
}

// Question is one generated multiple-choice (or true/false) question.
type Question struct {
	ID            string            `json:"id"`
	Topic         string            `json:"topic"`
	Kind          string            `json:"kind"`
	PromptText    string            `json:"prompt_text"`
	Options       []string          `json:"options"`
	CorrectOption string            `json:"correct_option"`
	PageNumber    int               `json:"page_number,omitempty"`
	Explanation   string            `json:"explanation"`
	SourceSection []RetrievalResult `json:"source_section,omitempty"`
}

// Validate checks the fields the model is required to fill in.
func (q *Question) Validate() error {
	if strings.TrimSpace(q.PromptText) == "" {
		return fmt.Errorf("prompt_text is required")
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("at least two options are required, got %d", len(q.Options))
	}
	if strings.TrimSpace(q.CorrectOption) == "" {
		return fmt.Errorf("correct_option is required")
	}
	return nil
}

// QuestionBatch is the shape the model returns for one topic.
type QuestionBatch struct {
	Questions []Question `json:"questions"`
}

// Validate checks every question in the batch.
func (b *QuestionBatch) Validate() error {
	for i := range b.Questions {
		if err := b.Questions[i].Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}

// Metadata is the computed block describing how an envelope was produced.
type Metadata struct {
	GeneratedAt        time.Time `json:"generated_at"`
	TotalQuestionCount int       `json:"total_question_count"`
	Title              string    `json:"title"`
	GenerationMode     string    `json:"generation_mode"`
	ModelID            string    `json:"model_id"`
	EmbeddingModelID   string    `json:"embedding_model_id"`
	IndexBackendID     string    `json:"index_backend_id"`
}

// Envelope is the result of a question-generation pass.
type Envelope struct {
	Metadata  Metadata   `json:"metadata"`
	Questions []Question `json:"questions"`
}

// ChatAnswer is a direct answer to a user question.
type ChatAnswer struct {
	GeneratedAt        time.Time         `json:"generated_at"`
	QuestionText       string            `json:"question_text"`
	AnswerText         string            `json:"answer_text"`
	SupportingSections []RetrievalResult `json:"supporting_sections"`
}

// Validate checks the answer returned by the model.
func (a *ChatAnswer) Validate() error {
	if strings.TrimSpace(a.AnswerText) == "" {
		return fmt.Errorf("answer_text is required")
	}
	return nil
}
