package models

import "time"

// ChatRequest names an ingested document and, for chat, a free-form
// question about it. Accepted as JSON or form data.
type ChatRequest struct {
	CollectionName string `json:"collection_name"`
	Question       string `json:"question"`
}

type IngestResponse struct {
	CollectionName string `json:"collection_name"`
	Status         string `json:"status"`
}

// ChatResponse is the answer plus the sections it was grounded on.
type ChatResponse struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Question    string            `json:"question"`
	Answer      string            `json:"answer"`
	Documents   []RetrievalResult `json:"documents"`
}

// NewChatResponse flattens a ChatAnswer for the wire.
func NewChatResponse(a *ChatAnswer) *ChatResponse {
	docs := a.SupportingSections
	if docs == nil {
		docs = []RetrievalResult{}
	}
	return &ChatResponse{
		GeneratedAt: a.GeneratedAt,
		Question:    a.QuestionText,
		Answer:      a.AnswerText,
		Documents:   docs,
	}
}

type StatusResponse struct {
	Status string `json:"status"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend,omitempty"`
}
