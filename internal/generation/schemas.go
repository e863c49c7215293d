package generation

import "pdf-quiz-rag/internal/llm"

var outlineSchema = llm.Schema{
	"type": "object",
	"properties": map[string]any{
		"title": map[string]any{"type": "string"},
		"topics": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required": []string{"title", "topics"},
}

var questionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"topic":          map[string]any{"type": "string"},
		"kind":           map[string]any{"type": "string", "enum": []string{"multiple_choice", "true_false"}},
		"prompt_text":    map[string]any{"type": "string"},
		"options":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"correct_option": map[string]any{"type": "string"},
		"page_number":    map[string]any{"type": "integer"},
		"explanation":    map[string]any{"type": "string"},
	},
	"required": []string{"kind", "prompt_text", "options", "correct_option", "explanation"},
}

var questionBatchSchema = llm.Schema{
	"type": "object",
	"properties": map[string]any{
		"questions": map[string]any{
			"type":  "array",
			"items": questionSchema,
		},
	},
	"required": []string{"questions"},
}

var chatSchema = llm.Schema{
	"type": "object",
	"properties": map[string]any{
		"question_text": map[string]any{"type": "string"},
		"answer_text":   map[string]any{"type": "string"},
	},
	"required": []string{"answer_text"},
}
