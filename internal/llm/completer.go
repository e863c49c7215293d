// Package llm talks to language-model backends that can return JSON.
package llm

import "context"

// Schema is a JSON-schema document describing the expected output.
type Schema map[string]any

// Completer sends a prompt to a model. The result is either a value already
// in the target shape or raw text that should hold JSON matching schema.
type Completer interface {
	Complete(ctx context.Context, prompt string, schema Schema) (any, error)
	ModelName() string
}
