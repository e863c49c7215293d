package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient generates JSON with the Gemini API.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiClient creates a Gemini client. Call Close when done.
func NewGeminiClient(ctx context.Context, apiKey, model string, temperature float64) (*GeminiClient, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model, temperature: float32(temperature)}, nil
}

// ModelName implements Completer.
func (g *GeminiClient) ModelName() string { return g.model }

// Complete implements Completer.
func (g *GeminiClient) Complete(ctx context.Context, prompt string, schema Schema) (any, error) {
	// GenerativeModel carries per-request settings, so one is built per call.
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(g.temperature)
	if schema != nil {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = toGenaiSchema(schema)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	var parts []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				parts = append(parts, string(text))
			}
		}
		break
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("gemini generate: empty response")
	}
	return strings.Join(parts, ""), nil
}

// Close releases the underlying client.
func (g *GeminiClient) Close() error {
	return g.client.Close()
}

// toGenaiSchema converts the subset of JSON schema used by the prompts.
func toGenaiSchema(s map[string]any) *genai.Schema {
	out := &genai.Schema{}
	if d, ok := s["description"].(string); ok {
		out.Description = d
	}

	switch s["type"] {
	case "object":
		out.Type = genai.TypeObject
		if props, ok := s["properties"].(map[string]any); ok {
			out.Properties = make(map[string]*genai.Schema, len(props))
			for name, p := range props {
				if ps, ok := p.(map[string]any); ok {
					out.Properties[name] = toGenaiSchema(ps)
				}
			}
		}
		out.Required = stringSlice(s["required"])
	case "array":
		out.Type = genai.TypeArray
		if items, ok := s["items"].(map[string]any); ok {
			out.Items = toGenaiSchema(items)
		}
	case "integer":
		out.Type = genai.TypeInteger
	case "number":
		out.Type = genai.TypeNumber
	case "boolean":
		out.Type = genai.TypeBoolean
	default:
		out.Type = genai.TypeString
		out.Enum = stringSlice(s["enum"])
	}
	return out
}

func stringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, x := range vals {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
