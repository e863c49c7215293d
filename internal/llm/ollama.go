package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Ollama defaults.
const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "llama3.2"
	DefaultTimeout     = 300 * time.Second
)

// OllamaClient calls /api/generate with the schema as the structured output
// format.
type OllamaClient struct {
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
}

// NewOllamaClient creates a client. Empty arguments take the defaults.
func NewOllamaClient(baseURL, model string, temperature float64) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaClient{
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		client:      &http.Client{Timeout: DefaultTimeout},
	}
}

// ModelName implements Completer.
func (o *OllamaClient) ModelName() string { return o.model }

// Complete implements Completer. The raw response text is returned.
func (o *OllamaClient) Complete(ctx context.Context, prompt string, schema Schema) (any, error) {
	reqBody := map[string]interface{}{
		"model":  o.model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]interface{}{
			"temperature": o.temperature,
		},
	}
	if schema != nil {
		reqBody["format"] = schema
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama generate failed: %s: %s", resp.Status, bytes.TrimSpace(body))
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	return result.Response, nil
}
