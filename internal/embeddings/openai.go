package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// OpenAI-compatible defaults.
const (
	DefaultOpenAIURL   = "https://api.openai.com/v1"
	DefaultOpenAIModel = "text-embedding-3-small"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint, retrying
// on 429 and 5xx responses.
type OpenAIEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	maxRetries int
	backoff    func(attempt int) time.Duration
}

// NewOpenAIEmbedder creates an embedder for the given endpoint.
func NewOpenAIEmbedder(baseURL, apiKey, model string) *OpenAIEmbedder {
	if baseURL == "" {
		baseURL = DefaultOpenAIURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIEmbedder{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: 5,
		backoff:    retryDelay,
	}
}

// ModelName implements Embedder.
func (c *OpenAIEmbedder) ModelName() string { return c.model }

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Embed implements Embedder.
func (c *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	data, err := json.Marshal(map[string]string{"model": c.model, "input": text})
	if err != nil {
		return nil, err
	}

	url := c.baseURL + "/embeddings"
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if attempt < c.maxRetries && ctx.Err() == nil {
				if err := sleep(ctx, c.backoff(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			if attempt >= c.maxRetries {
				return nil, fmt.Errorf("openai embeddings failed: %s", resp.Status)
			}
			wait := c.backoff(attempt)
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				wait = time.Duration(secs) * time.Second
			}
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, err
		}

		var parsed openAIEmbeddingResponse
		if err := json.Unmarshal(payload, &parsed); err != nil {
			return nil, fmt.Errorf("openai embeddings: decode response: %w", err)
		}
		if parsed.Error != nil {
			return nil, fmt.Errorf("openai embeddings: %s", parsed.Error.Message)
		}
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("openai embeddings failed: %s", resp.Status)
		}
		if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
			return nil, fmt.Errorf("openai embeddings: no embedding returned")
		}
		return parsed.Data[0].Embedding, nil
	}
}

func retryDelay(attempt int) time.Duration {
	d := 500 * time.Millisecond << attempt
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
