package llm

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Completer with a token-bucket limiter.
type RateLimited struct {
	next    Completer
	limiter *rate.Limiter
}

// NewRateLimited returns next unchanged when rps <= 0.
func NewRateLimited(next Completer, rps float64, burst int) Completer {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// ModelName implements Completer.
func (r *RateLimited) ModelName() string { return r.next.ModelName() }

// Complete waits for a token, then delegates.
func (r *RateLimited) Complete(ctx context.Context, prompt string, schema Schema) (any, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Complete(ctx, prompt, schema)
}

// Close closes the wrapped Completer if it holds resources.
func (r *RateLimited) Close() error {
	if c, ok := r.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
