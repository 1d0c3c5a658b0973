package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"docrag/internal/pkg/retry"
)

// RetryingEmbedder retries calls that failed with ErrEmbeddingUnavailable.
// Malformed responses are returned immediately.
type RetryingEmbedder struct {
	next       Embedder
	maxRetries int
	retryDelay time.Duration
}

func NewRetryingEmbedder(next Embedder, maxRetries int, retryDelay time.Duration) *RetryingEmbedder {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryingEmbedder{next: next, maxRetries: maxRetries, retryDelay: retryDelay}
}

func (e *RetryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			if err := retry.Sleep(ctx, retry.Backoff(e.retryDelay, attempt)); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
			}
		}
		vec, err := e.next.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		if !errors.Is(err, ErrEmbeddingUnavailable) {
			return nil, err
		}
		lastErr = err
	}
	if e.maxRetries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", e.maxRetries+1, lastErr)
}

// EmbeddingCache stores vectors keyed by model and text.
type EmbeddingCache interface {
	Get(ctx context.Context, model, text string) ([]float32, bool, error)
	Set(ctx context.Context, model, text string, vec []float32) error
}

// CachedEmbedder serves repeated texts from cache. Cache errors never fail a call.
type CachedEmbedder struct {
	next  Embedder
	cache EmbeddingCache
	model string
}

func NewCachedEmbedder(next Embedder, cache EmbeddingCache, model string) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: cache, model: model}
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, hit, err := e.cache.Get(ctx, e.model, text)
	if err != nil {
		log.Printf("embedding cache get failed: %v", err)
	}
	if hit && len(vec) > 0 {
		return vec, nil
	}

	vec, err = e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := e.cache.Set(ctx, e.model, text, vec); err != nil {
		log.Printf("embedding cache set failed: %v", err)
	}
	return vec, nil
}
