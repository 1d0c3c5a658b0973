package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docrag/internal/ai"
	"docrag/internal/cache"
	"docrag/internal/pkg/pdfextract"
	"docrag/internal/repository"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrEmptyDocument        = errors.New("document has no content")
	ErrNoTextExtracted      = errors.New("no text could be extracted from document")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrEmptyQuery           = errors.New("query is empty")
	ErrLLMConfig            = errors.New("llm is not configured")
	ErrAsyncDisabled        = errors.New("async ingestion is not enabled")

	ErrExtraction           = pdfextract.ErrExtraction
	ErrEmbeddingUnavailable = ai.ErrEmbeddingUnavailable
	ErrEmbeddingMalformed   = ai.ErrEmbeddingMalformed
	ErrPersistence          = repository.ErrPersistence
	ErrJobNotFound          = cache.ErrJobNotFound
)

// embeddingError keeps malformed-response errors as they are and reports every
// other failure, timeouts included, as the service being unavailable.
func embeddingError(err error) error {
	if errors.Is(err, ErrEmbeddingMalformed) || errors.Is(err, ErrEmbeddingUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
}

func persistenceError(err error) error {
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

// callContext bounds a single outbound call. A zero timeout only inherits ctx.
func callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
