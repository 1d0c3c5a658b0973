package app

import (
	"context"
	"log"
	"strings"
	"time"

	"docrag/internal/model"
)

const (
	DefaultMatchThreshold = 0.7
	DefaultMatchCount     = 5
)

type RetrievalOptions struct {
	MatchThreshold float64
	MatchCount     int
	EmbedTimeout   time.Duration
	StoreTimeout   time.Duration
}

type RetrievalService struct {
	embedder Embedder
	store    DocumentStore
	opts     RetrievalOptions
}

func NewRetrievalService(embedder Embedder, store DocumentStore, opts RetrievalOptions) *RetrievalService {
	if opts.MatchCount <= 0 {
		opts.MatchCount = DefaultMatchCount
	}
	if opts.MatchThreshold < 0 || opts.MatchThreshold > 1 {
		opts.MatchThreshold = DefaultMatchThreshold
	}
	return &RetrievalService{embedder: embedder, store: store, opts: opts}
}

// Retrieve returns up to limit chunks whose similarity to query reaches the
// configured threshold, best match first. A failing store yields an empty
// result; the failure is only logged.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, limit int) ([]model.ChunkMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = s.opts.MatchCount
	}

	embedCtx, cancel := callContext(ctx, s.opts.EmbedTimeout)
	vec, err := s.embedder.Embed(embedCtx, query)
	cancel()
	if err != nil {
		return nil, embeddingError(err)
	}

	storeCtx, cancel := callContext(ctx, s.opts.StoreTimeout)
	defer cancel()
	matches, err := s.store.Search(storeCtx, vec, s.opts.MatchThreshold, limit)
	if err != nil {
		log.Printf("search documents failed for query %q: %v", truncateQuery(query), err)
		return []model.ChunkMatch{}, nil
	}
	if matches == nil {
		matches = []model.ChunkMatch{}
	}
	return matches, nil
}

func truncateQuery(q string) string {
	r := []rune(q)
	if len(r) <= 120 {
		return q
	}
	return string(r[:120]) + "..."
}
