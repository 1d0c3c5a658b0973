package app

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"docrag/internal/ai"
	"docrag/internal/model"
	"docrag/internal/repository"
)

// keywordEmbedder maps text onto a tiny feature space so tests can reason
// about similarity: [mentions mammals, mentions the sky, bias].
type keywordEmbedder struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]error
	hook   func(call int)
}

func (e *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, text)
	call := len(e.calls)
	hook := e.hook
	e.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for substr, err := range e.failOn {
		if strings.Contains(text, substr) {
			return nil, err
		}
	}

	lower := strings.ToLower(text)
	vec := []float32{0, 0, 0.1}
	if strings.Contains(lower, "mammal") {
		vec[0] = 1
	}
	if strings.Contains(lower, "sky") || strings.Contains(lower, "blue") {
		vec[1] = 1
	}
	return vec, nil
}

func (e *keywordEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// memStore keeps chunks in memory. Insert ignores ctx so a chunk whose
// embedding already succeeded is always persisted.
type memStore struct {
	mu        sync.Mutex
	chunks    []model.Chunk
	failOn    map[string]error
	searchErr error
	lastCount int
	lastThr   float64
}

func (s *memStore) InsertChunk(_ context.Context, chunk *model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for substr, err := range s.failOn {
		if strings.Contains(chunk.Content, substr) {
			return err
		}
	}
	chunk.ID = uint(len(s.chunks) + 1)
	s.chunks = append(s.chunks, *chunk)
	return nil
}

func (s *memStore) Search(_ context.Context, query []float32, threshold float64, count int) ([]model.ChunkMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCount = count
	s.lastThr = threshold
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	matches := []model.ChunkMatch{}
	for _, c := range s.chunks {
		score := repository.CosineSimilarity(query, c.EmbeddingVector())
		if score >= threshold {
			matches = append(matches, model.ChunkMatch{ID: c.ID, Filename: c.Filename, Content: c.Content, ChunkIndex: c.ChunkIndex, Similarity: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > count {
		matches = matches[:count]
	}
	return matches, nil
}

func (s *memStore) indexes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.chunks))
	for _, c := range s.chunks {
		out = append(out, c.ChunkIndex)
	}
	sort.Ints(out)
	return out
}

type fakeChat struct {
	configured bool
	answer     string
	err        error
	messages   []ai.ChatMessage
	calls      int
}

func (c *fakeChat) Configured() bool { return c.configured }

func (c *fakeChat) Complete(_ context.Context, messages []ai.ChatMessage) (string, error) {
	c.calls++
	c.messages = messages
	if c.err != nil {
		return "", c.err
	}
	return c.answer, nil
}

func (c *fakeChat) Stream(_ context.Context, messages []ai.ChatMessage, onChunk func(string) error) (string, error) {
	c.calls++
	c.messages = messages
	if c.err != nil {
		return "", c.err
	}
	for _, word := range strings.SplitAfter(c.answer, " ") {
		if err := onChunk(word); err != nil {
			return "", err
		}
	}
	return c.answer, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	jobs []model.IngestJob
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, job model.IngestJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, job)
	return nil
}

var errBoom = errors.New("boom")
