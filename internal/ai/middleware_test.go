package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type scriptedEmbedder struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (s *scriptedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestRetryingEmbedder_RetriesUnavailable(t *testing.T) {
	inner := &scriptedEmbedder{errs: []error{
		fmt.Errorf("%w: first", ErrEmbeddingUnavailable),
		fmt.Errorf("%w: second", ErrEmbeddingUnavailable),
	}}
	e := NewRetryingEmbedder(inner, 3, time.Millisecond)

	vec, err := e.Embed(context.Background(), "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec[0] != 3 || inner.calls != 3 {
		t.Fatalf("expected success on third call, got vec=%v calls=%d", vec, inner.calls)
	}
}

func TestRetryingEmbedder_DoesNotRetryMalformed(t *testing.T) {
	inner := &scriptedEmbedder{errs: []error{fmt.Errorf("%w: bad", ErrEmbeddingMalformed)}}
	e := NewRetryingEmbedder(inner, 3, time.Millisecond)

	if _, err := e.Embed(context.Background(), "abc"); !errors.Is(err, ErrEmbeddingMalformed) {
		t.Fatalf("expected ErrEmbeddingMalformed, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected a single call, got %d", inner.calls)
	}
}

func TestRetryingEmbedder_GivesUp(t *testing.T) {
	unavailable := fmt.Errorf("%w: down", ErrEmbeddingUnavailable)
	inner := &scriptedEmbedder{errs: []error{unavailable, unavailable, unavailable}}
	e := NewRetryingEmbedder(inner, 2, time.Millisecond)

	if _, err := e.Embed(context.Background(), "abc"); !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", inner.calls)
	}
}

func TestRetryingEmbedder_StopsOnCancel(t *testing.T) {
	unavailable := fmt.Errorf("%w: down", ErrEmbeddingUnavailable)
	inner := &scriptedEmbedder{errs: []error{unavailable, unavailable}}
	e := NewRetryingEmbedder(inner, 5, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := e.Embed(ctx, "abc"); !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected no retry after cancel, got %d calls", inner.calls)
	}
}

type mapCache struct {
	data    map[string][]float32
	failGet bool
	failSet bool
}

func (m *mapCache) Get(ctx context.Context, model, text string) ([]float32, bool, error) {
	if m.failGet {
		return nil, false, errors.New("cache down")
	}
	v, ok := m.data[model+"|"+text]
	return v, ok, nil
}

func (m *mapCache) Set(ctx context.Context, model, text string, vec []float32) error {
	if m.failSet {
		return errors.New("cache down")
	}
	m.data[model+"|"+text] = vec
	return nil
}

func TestCachedEmbedder(t *testing.T) {
	inner := &scriptedEmbedder{}
	cache := &mapCache{data: map[string][]float32{}}
	e := NewCachedEmbedder(inner, cache, "m")

	for i := 0; i < 3; i++ {
		if _, err := e.Embed(context.Background(), "same text"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", inner.calls)
	}
	if _, ok := cache.data["m|same text"]; !ok {
		t.Fatal("expected vector to be cached under model and text")
	}
}

func TestCachedEmbedder_CacheFailuresIgnored(t *testing.T) {
	inner := &scriptedEmbedder{}
	e := NewCachedEmbedder(inner, &mapCache{failGet: true, failSet: true}, "m")

	if _, err := e.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("cache errors must not fail embedding: %v", err)
	}
}

func TestCachedEmbedder_DoesNotCacheErrors(t *testing.T) {
	inner := &scriptedEmbedder{errs: []error{fmt.Errorf("%w: down", ErrEmbeddingUnavailable)}}
	cache := &mapCache{data: map[string][]float32{}}
	e := NewCachedEmbedder(inner, cache, "m")

	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected upstream error")
	}
	if len(cache.data) != 0 {
		t.Fatal("failed calls must not be cached")
	}
}
