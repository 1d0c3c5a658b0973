package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"docrag/internal/model"
	"docrag/internal/pkg/chunker"
	"docrag/internal/pkg/pdfextract"
)

const (
	StageEmbed = "embed"
	StageStore = "store"
)

// TextExtractor pulls plain text out of an uploaded document.
type TextExtractor func(r io.Reader) (string, error)

type IngestOptions struct {
	MaxChunkSize int
	Workers      int
	EmbedTimeout time.Duration
	StoreTimeout time.Duration
	Extract      TextExtractor
}

// ChunkFailure records a chunk that was skipped.
type ChunkFailure struct {
	Index int
	Stage string
	Err   error
}

// IngestResult is the outcome of one ingestion run. Chunks counts persisted
// chunks; Total counts chunks produced by the chunker.
type IngestResult struct {
	Filename string
	Chunks   int
	Total    int
	Failures []ChunkFailure
}

func (r *IngestResult) Failed() int {
	return len(r.Failures)
}

type IngestService struct {
	embedder Embedder
	store    DocumentStore
	opts     IngestOptions
}

func NewIngestService(embedder Embedder, store DocumentStore, opts IngestOptions) *IngestService {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = chunker.DefaultMaxChunkSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Extract == nil {
		opts.Extract = pdfextract.ExtractText
	}
	return &IngestService{embedder: embedder, store: store, opts: opts}
}

// Extract returns the document text, failing with ErrExtraction or
// ErrNoTextExtracted.
func (s *IngestService) Extract(r io.Reader) (string, error) {
	text, err := s.opts.Extract(r)
	if err != nil {
		if errors.Is(err, ErrExtraction) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoTextExtracted
	}
	return text, nil
}

func (s *IngestService) IngestPDF(ctx context.Context, filename string, r io.Reader) (*IngestResult, error) {
	text, err := s.Extract(r)
	if err != nil {
		return nil, err
	}
	return s.Ingest(ctx, filename, text)
}

// Ingest chunks rawText, embeds every chunk and stores it with its position.
// Chunk-level failures are collected in the result and never fail the call.
// On cancellation no further chunks are started and the partial result is
// returned together with the context error.
func (s *IngestService) Ingest(ctx context.Context, filename, rawText string) (*IngestResult, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, ErrInvalidInput
	}
	text := strings.TrimSpace(rawText)
	if text == "" {
		return nil, ErrEmptyDocument
	}
	pieces := chunker.Split(text, s.opts.MaxChunkSize)
	if len(pieces) == 0 {
		return nil, ErrEmptyDocument
	}

	outcomes := make([]*ChunkFailure, len(pieces))
	started := make([]bool, len(pieces))

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, content := range pieces {
		if ctx.Err() != nil {
			break
		}
		started[i] = true
		g.Go(func() error {
			outcomes[i] = s.processChunk(ctx, filename, i, content)
			return nil
		})
	}
	_ = g.Wait()

	result := &IngestResult{Filename: filename, Total: len(pieces)}
	for i := range pieces {
		if !started[i] {
			continue
		}
		if f := outcomes[i]; f != nil {
			result.Failures = append(result.Failures, *f)
			continue
		}
		result.Chunks++
	}

	if err := ctx.Err(); err != nil {
		log.Printf("ingest %s interrupted after %d/%d chunks: %v", filename, result.Chunks, result.Total, err)
		return result, err
	}
	if result.Failed() > 0 {
		log.Printf("ingest %s stored %d/%d chunks, %d failed", filename, result.Chunks, result.Total, result.Failed())
	}
	return result, nil
}

func (s *IngestService) processChunk(ctx context.Context, filename string, index int, content string) *ChunkFailure {
	embedCtx, cancel := callContext(ctx, s.opts.EmbedTimeout)
	vec, err := s.embedder.Embed(embedCtx, content)
	cancel()
	if err != nil {
		err = embeddingError(err)
		log.Printf("ingest %s chunk %d embed failed: %v", filename, index, err)
		return &ChunkFailure{Index: index, Stage: StageEmbed, Err: err}
	}

	chunk := &model.Chunk{
		Filename:   filename,
		Content:    content,
		ChunkIndex: index,
	}
	chunk.SetEmbedding(vec)

	storeCtx, cancel := callContext(ctx, s.opts.StoreTimeout)
	err = s.store.InsertChunk(storeCtx, chunk)
	cancel()
	if err != nil {
		err = persistenceError(err)
		log.Printf("ingest %s chunk %d insert failed: %v", filename, index, err)
		return &ChunkFailure{Index: index, Stage: StageStore, Err: err}
	}
	return nil
}
