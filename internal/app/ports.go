package app

import (
	"context"

	"docrag/internal/ai"
	"docrag/internal/model"
)

// Embedder turns text into a vector. Implemented by the clients in internal/ai.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DocumentStore persists chunks and answers similarity queries.
type DocumentStore interface {
	InsertChunk(ctx context.Context, chunk *model.Chunk) error
	Search(ctx context.Context, query []float32, threshold float64, count int) ([]model.ChunkMatch, error)
}

// ChatModel produces answers from a prompt.
type ChatModel interface {
	Configured() bool
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
	Stream(ctx context.Context, messages []ai.ChatMessage, onChunk func(chunk string) error) (string, error)
}

type JobPublisher interface {
	Publish(ctx context.Context, job model.IngestJob) error
}

type JobStateStore interface {
	Save(ctx context.Context, state model.IngestJobState) error
	Get(ctx context.Context, id string) (*model.IngestJobState, error)
}
