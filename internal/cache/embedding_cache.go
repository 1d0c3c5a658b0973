package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	redisv9 "github.com/redis/go-redis/v9"
)

// EmbeddingCache keeps embedding vectors in Redis, keyed by model and a hash of the text.
type EmbeddingCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewEmbeddingCache(client *redisv9.Client, ttl time.Duration) *EmbeddingCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &EmbeddingCache{client: client, ttl: ttl}
}

func (c *EmbeddingCache) Get(ctx context.Context, model, text string) ([]float32, bool, error) {
	raw, err := c.client.Get(ctx, embeddingKey(model, text)).Bytes()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get embedding failed: %w", err)
	}

	var entry embeddingEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached embedding failed: %w", err)
	}
	// hash collision guard
	if entry.Text != text {
		return nil, false, nil
	}
	return entry.Vector, true, nil
}

func (c *EmbeddingCache) Set(ctx context.Context, model, text string, vec []float32) error {
	payload, err := json.Marshal(embeddingEntry{Text: text, Vector: vec})
	if err != nil {
		return fmt.Errorf("marshal embedding cache failed: %w", err)
	}
	if err := c.client.Set(ctx, embeddingKey(model, text), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set embedding failed: %w", err)
	}
	return nil
}

type embeddingEntry struct {
	Text   string    `json:"t"`
	Vector []float32 `json:"v"`
}

func embeddingKey(model, text string) string {
	return "embedding:" + model + ":" + strconv.FormatUint(xxhash.Sum64String(text), 16)
}
