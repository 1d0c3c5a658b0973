package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"docrag/internal/model"
)

var ErrJobNotFound = errors.New("ingest job not found")

// JobStore tracks asynchronous ingestion jobs in Redis.
type JobStore struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewJobStore(client *redisv9.Client, ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JobStore{client: client, ttl: ttl}
}

func (s *JobStore) Save(ctx context.Context, state model.IngestJobState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal job state failed: %w", err)
	}
	if err := s.client.Set(ctx, jobKey(state.ID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set job state failed: %w", err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*model.IngestJobState, error) {
	raw, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if err == redisv9.Nil {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get job state failed: %w", err)
	}
	var state model.IngestJobState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("unmarshal job state failed: %w", err)
	}
	return &state, nil
}

func jobKey(id string) string {
	return "ingest:job:" + id
}
