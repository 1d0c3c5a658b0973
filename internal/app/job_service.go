package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"docrag/internal/model"
)

// JobService runs ingestion in the background: Submit queues a job, a worker
// calls Process, and clients poll Status.
type JobService struct {
	ingest    *IngestService
	publisher JobPublisher
	states    JobStateStore
}

func NewJobService(ingest *IngestService, publisher JobPublisher, states JobStateStore) *JobService {
	return &JobService{ingest: ingest, publisher: publisher, states: states}
}

func (s *JobService) Enabled() bool {
	return s != nil && s.publisher != nil && s.states != nil
}

func (s *JobService) Submit(ctx context.Context, filename, text string) (*model.IngestJobState, error) {
	if !s.Enabled() {
		return nil, ErrAsyncDisabled
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, ErrInvalidInput
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	job := model.IngestJob{
		ID:        uuid.NewString(),
		Filename:  filename,
		Text:      text,
		CreatedAt: time.Now(),
	}
	state := model.IngestJobState{ID: job.ID, Filename: filename, Status: model.IngestJobQueued, UpdatedAt: job.CreatedAt}
	if err := s.states.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save job state failed: %w", err)
	}

	if err := s.publisher.Publish(ctx, job); err != nil {
		state.Status = model.IngestJobFailed
		state.Error = err.Error()
		state.UpdatedAt = time.Now()
		if saveErr := s.states.Save(ctx, state); saveErr != nil {
			log.Printf("save failed job state %s failed: %v", job.ID, saveErr)
		}
		return nil, fmt.Errorf("publish ingest job failed: %w", err)
	}
	return &state, nil
}

// Process runs one queued job and records its outcome. The returned error is
// only non-nil when the job itself could not be run or recorded.
func (s *JobService) Process(ctx context.Context, job model.IngestJob) error {
	state := model.IngestJobState{ID: job.ID, Filename: job.Filename, Status: model.IngestJobRunning}
	if err := s.states.Save(ctx, state); err != nil {
		log.Printf("save running job state %s failed: %v", job.ID, err)
	}

	result, err := s.ingest.Ingest(ctx, job.Filename, job.Text)
	if result != nil {
		state.Chunks = result.Chunks
		state.Total = result.Total
		state.Failed = result.Failed()
	}
	if err != nil {
		state.Status = model.IngestJobFailed
		state.Error = err.Error()
	} else {
		state.Status = model.IngestJobDone
	}

	state.UpdatedAt = time.Now()
	if saveErr := s.states.Save(ctx, state); saveErr != nil {
		return fmt.Errorf("save job state failed: %w", saveErr)
	}
	return nil
}

func (s *JobService) Status(ctx context.Context, id string) (*model.IngestJobState, error) {
	if !s.Enabled() {
		return nil, ErrAsyncDisabled
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidInput
	}
	return s.states.Get(ctx, id)
}
