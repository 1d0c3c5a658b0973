package model

import "time"

type IngestJobStatus string

const (
	IngestJobQueued  IngestJobStatus = "queued"
	IngestJobRunning IngestJobStatus = "running"
	IngestJobDone    IngestJobStatus = "done"
	IngestJobFailed  IngestJobStatus = "failed"
)

// IngestJob is the queue payload for asynchronous ingestion.
type IngestJob struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// IngestJobState is what clients poll while a job is processed.
type IngestJobState struct {
	ID        string          `json:"id"`
	Filename  string          `json:"filename"`
	Status    IngestJobStatus `json:"status"`
	Chunks    int             `json:"chunks"`
	Total     int             `json:"total"`
	Failed    int             `json:"failed"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}
