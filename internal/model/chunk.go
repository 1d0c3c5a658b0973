package model

import (
	"encoding/json"
	"time"
)

// Chunk is one persisted segment of an ingested document.
// Embedding is stored as JSON array of float32 for portability across SQL drivers.
type Chunk struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Filename   string    `gorm:"size:512;not null;index" json:"filename"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	ChunkIndex int       `gorm:"not null" json:"chunk_index"`
	Embedding  string    `gorm:"type:longtext;not null" json:"-"` // JSON array of float32
	CreatedAt  time.Time `json:"created_at"`
}

// TableName keeps the table name shared with the postgres schema.
func (Chunk) TableName() string {
	return "documents"
}

// EmbeddingVector returns the parsed embedding slice; empty on parse error.
func (c *Chunk) EmbeddingVector() []float32 {
	if c.Embedding == "" {
		return nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(c.Embedding), &v); err != nil {
		return nil
	}
	return v
}

// SetEmbedding stores the embedding as JSON.
func (c *Chunk) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}

// ChunkMatch is a chunk returned by similarity search together with its score.
type ChunkMatch struct {
	ID         uint    `json:"id"`
	Filename   string  `json:"filename"`
	Content    string  `json:"content"`
	ChunkIndex int     `json:"chunk_index"`
	Similarity float64 `json:"similarity"`
}
