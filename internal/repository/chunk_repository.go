package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"docrag/internal/model"
)

const searchBatchSize = 500

// ChunkRepository stores chunks through gorm (MySQL or SQLite) and ranks them
// in process, since neither engine has a native vector type.
type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&model.Chunk{}); err != nil {
		return fmt.Errorf("auto migrate documents table failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) InsertChunk(ctx context.Context, chunk *model.Chunk) error {
	if err := r.db.WithContext(ctx).Create(chunk).Error; err != nil {
		return fmt.Errorf("%w: create chunk failed: %w", ErrPersistence, err)
	}
	return nil
}

// Search scans stored embeddings in primary-key batches, keeping only those at
// or above threshold.
func (r *ChunkRepository) Search(ctx context.Context, query []float32, threshold float64, count int) ([]model.ChunkMatch, error) {
	if err := validateSearch(query, threshold, count); err != nil {
		return nil, err
	}

	matches := make([]model.ChunkMatch, 0)
	var batch []model.Chunk
	err := r.db.WithContext(ctx).FindInBatches(&batch, searchBatchSize, func(tx *gorm.DB, _ int) error {
		for i := range batch {
			score := CosineSimilarity(query, batch[i].EmbeddingVector())
			if score < threshold {
				continue
			}
			matches = append(matches, model.ChunkMatch{
				ID:         batch[i].ID,
				Filename:   batch[i].Filename,
				Content:    batch[i].Content,
				ChunkIndex: batch[i].ChunkIndex,
				Similarity: score,
			})
		}
		return nil
	}).Error
	if err != nil {
		return nil, fmt.Errorf("%w: scan chunks failed: %w", ErrPersistence, err)
	}
	return rankMatches(matches, count), nil
}

func (r *ChunkRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
