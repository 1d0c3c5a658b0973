package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"docrag/internal/model"
)

// PGVectorRepository keeps chunks in a pgvector column and delegates ranking
// to the match_documents SQL function.
type PGVectorRepository struct {
	pool       *pgxpool.Pool
	dimensions int
}

func NewPGVectorRepository(pool *pgxpool.Pool, dimensions int) *PGVectorRepository {
	return &PGVectorRepository{pool: pool, dimensions: dimensions}
}

// Migrate installs the extension, the documents table and match_documents.
func (r *PGVectorRepository) Migrate(ctx context.Context) error {
	if r.dimensions <= 0 {
		return fmt.Errorf("pgvector store requires embedding dimensions")
	}
	for _, stmt := range pgvectorSchema(r.dimensions) {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate pgvector schema failed: %w", err)
		}
	}
	return nil
}

func (r *PGVectorRepository) InsertChunk(ctx context.Context, chunk *model.Chunk) error {
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now()
	}
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO documents (filename, content, chunk_index, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		chunk.Filename, chunk.Content, chunk.ChunkIndex, pgvector.NewVector(chunk.EmbeddingVector()), chunk.CreatedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("%w: insert chunk failed: %w", ErrPersistence, err)
	}
	chunk.ID = uint(id)
	return nil
}

func (r *PGVectorRepository) Search(ctx context.Context, query []float32, threshold float64, count int) ([]model.ChunkMatch, error) {
	if err := validateSearch(query, threshold, count); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, filename, content, chunk_index, similarity FROM match_documents($1, $2, $3)`,
		pgvector.NewVector(query), threshold, count,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: match documents failed: %w", ErrPersistence, err)
	}
	defer rows.Close()

	matches := make([]model.ChunkMatch, 0, count)
	for rows.Next() {
		var (
			m  model.ChunkMatch
			id int64
		)
		if err := rows.Scan(&id, &m.Filename, &m.Content, &m.ChunkIndex, &m.Similarity); err != nil {
			return nil, fmt.Errorf("%w: scan match failed: %w", ErrPersistence, err)
		}
		m.ID = uint(id)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read matches failed: %w", ErrPersistence, err)
	}
	return matches, nil
}

func (r *PGVectorRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func pgvectorSchema(dimensions int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
			id bigserial PRIMARY KEY,
			filename text NOT NULL,
			content text NOT NULL,
			chunk_index integer NOT NULL CHECK (chunk_index >= 0),
			embedding vector(%d) NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, dimensions),
		`CREATE INDEX IF NOT EXISTS documents_filename_idx ON documents (filename)`,
		fmt.Sprintf(`CREATE OR REPLACE FUNCTION match_documents(
			query_embedding vector(%d),
			match_threshold float,
			match_count int
		)
		RETURNS TABLE (id bigint, filename text, content text, chunk_index integer, similarity float)
		LANGUAGE sql STABLE
		AS $$
			SELECT d.id, d.filename, d.content, d.chunk_index,
				1 - (d.embedding <=> query_embedding) AS similarity
			FROM documents d
			WHERE 1 - (d.embedding <=> query_embedding) >= match_threshold
			ORDER BY d.embedding <=> query_embedding ASC, d.id ASC
			LIMIT match_count
		$$`, dimensions),
	}
}
