package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/codepathfinder/repocontext/pkg/types"
)

// postgresSchema is applied idempotently on open. The embedding column has
// no fixed dimension so the store works with any embedding provider.
const postgresSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS repo_chunks (
    id UUID NOT NULL UNIQUE,
    repo_id TEXT NOT NULL,
    repo_full_name TEXT NOT NULL DEFAULT '',
    file_path TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    content TEXT NOT NULL,
    token_count INTEGER NOT NULL DEFAULT 0,
    embedding vector NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (repo_id, file_path, chunk_index)
);

CREATE INDEX IF NOT EXISTS idx_repo_chunks_repo ON repo_chunks(repo_id);
`

// PostgresStorage implements Storage on PostgreSQL with the pgvector extension
type PostgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage connects to dsn and ensures the schema exists
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &PostgresStorage{db: db}, nil
}

// Close closes the connection pool
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// UpsertChunks writes all chunks in one transaction
func (s *PostgresStorage) UpsertChunks(ctx context.Context, chunks []*types.StoredChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, chunk := range chunks {
		if err := chunk.Validate(); err != nil {
			return fmt.Errorf("invalid chunk %s: %w", chunk.Key(), err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO repo_chunks (
			id, repo_id, repo_full_name, file_path, chunk_index,
			content, token_count, embedding, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (repo_id, file_path, chunk_index)
		DO UPDATE SET
			id = EXCLUDED.id,
			repo_full_name = EXCLUDED.repo_full_name,
			content = EXCLUDED.content,
			token_count = EXCLUDED.token_count,
			embedding = EXCLUDED.embedding,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`

	now := time.Now().UTC()
	for _, chunk := range chunks {
		if chunk.ID == "" {
			chunk.ID = types.ChunkID(chunk.RepoID, chunk.FilePath, chunk.ChunkIndex)
		}
		err := tx.QueryRowContext(ctx, query,
			chunk.ID, chunk.RepoID, chunk.RepoFullName, chunk.FilePath, chunk.ChunkIndex,
			chunk.Content, chunk.TokenCount, pgvector.NewVector(chunk.Embedding), now,
		).Scan(&chunk.CreatedAt, &chunk.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", chunk.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SearchChunks ranks chunks with the pgvector cosine distance operator
func (s *PostgresStorage) SearchChunks(ctx context.Context, query SearchQuery) ([]types.RetrievedChunk, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	// <=> fails on mismatched dimensions; OFFSET 0 keeps the dimension
	// filter from being merged into the scoring query
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repo_id, repo_full_name, file_path, chunk_index, content, token_count, similarity
		FROM (
			SELECT id::text AS id, repo_id, repo_full_name, file_path, chunk_index, content, token_count,
				1 - (embedding <=> $1) AS similarity
			FROM (
				SELECT * FROM repo_chunks
				WHERE repo_id = $2 AND vector_dims(embedding) = $3
				OFFSET 0
			) AS same_dims
		) AS scored
		WHERE similarity >= $4
		ORDER BY similarity DESC, file_path, chunk_index
		LIMIT $5
	`, pgvector.NewVector(query.Vector), query.RepoID, len(query.Vector), query.MinSimilarity, query.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.RetrievedChunk, 0, query.Limit)
	for rows.Next() {
		var rc types.RetrievedChunk
		if err := rows.Scan(&rc.ID, &rc.RepoID, &rc.RepoFullName, &rc.FilePath,
			&rc.ChunkIndex, &rc.Content, &rc.TokenCount, &rc.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, rc)
	}

	return results, rows.Err()
}

// DeleteRepoChunks removes every chunk of a repository
func (s *PostgresStorage) DeleteRepoChunks(ctx context.Context, repoID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM repo_chunks WHERE repo_id = $1", repoID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks for repo %s: %w", repoID, err)
	}
	return result.RowsAffected()
}

// DeleteChunksFrom removes chunks of one file at or beyond fromIndex
func (s *PostgresStorage) DeleteChunksFrom(ctx context.Context, repoID, filePath string, fromIndex int) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM repo_chunks WHERE repo_id = $1 AND file_path = $2 AND chunk_index >= $3",
		repoID, filePath, fromIndex)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale chunks for %s: %w", filePath, err)
	}
	return result.RowsAffected()
}

// CountChunks returns the number of chunks stored for a repository
func (s *PostgresStorage) CountChunks(ctx context.Context, repoID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM repo_chunks WHERE repo_id = $1", repoID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// GetStatus summarizes the stored chunks of a repository
func (s *PostgresStorage) GetStatus(ctx context.Context, repoID string) (*RepoStatus, error) {
	status := &RepoStatus{RepoID: repoID, Backend: "postgres"}

	err := s.db.QueryRowContext(ctx, `
		SELECT repo_full_name, vector_dims(embedding), updated_at
		FROM repo_chunks
		WHERE repo_id = $1
		ORDER BY updated_at DESC
		LIMIT 1
	`, repoID).Scan(&status.RepoFullName, &status.Dimension, &status.LastIngestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read repo status: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT file_path),
			pg_total_relation_size('repo_chunks') / (1024.0 * 1024.0)
		FROM repo_chunks
		WHERE repo_id = $1
	`, repoID).Scan(&status.ChunksCount, &status.FilesCount, &status.IndexSizeMB)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	return status, nil
}
