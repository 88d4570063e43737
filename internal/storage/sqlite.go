package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/codepathfinder/repocontext/pkg/types"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite allows a single writer; one connection also keeps :memory: databases alive
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// UpsertChunks writes all chunks in one transaction
func (s *SQLiteStorage) UpsertChunks(ctx context.Context, chunks []*types.StoredChunk) error {
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

	now := time.Now().UTC()
	for _, chunk := range chunks {
		if err := s.upsertChunkWithQuerier(ctx, tx, chunk, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// upsertChunkWithQuerier replaces the row with the chunk's key, keeping its created_at
func (s *SQLiteStorage) upsertChunkWithQuerier(ctx context.Context, q querier, chunk *types.StoredChunk, now time.Time) error {
	if chunk.ID == "" {
		chunk.ID = types.ChunkID(chunk.RepoID, chunk.FilePath, chunk.ChunkIndex)
	}
	hash := chunk.ContentHash()

	query := `
		INSERT INTO repo_chunks (
			id, repo_id, repo_full_name, file_path, chunk_index,
			content, content_hash, token_count, embedding, dimension,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_id, file_path, chunk_index)
		DO UPDATE SET
			id = excluded.id,
			repo_full_name = excluded.repo_full_name,
			content = excluded.content,
			content_hash = excluded.content_hash,
			token_count = excluded.token_count,
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			updated_at = excluded.updated_at
		RETURNING created_at, updated_at
	`
	err := q.QueryRowContext(ctx, query,
		chunk.ID, chunk.RepoID, chunk.RepoFullName, chunk.FilePath, chunk.ChunkIndex,
		chunk.Content, hash[:], chunk.TokenCount,
		serializeVector(chunk.Embedding), len(chunk.Embedding),
		now, now,
	).Scan(&chunk.CreatedAt, &chunk.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert chunk %s: %w", chunk.Key(), err)
	}

	return nil
}

// SearchChunks ranks a repository's chunks by cosine similarity to the query
func (s *SQLiteStorage) SearchChunks(ctx context.Context, query SearchQuery) ([]types.RetrievedChunk, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	return searchVector(ctx, s.db, query)
}

// DeleteRepoChunks removes every chunk of a repository
func (s *SQLiteStorage) DeleteRepoChunks(ctx context.Context, repoID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM repo_chunks WHERE repo_id = ?", repoID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks for repo %s: %w", repoID, err)
	}
	return result.RowsAffected()
}

// DeleteChunksFrom removes chunks of one file at or beyond fromIndex
func (s *SQLiteStorage) DeleteChunksFrom(ctx context.Context, repoID, filePath string, fromIndex int) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM repo_chunks WHERE repo_id = ? AND file_path = ? AND chunk_index >= ?",
		repoID, filePath, fromIndex)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale chunks for %s: %w", filePath, err)
	}
	return result.RowsAffected()
}

// CountChunks returns the number of chunks stored for a repository
func (s *SQLiteStorage) CountChunks(ctx context.Context, repoID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM repo_chunks WHERE repo_id = ?", repoID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// GetStatus summarizes the stored chunks of a repository
func (s *SQLiteStorage) GetStatus(ctx context.Context, repoID string) (*RepoStatus, error) {
	status := &RepoStatus{
		RepoID:  repoID,
		Backend: "sqlite-" + BuildMode,
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT repo_full_name, dimension, updated_at
		FROM repo_chunks
		WHERE repo_id = ?
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
		SELECT COUNT(*), COUNT(DISTINCT file_path)
		FROM repo_chunks
		WHERE repo_id = ?
	`, repoID).Scan(&status.ChunksCount, &status.FilesCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return status, nil
}
