package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codepathfinder/repocontext/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery is returned for malformed search queries
	ErrInvalidQuery = errors.New("invalid search query")
	// ErrUnknownDriver is returned by Open for an unsupported backend name
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Storage is the vector store holding embedded chunks of tracked repositories.
// Every row is scoped to a repository; searches never cross repositories.
type Storage interface {
	// UpsertChunks inserts or fully replaces chunks keyed by
	// (RepoID, FilePath, ChunkIndex). All chunks of one call are written
	// atomically.
	UpsertChunks(ctx context.Context, chunks []*types.StoredChunk) error

	// SearchChunks returns the chunks of one repository closest to the query
	// vector, highest similarity first, excluding rows below MinSimilarity.
	SearchChunks(ctx context.Context, query SearchQuery) ([]types.RetrievedChunk, error)

	// DeleteRepoChunks removes every chunk of a repository
	DeleteRepoChunks(ctx context.Context, repoID string) (int64, error)

	// DeleteChunksFrom removes chunks of one file with index >= fromIndex
	DeleteChunksFrom(ctx context.Context, repoID, filePath string, fromIndex int) (int64, error)

	// CountChunks returns the number of chunks stored for a repository
	CountChunks(ctx context.Context, repoID string) (int, error)

	// GetStatus summarizes what is stored for a repository.
	// Returns ErrNotFound when the repository has no chunks.
	GetStatus(ctx context.Context, repoID string) (*RepoStatus, error)

	// Close releases the underlying connection
	Close() error
}

// SearchQuery describes a similarity search
type SearchQuery struct {
	RepoID        string
	Vector        []float32
	Limit         int
	MinSimilarity float64
}

// Validate checks the query before it reaches a backend
func (q SearchQuery) Validate() error {
	if q.RepoID == "" {
		return types.ErrInvalidRepoID
	}
	if len(q.Vector) == 0 {
		return fmt.Errorf("%w: query vector is empty", ErrInvalidQuery)
	}
	if q.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive", ErrInvalidQuery)
	}
	return nil
}

// RepoStatus contains statistics about the chunks stored for a repository
type RepoStatus struct {
	RepoID         string
	RepoFullName   string
	ChunksCount    int
	FilesCount     int
	Dimension      int
	LastIngestedAt time.Time
	Backend        string
	IndexSizeMB    float64 // Whole store size when the backend can report it
}
