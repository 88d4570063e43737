package types

import "time"

// RetrievedChunk is a stored chunk returned from a similarity search.
// It carries no embedding.
type RetrievedChunk struct {
	ID           string
	RepoID       string
	RepoFullName string

	FilePath   string
	ChunkIndex int
	Content    string
	TokenCount int

	// Cosine similarity to the query vector, higher is closer
	Similarity float64
}

// Validate checks if the retrieved chunk is valid
func (rc *RetrievedChunk) Validate() error {
	if rc.FilePath == "" {
		return ErrMissingFilePath
	}
	if rc.ChunkIndex < 0 {
		return ErrInvalidChunkIndex
	}
	if rc.Similarity < -1 || rc.Similarity > 1 {
		return ErrInvalidSimilarity
	}
	if rc.Content == "" {
		return ErrEmptyContent
	}
	return nil
}

// RetrievalResult is the outcome of a retrieval for one issue.
// Empty is true exactly when Chunks is empty, in which case ContextText is "".
type RetrievalResult struct {
	Chunks      []RetrievedChunk // Ranked by similarity, highest first
	ContextText string
	Empty       bool
}

// IngestResult summarizes an ingestion run
type IngestResult struct {
	ChunksStored       int
	DocumentsProcessed int
	StaleChunksDeleted int
	Duration           time.Duration
}
