package types

import "errors"

// Domain errors shared by the ingestion and retrieval pipeline
var (
	// Input errors
	ErrEmptyQuery    = errors.New("query text is empty")
	ErrInvalidRepoID = errors.New("repository id is required")

	// Embedding errors
	ErrEmbeddingMismatch = errors.New("embedding results do not match inputs")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// Chunk validation errors
	ErrMissingFilePath   = errors.New("file path is required")
	ErrInvalidChunkIndex = errors.New("chunk index must be >= 0")
	ErrInvalidSimilarity = errors.New("similarity must be between -1 and 1")
	ErrEmptyContent      = errors.New("content cannot be empty")
	ErrMissingEmbedding  = errors.New("embedding is required")
)
