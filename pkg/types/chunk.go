package types

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// chunkNamespace scopes deterministic chunk IDs so they never collide with
// UUIDs minted for other purposes.
var chunkNamespace = uuid.MustParse("6f1b8a52-3c2e-4f43-9d2b-8a0f4c7e51d9")

// Document is a single named text file fetched from a tracked repository.
// Documents are transient input to ingestion and are never persisted.
type Document struct {
	FilePath string // Path within the repository, e.g. "CONTRIBUTING.md"
	Content  string
}

// Chunk is a contiguous, bounded span of a document's text
type Chunk struct {
	FilePath   string
	Content    string
	ChunkIndex int // 0-based position within the file for this chunking run
	TokenCount int // Approximate, derived from character length
}

// StoredChunk is a chunk persisted in the vector store together with its
// embedding. Rows are keyed by (RepoID, FilePath, ChunkIndex).
type StoredChunk struct {
	ID           string
	RepoID       string
	RepoFullName string // "owner/name"

	FilePath   string
	ChunkIndex int
	Content    string
	TokenCount int

	Embedding []float32

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewStoredChunk builds a StoredChunk for the given repository from a chunk
// and its embedding.
func NewStoredChunk(repoID, repoFullName string, c Chunk, embedding []float32) *StoredChunk {
	return &StoredChunk{
		ID:           ChunkID(repoID, c.FilePath, c.ChunkIndex),
		RepoID:       repoID,
		RepoFullName: repoFullName,
		FilePath:     c.FilePath,
		ChunkIndex:   c.ChunkIndex,
		Content:      c.Content,
		TokenCount:   c.TokenCount,
		Embedding:    embedding,
	}
}

// ChunkID derives the stable identifier of a stored chunk from its key.
// Every backend computes the same ID for the same key.
func ChunkID(repoID, filePath string, chunkIndex int) string {
	key := fmt.Sprintf("%s\x00%s\x00%d", repoID, filePath, chunkIndex)
	return uuid.NewSHA1(chunkNamespace, []byte(key)).String()
}

// Key returns the upsert key of the chunk
func (c *StoredChunk) Key() ChunkKey {
	return ChunkKey{RepoID: c.RepoID, FilePath: c.FilePath, ChunkIndex: c.ChunkIndex}
}

// ContentHash returns the SHA-256 hash of the chunk content
func (c *StoredChunk) ContentHash() [32]byte {
	return sha256.Sum256([]byte(c.Content))
}

// Validate checks that the chunk can be persisted
func (c *StoredChunk) Validate() error {
	if strings.TrimSpace(c.RepoID) == "" {
		return ErrInvalidRepoID
	}
	if c.FilePath == "" {
		return ErrMissingFilePath
	}
	if c.ChunkIndex < 0 {
		return ErrInvalidChunkIndex
	}
	if c.Content == "" {
		return ErrEmptyContent
	}
	if len(c.Embedding) == 0 {
		return ErrMissingEmbedding
	}
	return nil
}

// ChunkKey identifies a stored chunk
type ChunkKey struct {
	RepoID     string
	FilePath   string
	ChunkIndex int
}

func (k ChunkKey) String() string {
	return fmt.Sprintf("%s:%s#%d", k.RepoID, k.FilePath, k.ChunkIndex)
}
