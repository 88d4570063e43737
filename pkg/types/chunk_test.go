package types

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkID(t *testing.T) {
	a := ChunkID("repo-1", "README.md", 0)
	b := ChunkID("repo-1", "README.md", 0)
	assert.Equal(t, a, b, "same key must give same id")

	_, err := uuid.Parse(a)
	require.NoError(t, err)

	assert.NotEqual(t, a, ChunkID("repo-1", "README.md", 1))
	assert.NotEqual(t, a, ChunkID("repo-2", "README.md", 0))
	assert.NotEqual(t, a, ChunkID("repo-1", "CONTRIBUTING.md", 0))
}

func TestNewStoredChunk(t *testing.T) {
	c := Chunk{FilePath: "docs/setup.md", Content: "Install Go.", ChunkIndex: 2, TokenCount: 3}
	sc := NewStoredChunk("r1", "octo/repo", c, []float32{1, 0})

	assert.Equal(t, "r1", sc.RepoID)
	assert.Equal(t, "octo/repo", sc.RepoFullName)
	assert.Equal(t, "docs/setup.md", sc.FilePath)
	assert.Equal(t, 2, sc.ChunkIndex)
	assert.Equal(t, ChunkID("r1", "docs/setup.md", 2), sc.ID)
	assert.Equal(t, ChunkKey{RepoID: "r1", FilePath: "docs/setup.md", ChunkIndex: 2}, sc.Key())
	assert.NoError(t, sc.Validate())
}

func TestStoredChunk_Validate(t *testing.T) {
	valid := func() *StoredChunk {
		return &StoredChunk{RepoID: "r", FilePath: "f.md", Content: "x", Embedding: []float32{1}}
	}

	tests := []struct {
		name   string
		mutate func(*StoredChunk)
		want   error
	}{
		{"valid", func(*StoredChunk) {}, nil},
		{"blank repo", func(c *StoredChunk) { c.RepoID = "  " }, ErrInvalidRepoID},
		{"no path", func(c *StoredChunk) { c.FilePath = "" }, ErrMissingFilePath},
		{"negative index", func(c *StoredChunk) { c.ChunkIndex = -1 }, ErrInvalidChunkIndex},
		{"empty content", func(c *StoredChunk) { c.Content = "" }, ErrEmptyContent},
		{"no embedding", func(c *StoredChunk) { c.Embedding = nil }, ErrMissingEmbedding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRetrievedChunk_Validate(t *testing.T) {
	rc := RetrievedChunk{FilePath: "a.md", Content: "x", Similarity: 0.8}
	assert.NoError(t, rc.Validate())

	rc.Similarity = 1.5
	assert.ErrorIs(t, rc.Validate(), ErrInvalidSimilarity)
}
