package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codepathfinder/repocontext/pkg/types"
)

func setupBolt(t *testing.T, path string) *BoltStorage {
	t.Helper()
	s, err := NewBoltStorage(path)
	require.NoError(t, err)
	return s
}

func TestBoltStorage(t *testing.T) {
	runStorageSuite(t, func(t *testing.T) Storage {
		s := setupBolt(t, filepath.Join(t.TempDir(), "chunks.bolt"))
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestBoltStorage_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chunks.bolt")

	s := setupBolt(t, path)
	chunk := testChunk("repo-a", "README.md", 0, "persisted", 1, 0)
	require.NoError(t, s.UpsertChunks(ctx, []*types.StoredChunk{chunk}))
	require.NoError(t, s.Close())

	s = setupBolt(t, path)
	defer s.Close()

	results := search(t, s, "repo-a", 5, 0.5, 1, 0)
	require.Len(t, results, 1)
	assert.Equal(t, "persisted", results[0].Content)
	assert.Equal(t, chunk.ID, results[0].ID)

	status, err := s.GetStatus(ctx, "repo-a")
	require.NoError(t, err)
	assert.Equal(t, "bolt", status.Backend)
	assert.True(t, status.LastIngestedAt.Equal(chunk.UpdatedAt))
}

func TestBoltKey(t *testing.T) {
	prefix := boltFilePrefix("docs/guide.md")

	key := boltKey("docs/guide.md", 42)
	assert.Equal(t, "docs/guide.md\x000000000042", string(key))

	idx, err := boltKeyIndex(key, prefix)
	require.NoError(t, err)
	assert.Equal(t, 42, idx)

	// Zero padding keeps byte order equal to numeric order
	assert.Less(t, string(boltKey("a.md", 9)), string(boltKey("a.md", 10)))
}
