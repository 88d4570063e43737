package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codepathfinder/repocontext/internal/chunker"
	"github.com/codepathfinder/repocontext/internal/embedder"
	"github.com/codepathfinder/repocontext/internal/storage"
	"github.com/codepathfinder/repocontext/pkg/types"
)

var errEmbed = errors.New("embedding service unavailable")

// fakeEmbedder wraps the local provider and records every batch call.
// It can answer out of order, corrupt indices, or fail on a given call.
type fakeEmbedder struct {
	*embedder.LocalProvider

	maxBatch     int
	reverse      bool
	badIndex     bool
	failOnCall   int // 1-based, 0 never fails
	shrinkOnCall int // 1-based, truncates vectors to 2 dimensions

	mu         sync.Mutex
	calls      int
	batchSizes []int
}

func newFakeEmbedder(t *testing.T) *fakeEmbedder {
	t.Helper()
	local, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)
	return &fakeEmbedder{LocalProvider: local, maxBatch: embedder.MaxBatchSize}
}

func (f *fakeEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.batchSizes = append(f.batchSizes, len(req.Texts))
	f.mu.Unlock()

	if call == f.failOnCall {
		return nil, errEmbed
	}

	resp, err := f.LocalProvider.GenerateBatch(ctx, req)
	if err != nil {
		return nil, err
	}

	if f.reverse {
		embs := resp.Embeddings
		for i, j := 0, len(embs)-1; i < j; i, j = i+1, j-1 {
			embs[i], embs[j] = embs[j], embs[i]
		}
	}
	if f.badIndex {
		for _, emb := range resp.Embeddings {
			emb.Index = 0
		}
	}
	if call == f.shrinkOnCall {
		for _, emb := range resp.Embeddings {
			emb.Vector = emb.Vector[:2]
		}
	}
	return resp, nil
}

func (f *fakeEmbedder) MaxBatchSize() int {
	return f.maxBatch
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// countingStore records upsert batch sizes and can fail on a given upsert
type countingStore struct {
	storage.Storage

	failOnUpsert int // 1-based, 0 never fails
	upserts      []int
}

func (s *countingStore) UpsertChunks(ctx context.Context, chunks []*types.StoredChunk) error {
	s.upserts = append(s.upserts, len(chunks))
	if len(s.upserts) == s.failOnUpsert {
		return errors.New("store rejected batch")
	}
	return s.Storage.UpsertChunks(ctx, chunks)
}

func newStore(t *testing.T) *countingStore {
	t.Helper()
	s, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return &countingStore{Storage: s}
}

// paragraphChunker emits one chunk per paragraph
func paragraphChunker() *chunker.Chunker {
	return chunker.New(chunker.Options{ChunkTokens: 1, OverlapTokens: 0, CharsPerToken: 4})
}

func paragraphs(words ...string) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = fmt.Sprintf("%s guideline %d", w, i)
	}
	return strings.Join(parts, "\n\n")
}

func countChunks(t *testing.T, s storage.Storage, repoID string) int {
	t.Helper()
	n, err := s.CountChunks(context.Background(), repoID)
	require.NoError(t, err)
	return n
}

func TestIngest_ZeroDocuments(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		docs []types.Document
	}{
		{"no documents", nil},
		{"blank documents", []types.Document{{FilePath: "README.md", Content: "  \n\n \t"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb := newFakeEmbedder(t)
			store := newStore(t)
			orch := New(nil, emb, store, Options{})

			result, err := orch.Ingest(ctx, Request{RepoID: "r1", RepoFullName: "acme/widgets", Documents: tt.docs})
			require.NoError(t, err)
			assert.Equal(t, 0, result.ChunksStored)
			assert.Equal(t, len(tt.docs), result.DocumentsProcessed)
			assert.Equal(t, 0, emb.callCount())
			assert.Empty(t, store.upserts)
		})
	}
}

func TestIngest_InvalidRepoID(t *testing.T) {
	emb := newFakeEmbedder(t)
	orch := New(nil, emb, newStore(t), Options{})

	_, err := orch.Ingest(context.Background(), Request{
		RepoID:    "  ",
		Documents: []types.Document{{FilePath: "README.md", Content: "hello"}},
	})
	assert.ErrorIs(t, err, types.ErrInvalidRepoID)
	assert.Equal(t, 0, emb.callCount())
}

func TestIngest_Batching(t *testing.T) {
	tests := []struct {
		name        string
		maxBatch    int
		embedBatch  int
		storeBatch  int
		wantEmbeds  []int
		wantUpserts []int
	}{
		{
			name:        "embedder limit caps requested batch",
			maxBatch:    3,
			embedBatch:  10,
			storeBatch:  2,
			wantEmbeds:  []int{3, 3, 1},
			wantUpserts: []int{2, 2, 2, 1},
		},
		{
			name:        "requested batch below embedder limit",
			maxBatch:    100,
			embedBatch:  4,
			storeBatch:  100,
			wantEmbeds:  []int{4, 3},
			wantUpserts: []int{7},
		},
		{
			name:        "defaults",
			maxBatch:    100,
			wantEmbeds:  []int{7},
			wantUpserts: []int{7},
		},
	}

	doc := types.Document{
		FilePath: "CONTRIBUTING.md",
		Content:  paragraphs("alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf"),
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb := newFakeEmbedder(t)
			emb.maxBatch = tt.maxBatch
			store := newStore(t)

			orch := New(paragraphChunker(), emb, store, Options{
				EmbedBatchSize: tt.embedBatch,
				StoreBatchSize: tt.storeBatch,
			})

			result, err := orch.Ingest(context.Background(), Request{RepoID: "r1", Documents: []types.Document{doc}})
			require.NoError(t, err)
			assert.Equal(t, 7, result.ChunksStored)
			assert.Equal(t, tt.wantEmbeds, emb.batchSizes)
			assert.Equal(t, tt.wantUpserts, store.upserts)
			assert.Equal(t, 7, countChunks(t, store, "r1"))
		})
	}
}

func TestIngest_AlignsOutOfOrderEmbeddings(t *testing.T) {
	ctx := context.Background()
	emb := newFakeEmbedder(t)
	emb.reverse = true
	store := newStore(t)

	docs := []types.Document{
		{FilePath: "README.md", Content: paragraphs("install", "build")},
		{FilePath: "CONTRIBUTING.md", Content: paragraphs("fork", "branch", "review")},
	}

	orch := New(paragraphChunker(), emb, store, Options{EmbedBatchSize: 4})
	result, err := orch.Ingest(ctx, Request{RepoID: "r1", RepoFullName: "acme/widgets", Documents: docs})
	require.NoError(t, err)
	require.Equal(t, 5, result.ChunksStored)

	for _, c := range paragraphChunker().ChunkAll(docs) {
		vec, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: c.Content})
		require.NoError(t, err)

		results, err := store.SearchChunks(ctx, storage.SearchQuery{
			RepoID: "r1", Vector: vec.Vector, Limit: 1, MinSimilarity: 0.99,
		})
		require.NoError(t, err)
		require.Len(t, results, 1, "chunk %s#%d", c.FilePath, c.ChunkIndex)
		assert.Equal(t, c.Content, results[0].Content)
		assert.Equal(t, c.FilePath, results[0].FilePath)
		assert.Equal(t, c.ChunkIndex, results[0].ChunkIndex)
		assert.Equal(t, "acme/widgets", results[0].RepoFullName)
	}
}

func TestIngest_RejectsMismatchedIndices(t *testing.T) {
	emb := newFakeEmbedder(t)
	emb.badIndex = true
	store := newStore(t)

	orch := New(paragraphChunker(), emb, store, Options{})
	_, err := orch.Ingest(context.Background(), Request{
		RepoID:    "r1",
		Documents: []types.Document{{FilePath: "a.md", Content: paragraphs("one", "two")}},
	})
	assert.ErrorIs(t, err, types.ErrEmbeddingMismatch)
	assert.Equal(t, 0, countChunks(t, store, "r1"))
}

func TestIngest_RejectsDimensionChange(t *testing.T) {
	emb := newFakeEmbedder(t)
	emb.shrinkOnCall = 2
	store := newStore(t)

	orch := New(paragraphChunker(), emb, store, Options{EmbedBatchSize: 2})
	_, err := orch.Ingest(context.Background(), Request{
		RepoID:    "r1",
		Documents: []types.Document{{FilePath: "a.md", Content: paragraphs("one", "two", "three")}},
	})
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestIngest_Idempotent(t *testing.T) {
	ctx := context.Background()
	emb := newFakeEmbedder(t)
	store := newStore(t)
	orch := New(paragraphChunker(), emb, store, Options{})

	req := Request{
		RepoID:       "r1",
		RepoFullName: "acme/widgets",
		Documents: []types.Document{
			{FilePath: "README.md", Content: paragraphs("install", "usage")},
			{FilePath: "docs/setup.md", Content: paragraphs("clone", "test", "lint")},
		},
	}

	first, err := orch.Ingest(ctx, req)
	require.NoError(t, err)
	afterFirst := countChunks(t, store, "r1")

	second, err := orch.Ingest(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ChunksStored, second.ChunksStored)
	assert.Equal(t, afterFirst, countChunks(t, store, "r1"))
	assert.Equal(t, 5, afterFirst)
}

func TestIngest_EmbeddingFailureAborts(t *testing.T) {
	emb := newFakeEmbedder(t)
	emb.failOnCall = 2
	store := newStore(t)

	orch := New(paragraphChunker(), emb, store, Options{EmbedBatchSize: 2, StoreBatchSize: 2})
	_, err := orch.Ingest(context.Background(), Request{
		RepoID:    "r1",
		Documents: []types.Document{{FilePath: "a.md", Content: paragraphs("a", "b", "c", "d", "e")}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errEmbed)

	// The remaining batch is never requested; the first batch stays stored
	assert.Equal(t, 2, emb.callCount())
	assert.Equal(t, 2, countChunks(t, store, "r1"))
}

func TestIngest_StoreFailureAborts(t *testing.T) {
	emb := newFakeEmbedder(t)
	store := newStore(t)
	store.failOnUpsert = 1

	orch := New(paragraphChunker(), emb, store, Options{EmbedBatchSize: 2, StoreBatchSize: 2})
	_, err := orch.Ingest(context.Background(), Request{
		RepoID:    "r1",
		Documents: []types.Document{{FilePath: "a.md", Content: paragraphs("a", "b", "c", "d", "e")}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store rejected batch")
	assert.Equal(t, 1, emb.callCount())
	assert.Equal(t, 0, countChunks(t, store, "r1"))
}

func TestIngest_ShrunkDocument(t *testing.T) {
	ctx := context.Background()
	long := []types.Document{
		{FilePath: "README.md", Content: paragraphs("one", "two", "three")},
		{FilePath: "CHANGELOG.md", Content: paragraphs("v1", "v2")},
	}
	short := []types.Document{
		{FilePath: "README.md", Content: paragraphs("one")},
		{FilePath: "CHANGELOG.md", Content: "   "},
	}

	t.Run("orphans kept by default", func(t *testing.T) {
		store := newStore(t)
		orch := New(paragraphChunker(), newFakeEmbedder(t), store, Options{})

		_, err := orch.Ingest(ctx, Request{RepoID: "r1", Documents: long})
		require.NoError(t, err)
		result, err := orch.Ingest(ctx, Request{RepoID: "r1", Documents: short})
		require.NoError(t, err)

		assert.Equal(t, 1, result.ChunksStored)
		assert.Equal(t, 0, result.StaleChunksDeleted)
		assert.Equal(t, 5, countChunks(t, store, "r1"))
	})

	t.Run("pruned when enabled", func(t *testing.T) {
		store := newStore(t)
		orch := New(paragraphChunker(), newFakeEmbedder(t), store, Options{PruneStale: true})

		_, err := orch.Ingest(ctx, Request{RepoID: "r1", Documents: long})
		require.NoError(t, err)
		result, err := orch.Ingest(ctx, Request{RepoID: "r1", Documents: short})
		require.NoError(t, err)

		assert.Equal(t, 1, result.ChunksStored)
		assert.Equal(t, 4, result.StaleChunksDeleted)
		assert.Equal(t, 1, countChunks(t, store, "r1"))
	})

	t.Run("clear before re-ingest", func(t *testing.T) {
		store := newStore(t)
		orch := New(paragraphChunker(), newFakeEmbedder(t), store, Options{})

		_, err := orch.Ingest(ctx, Request{RepoID: "r1", Documents: long})
		require.NoError(t, err)

		deleted, err := orch.ClearChunks(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, int64(5), deleted)

		_, err = orch.Ingest(ctx, Request{RepoID: "r1", Documents: short})
		require.NoError(t, err)
		assert.Equal(t, 1, countChunks(t, store, "r1"))
	})
}

func TestIngest_Progress(t *testing.T) {
	type event struct {
		stage       string
		done, total int
	}
	var events []event

	orch := New(paragraphChunker(), newFakeEmbedder(t), newStore(t), Options{
		EmbedBatchSize: 2,
		StoreBatchSize: 3,
		Progress: func(stage string, done, total int) {
			events = append(events, event{stage, done, total})
		},
	})

	_, err := orch.Ingest(context.Background(), Request{
		RepoID:    "r1",
		Documents: []types.Document{{FilePath: "a.md", Content: paragraphs("a", "b", "c", "d", "e")}},
	})
	require.NoError(t, err)

	require.NotEmpty(t, events)
	assert.Equal(t, event{StageChunk, 1, 1}, events[0])

	var embeds, stores []event
	for _, e := range events {
		switch e.stage {
		case StageEmbed:
			embeds = append(embeds, e)
		case StageStore:
			stores = append(stores, e)
		}
	}
	assert.Equal(t, []event{{StageEmbed, 2, 5}, {StageEmbed, 4, 5}, {StageEmbed, 5, 5}}, embeds)
	assert.Equal(t, []event{{StageStore, 3, 5}, {StageStore, 5, 5}}, stores)
}

func TestClearChunks(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	orch := New(paragraphChunker(), newFakeEmbedder(t), store, Options{})

	_, err := orch.ClearChunks(ctx, "")
	assert.ErrorIs(t, err, types.ErrInvalidRepoID)

	deleted, err := orch.ClearChunks(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	_, err = orch.Ingest(ctx, Request{RepoID: "r1", Documents: []types.Document{{FilePath: "a.md", Content: paragraphs("x", "y")}}})
	require.NoError(t, err)
	_, err = orch.Ingest(ctx, Request{RepoID: "r2", Documents: []types.Document{{FilePath: "a.md", Content: paragraphs("x")}}})
	require.NoError(t, err)

	deleted, err = orch.ClearChunks(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Equal(t, 0, countChunks(t, store, "r1"))
	assert.Equal(t, 1, countChunks(t, store, "r2"))
}

type staticSource struct {
	docs []types.Document
	err  error
	root string
}

func (s *staticSource) Fetch(_ context.Context, root string) ([]types.Document, error) {
	s.root = root
	return s.docs, s.err
}

func TestIngestDirectory(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	orch := New(paragraphChunker(), newFakeEmbedder(t), store, Options{})

	_, err := orch.Ingest(ctx, Request{RepoID: "r1", Documents: []types.Document{{FilePath: "old.md", Content: paragraphs("stale", "text")}}})
	require.NoError(t, err)

	src := &staticSource{docs: []types.Document{{FilePath: "new.md", Content: paragraphs("fresh")}}}

	t.Run("merge", func(t *testing.T) {
		result, err := orch.IngestDirectory(ctx, src, DirectoryRequest{RepoID: "r1", Path: "/checkout"})
		require.NoError(t, err)
		assert.Equal(t, 1, result.ChunksStored)
		assert.Equal(t, "/checkout", src.root)
		assert.Equal(t, 3, countChunks(t, store, "r1"))
	})

	t.Run("replace", func(t *testing.T) {
		result, err := orch.IngestDirectory(ctx, src, DirectoryRequest{RepoID: "r1", Path: "/checkout", Replace: true})
		require.NoError(t, err)
		assert.Equal(t, 1, result.ChunksStored)
		assert.Equal(t, 1, countChunks(t, store, "r1"))
	})

	t.Run("fetch error", func(t *testing.T) {
		failing := &staticSource{err: errors.New("permission denied")}
		_, err := orch.IngestDirectory(ctx, failing, DirectoryRequest{RepoID: "r1", Path: "/checkout", Replace: true})
		require.Error(t, err)
		assert.Equal(t, 1, countChunks(t, store, "r1"))
	})
}
