package embedder

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codepathfinder/repocontext/pkg/types"
)

func TestComputeHash(t *testing.T) {
	h1 := ComputeHash("hello world")
	h2 := ComputeHash("hello world")
	h3 := ComputeHash("hello world!")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestValidateRequest(t *testing.T) {
	assert.ErrorIs(t, ValidateRequest(EmbeddingRequest{}), ErrEmptyText)
	assert.NoError(t, ValidateRequest(EmbeddingRequest{Text: "x"}))
}

func TestValidateBatchRequest(t *testing.T) {
	tests := []struct {
		name    string
		texts   []string
		wantErr bool
	}{
		{"valid", []string{"a", "b"}, false},
		{"empty batch", nil, true},
		{"empty text", []string{"a", ""}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchRequest(BatchEmbeddingRequest{Texts: tt.texts})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCache(t *testing.T) {
	t.Run("get returns a copy", func(t *testing.T) {
		cache := NewCache(10)
		cache.Set("h", &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3, Hash: "h"})

		got, ok := cache.Get("h")
		require.True(t, ok)
		got.Vector[0] = 99

		again, ok := cache.Get("h")
		require.True(t, ok)
		assert.Equal(t, float32(1), again.Vector[0])
	})

	t.Run("miss", func(t *testing.T) {
		cache := NewCache(10)
		_, ok := cache.Get("missing")
		assert.False(t, ok)
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		cache := NewCache(2)
		cache.Set("a", &Embedding{})
		cache.Set("b", &Embedding{})
		cache.Set("c", &Embedding{})

		assert.Equal(t, 2, cache.Size())
		_, ok := cache.Get("a")
		assert.False(t, ok)
	})

	t.Run("clear", func(t *testing.T) {
		cache := NewCache(0)
		cache.Set("a", &Embedding{})
		cache.Clear()
		assert.Equal(t, 0, cache.Size())
	})
}

func TestAlignBatch(t *testing.T) {
	mk := func(indices ...int) []*Embedding {
		out := make([]*Embedding, len(indices))
		for i, idx := range indices {
			out[i] = &Embedding{Index: idx, Vector: []float32{float32(idx)}}
		}
		return out
	}

	t.Run("reorders shuffled response", func(t *testing.T) {
		aligned, err := AlignBatch(mk(2, 0, 1), 3)
		require.NoError(t, err)
		for i, emb := range aligned {
			assert.Equal(t, i, emb.Index)
			assert.Equal(t, float32(i), emb.Vector[0])
		}
	})

	tests := []struct {
		name       string
		embeddings []*Embedding
		n          int
	}{
		{"too few", mk(0), 2},
		{"too many", mk(0, 1, 2), 2},
		{"duplicate index", mk(0, 0), 2},
		{"out of range", mk(0, 5), 2},
		{"negative", mk(-1, 0), 2},
		{"nil entry", []*Embedding{nil, {Index: 0}}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AlignBatch(tt.embeddings, tt.n)
			assert.ErrorIs(t, err, types.ErrEmbeddingMismatch)
		})
	}
}

func TestSortByIndex(t *testing.T) {
	embs := []*Embedding{{Index: 3}, {Index: 1}, {Index: 2}, {Index: 0}}
	SortByIndex(embs)
	for i, emb := range embs {
		assert.Equal(t, i, emb.Index)
	}
}

func TestLocalProvider(t *testing.T) {
	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)
	defer provider.Close()

	ctx := context.Background()

	t.Run("metadata", func(t *testing.T) {
		assert.Equal(t, ProviderLocal, provider.Provider())
		assert.Equal(t, DefaultLocalModel, provider.Model())
		assert.Equal(t, LocalDimension, provider.Dimension())
		assert.Equal(t, MaxBatchSize, provider.MaxBatchSize())
	})

	t.Run("deterministic and normalized", func(t *testing.T) {
		a, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "Run make test before pushing"})
		require.NoError(t, err)
		b, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "Run make test before pushing"})
		require.NoError(t, err)

		assert.Equal(t, a.Vector, b.Vector)
		assert.Len(t, a.Vector, LocalDimension)

		var norm float64
		for _, v := range a.Vector {
			norm += float64(v * v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
	})

	t.Run("shared words are closer", func(t *testing.T) {
		resp, err := provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{
			"how do I run the test suite",
			"run the test suite with make test",
			"our logo uses the color purple",
		}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 3)

		related := cosine(resp.Embeddings[0].Vector, resp.Embeddings[1].Vector)
		unrelated := cosine(resp.Embeddings[0].Vector, resp.Embeddings[2].Vector)
		assert.Greater(t, related, unrelated)
	})

	t.Run("batch indices", func(t *testing.T) {
		resp, err := provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"a", "b", "c"}})
		require.NoError(t, err)
		for i, emb := range resp.Embeddings {
			assert.Equal(t, i, emb.Index)
		}
	})

	t.Run("rejects empty text", func(t *testing.T) {
		_, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: ""})
		assert.ErrorIs(t, err, ErrEmptyText)
	})

	t.Run("rejects oversized batch", func(t *testing.T) {
		texts := make([]string, MaxBatchSize+1)
		for i := range texts {
			texts[i] = "x"
		}
		_, err := provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: texts})
		assert.ErrorIs(t, err, ErrBatchTooLarge)
	})
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := NormalizeVector([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i] * b[i])
		na += float64(a[i] * a[i])
		nb += float64(b[i] * b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
