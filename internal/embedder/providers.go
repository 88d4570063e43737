package embedder

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Environment variables
	EnvProvider     = "REPOCONTEXT_EMBEDDING_PROVIDER"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultLocalModel  = "local-hashing-v1"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	DefaultTimeout = 30 * time.Second
)

// ProviderConfig holds the settings shared by remote providers.
// Zero values take the provider defaults.
type ProviderConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	Timeout   time.Duration
	Retry     RetryConfig
}

func (c ProviderConfig) retryConfig() RetryConfig {
	if c.Retry.MaxRetries <= 0 {
		return DefaultRetryConfig()
	}
	retry := c.Retry
	if retry.Multiplier <= 0 {
		retry.Multiplier = BackoffMultiplier
	}
	if retry.MaxDelay <= 0 {
		retry.MaxDelay = time.Duration(MaxBackoffMs) * time.Millisecond
	}
	return retry
}

func (c ProviderConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// fetchFunc embeds texts and reports each vector's Index relative to texts
type fetchFunc func(ctx context.Context, texts []string) ([]*Embedding, error)

// generateWithCache serves cache hits locally and sends only the misses to
// fetch. Returned embeddings carry indices relative to texts, sorted.
func generateWithCache(ctx context.Context, cache *Cache, texts []string, fetch fetchFunc) ([]*Embedding, error) {
	results := make([]*Embedding, 0, len(texts))
	missing := make([]string, 0, len(texts))
	positions := make([]int, 0, len(texts))

	for i, text := range texts {
		if cache != nil {
			if emb, ok := cache.Get(ComputeHash(text)); ok {
				emb.Index = i
				results = append(results, emb)
				continue
			}
		}
		missing = append(missing, text)
		positions = append(positions, i)
	}

	if len(missing) > 0 {
		fetched, err := fetch(ctx, missing)
		if err != nil {
			return nil, err
		}

		for _, emb := range fetched {
			if emb == nil || emb.Index < 0 || emb.Index >= len(missing) {
				return nil, fmt.Errorf("%w: response index out of range for %d inputs", ErrProviderFailed, len(missing))
			}
			emb.Hash = ComputeHash(missing[emb.Index])
			if cache != nil {
				cache.Set(emb.Hash, &Embedding{
					Vector:    append([]float32(nil), emb.Vector...),
					Dimension: emb.Dimension,
					Provider:  emb.Provider,
					Model:     emb.Model,
					Hash:      emb.Hash,
				})
			}
			emb.Index = positions[emb.Index]
			results = append(results, emb)
		}
	}

	SortByIndex(results)
	return results, nil
}

// singleFromBatch answers a single-text request through the batch path
func singleFromBatch(ctx context.Context, e Embedder, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	resp, err := e.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return resp.Embeddings[0], nil
}

// checkBatch validates a batch against the provider limit
func checkBatch(req BatchEmbeddingRequest) error {
	if err := ValidateBatchRequest(req); err != nil {
		return err
	}
	if len(req.Texts) > MaxBatchSize {
		return fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}
	return nil
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
