// Package embedder turns text into vector embeddings through pluggable providers.
//
// Three providers are available: Jina AI and OpenAI (or any OpenAI-compatible
// endpoint via BaseURL) over HTTP, and a local feature-hashing provider for
// offline use.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: "openai"})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: []string{chunk0, chunk1, chunk2},
//	})
//
// # Ordering
//
// Each returned Embedding carries the Index of the input text it belongs to.
// Callers that need input order must not rely on slice position; use
// AlignBatch, which also rejects duplicate or missing indices:
//
//	vectors, err := embedder.AlignBatch(resp.Embeddings, len(texts))
//
// # Provider Selection
//
// When Config.Provider is empty the provider is picked from the environment:
//
//  1. REPOCONTEXT_EMBEDDING_PROVIDER if set
//  2. jina if JINA_API_KEY is set
//  3. openai if OPENAI_API_KEY is set
//  4. local otherwise
//
// # Retries and Caching
//
// Remote providers retry transient failures (network errors, 429 and 5xx)
// with exponential backoff; Config.MaxRetries of 1 disables retry. Client
// errors are returned immediately, wrapped in ErrProviderFailed.
//
// Setting Config.CacheSize enables an LRU cache keyed by the SHA-256 of the
// text. Only cache misses are sent to the provider.
package embedder
