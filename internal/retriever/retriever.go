package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/codepathfinder/repocontext/internal/embedder"
	"github.com/codepathfinder/repocontext/internal/storage"
	"github.com/codepathfinder/repocontext/pkg/types"
)

const (
	// DefaultLimit is the number of chunks returned when none is requested
	DefaultLimit = 5

	// DefaultMinSimilarity drops results that are noise rather than weak signal
	DefaultMinSimilarity = 0.7

	// DefaultMaxQueryChars bounds the text sent to the embedding service
	DefaultMaxQueryChars = 8000

	chunkSeparator = "\n\n"
	fileSeparator  = "\n\n---\n\n"
)

// Options configures a Retriever. Zero values take the defaults.
type Options struct {
	Limit         int
	MinSimilarity float64
	MaxQueryChars int
	Logger        *slog.Logger
}

// Request asks for the documentation context of one issue
type Request struct {
	RepoID       string
	RepoFullName string // Optional, named in the preamble
	IssueTitle   string
	IssueBody    string

	// Per-request overrides; zero or negative values use the Retriever's options
	Limit         int
	MinSimilarity float64
}

// Retriever finds and formats the chunks most relevant to an issue
type Retriever struct {
	embedder embedder.Embedder
	store    storage.Storage

	limit         int
	minSimilarity float64
	maxQueryChars int
	logger        *slog.Logger
}

// New creates a Retriever
func New(emb embedder.Embedder, store storage.Storage, opts Options) *Retriever {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.MinSimilarity <= 0 {
		opts.MinSimilarity = DefaultMinSimilarity
	}
	if opts.MaxQueryChars <= 0 {
		opts.MaxQueryChars = DefaultMaxQueryChars
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Retriever{
		embedder:      emb,
		store:         store,
		limit:         opts.Limit,
		minSimilarity: opts.MinSimilarity,
		maxQueryChars: opts.MaxQueryChars,
		logger:        opts.Logger,
	}
}

// Retrieve returns the chunks of req.RepoID closest to the issue and the
// formatted context text
func (r *Retriever) Retrieve(ctx context.Context, req Request) (*types.RetrievalResult, error) {
	if strings.TrimSpace(req.RepoID) == "" {
		return nil, types.ErrInvalidRepoID
	}

	query := BuildQuery(req.IssueTitle, req.IssueBody, r.maxQueryChars)
	if query == "" {
		return nil, types.ErrEmptyQuery
	}

	limit := req.Limit
	if limit <= 0 {
		limit = r.limit
	}
	minSimilarity := req.MinSimilarity
	if minSimilarity <= 0 {
		minSimilarity = r.minSimilarity
	}

	emb, err := r.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	found, err := r.store.SearchChunks(ctx, storage.SearchQuery{
		RepoID:        req.RepoID,
		Vector:        emb.Vector,
		Limit:         limit,
		MinSimilarity: minSimilarity,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	chunks := make([]types.RetrievedChunk, 0, len(found))
	for _, c := range found {
		if c.Similarity < minSimilarity {
			continue
		}
		chunks = append(chunks, c)
		if len(chunks) == limit {
			break
		}
	}

	r.logger.Debug("retrieved context",
		"repo_id", req.RepoID,
		"query_chars", len(query),
		"candidates", len(found),
		"kept", len(chunks),
		"min_similarity", minSimilarity)

	if len(chunks) == 0 {
		return &types.RetrievalResult{Chunks: []types.RetrievedChunk{}, ContextText: "", Empty: true}, nil
	}

	repoName := req.RepoFullName
	if repoName == "" {
		repoName = chunks[0].RepoFullName
	}

	return &types.RetrievalResult{
		Chunks:      chunks,
		ContextText: FormatContext(repoName, chunks),
		Empty:       false,
	}, nil
}

// BuildQuery joins the trimmed title and body with a blank line and cuts
// the result to at most maxChars bytes without splitting a rune. An empty
// body yields the title alone.
func BuildQuery(title, body string, maxChars int) string {
	query := strings.TrimSpace(title)
	if body = strings.TrimSpace(body); body != "" {
		if query == "" {
			query = body
		} else {
			query = query + "\n\n" + body
		}
	}

	if maxChars > 0 && len(query) > maxChars {
		cut := maxChars
		for cut > 0 && !utf8.RuneStart(query[cut]) {
			cut--
		}
		query = strings.TrimSpace(query[:cut])
	}
	return query
}

// FormatContext groups chunks by file, files ordered by path and chunks by
// index, under a preamble naming the repository when known. The input slice
// is not modified.
func FormatContext(repoFullName string, chunks []types.RetrievedChunk) string {
	if len(chunks) == 0 {
		return ""
	}

	byFile := make(map[string][]types.RetrievedChunk)
	for _, c := range chunks {
		byFile[c.FilePath] = append(byFile[c.FilePath], c)
	}

	files := make([]string, 0, len(byFile))
	for path := range byFile {
		files = append(files, path)
	}
	sort.Strings(files)

	sections := make([]string, 0, len(files))
	for _, path := range files {
		fileChunks := byFile[path]
		sort.SliceStable(fileChunks, func(i, j int) bool {
			return fileChunks[i].ChunkIndex < fileChunks[j].ChunkIndex
		})

		parts := make([]string, len(fileChunks))
		for i, c := range fileChunks {
			parts[i] = c.Content
		}
		sections = append(sections, "### "+path+chunkSeparator+strings.Join(parts, chunkSeparator))
	}

	return preamble(repoFullName) + chunkSeparator + strings.Join(sections, fileSeparator)
}

func preamble(repoFullName string) string {
	if repoFullName == "" {
		return "Relevant excerpts from the repository documentation:"
	}
	return fmt.Sprintf("Relevant excerpts from the documentation of %s:", repoFullName)
}
