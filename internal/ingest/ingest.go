package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codepathfinder/repocontext/internal/chunker"
	"github.com/codepathfinder/repocontext/internal/embedder"
	"github.com/codepathfinder/repocontext/internal/storage"
	"github.com/codepathfinder/repocontext/pkg/types"
)

// DefaultStoreBatchSize is the number of rows written per upsert call
const DefaultStoreBatchSize = 100

// Progress stages reported to Options.Progress
const (
	StageChunk = "chunk"
	StageEmbed = "embed"
	StageStore = "store"
	StagePrune = "prune"
)

// ProgressFunc receives progress updates during ingestion
type ProgressFunc func(stage string, done, total int)

// Options configures an Orchestrator
type Options struct {
	// EmbedBatchSize caps texts per embedding call. It is further capped by
	// the embedder's MaxBatchSize. Zero uses the embedder's limit.
	EmbedBatchSize int

	// StoreBatchSize is the number of rows per upsert (default 100)
	StoreBatchSize int

	// PruneStale deletes, for every ingested file, rows whose chunk index is
	// at or beyond the file's new chunk count
	PruneStale bool

	Progress ProgressFunc
	Logger   *slog.Logger
}

// Request is one ingestion run for a repository
type Request struct {
	RepoID       string
	RepoFullName string
	Documents    []types.Document
}

// DocumentSource loads the documents of a repository checkout
type DocumentSource interface {
	Fetch(ctx context.Context, root string) ([]types.Document, error)
}

// DirectoryRequest ingests the documents found under a local checkout
type DirectoryRequest struct {
	RepoID       string
	RepoFullName string
	Path         string
	Replace      bool // Clear all stored chunks of the repository first
}

// Orchestrator runs chunk -> embed -> store for a repository's documents.
// It keeps no state between calls; concurrent runs are safe.
type Orchestrator struct {
	chunker  *chunker.Chunker
	embedder embedder.Embedder
	store    storage.Storage

	embedBatchSize int
	storeBatchSize int
	pruneStale     bool
	progress       ProgressFunc
	logger         *slog.Logger
}

// New creates an Orchestrator. A nil chunker uses the default sizing.
func New(ch *chunker.Chunker, emb embedder.Embedder, store storage.Storage, opts Options) *Orchestrator {
	if ch == nil {
		ch = chunker.New(chunker.DefaultOptions())
	}

	embedBatch := emb.MaxBatchSize()
	if opts.EmbedBatchSize > 0 && (embedBatch <= 0 || opts.EmbedBatchSize < embedBatch) {
		embedBatch = opts.EmbedBatchSize
	}
	if embedBatch <= 0 {
		embedBatch = embedder.MaxBatchSize
	}

	storeBatch := opts.StoreBatchSize
	if storeBatch <= 0 {
		storeBatch = DefaultStoreBatchSize
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Orchestrator{
		chunker:        ch,
		embedder:       emb,
		store:          store,
		embedBatchSize: embedBatch,
		storeBatchSize: storeBatch,
		pruneStale:     opts.PruneStale,
		progress:       opts.Progress,
		logger:         logger,
	}
}

// Ingest chunks, embeds and stores the documents of one repository and
// returns the number of rows written
func (o *Orchestrator) Ingest(ctx context.Context, req Request) (*types.IngestResult, error) {
	startTime := time.Now()
	if strings.TrimSpace(req.RepoID) == "" {
		return nil, types.ErrInvalidRepoID
	}

	logger := o.logger.With("repo_id", req.RepoID, "repo", req.RepoFullName)
	result := &types.IngestResult{DocumentsProcessed: len(req.Documents)}

	chunks := o.chunker.ChunkAll(req.Documents)
	o.report(StageChunk, len(req.Documents), len(req.Documents))
	logger.Info("ingestion started",
		"documents", len(req.Documents),
		"chunks", len(chunks),
		"embed_batch", o.embedBatchSize,
		"store_batch", o.storeBatchSize)

	if len(chunks) > 0 {
		stored, err := o.embedAndStore(ctx, req, chunks, logger)
		result.ChunksStored = stored
		if err != nil {
			logger.Error("ingestion aborted", "stored", stored, "error", err)
			return nil, err
		}
	}

	if o.pruneStale {
		deleted, err := o.prune(ctx, req, chunks)
		if err != nil {
			logger.Error("stale chunk pruning failed", "error", err)
			return nil, err
		}
		result.StaleChunksDeleted = deleted
	}

	result.Duration = time.Since(startTime)
	logger.Info("ingestion finished",
		"chunks_stored", result.ChunksStored,
		"stale_deleted", result.StaleChunksDeleted,
		"duration", result.Duration)

	return result, nil
}

// embedAndStore embeds chunks batch by batch in input order and upserts the
// rows as soon as a full store batch is ready
func (o *Orchestrator) embedAndStore(ctx context.Context, req Request, chunks []types.Chunk, logger *slog.Logger) (int, error) {
	pending := make([]*types.StoredChunk, 0, o.storeBatchSize)
	stored := 0
	dimension := 0

	flush := func(rows []*types.StoredChunk) error {
		if err := o.store.UpsertChunks(ctx, rows); err != nil {
			return fmt.Errorf("failed to store chunks %d-%d: %w", stored, stored+len(rows)-1, err)
		}
		stored += len(rows)
		o.report(StageStore, stored, len(chunks))
		return nil
	}

	for start := 0; start < len(chunks); start += o.embedBatchSize {
		end := start + o.embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		vectors, err := o.embedBatch(ctx, batch)
		if err != nil {
			return stored, fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
		}
		logger.Debug("embedded batch", "from", start, "to", end-1)
		o.report(StageEmbed, end, len(chunks))

		for i, c := range batch {
			if dimension == 0 {
				dimension = len(vectors[i])
			}
			if len(vectors[i]) != dimension {
				return stored, fmt.Errorf("%w: chunk %s#%d has %d dimensions, expected %d",
					types.ErrDimensionMismatch, c.FilePath, c.ChunkIndex, len(vectors[i]), dimension)
			}
			pending = append(pending, types.NewStoredChunk(req.RepoID, req.RepoFullName, c, vectors[i]))
		}

		for len(pending) >= o.storeBatchSize {
			if err := flush(pending[:o.storeBatchSize]); err != nil {
				return stored, err
			}
			pending = append(pending[:0], pending[o.storeBatchSize:]...)
		}
	}

	if len(pending) > 0 {
		if err := flush(pending); err != nil {
			return stored, err
		}
	}

	return stored, nil
}

// embedBatch returns one vector per chunk in the same order as the chunks,
// regardless of the order the service answered in
func (o *Orchestrator) embedBatch(ctx context.Context, batch []types.Chunk) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	resp, err := o.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
	if err != nil {
		return nil, err
	}

	aligned, err := embedder.AlignBatch(resp.Embeddings, len(texts))
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(aligned))
	for i, emb := range aligned {
		if len(emb.Vector) == 0 {
			return nil, fmt.Errorf("%w: empty vector at index %d", types.ErrEmbeddingMismatch, i)
		}
		vectors[i] = emb.Vector
	}
	return vectors, nil
}

// prune removes rows left over from earlier runs in which a file had more chunks
func (o *Orchestrator) prune(ctx context.Context, req Request, chunks []types.Chunk) (int, error) {
	counts := make(map[string]int, len(req.Documents))
	for _, c := range chunks {
		if c.ChunkIndex+1 > counts[c.FilePath] {
			counts[c.FilePath] = c.ChunkIndex + 1
		}
	}

	seen := make(map[string]bool, len(req.Documents))
	total := 0
	for i, doc := range req.Documents {
		if seen[doc.FilePath] {
			continue
		}
		seen[doc.FilePath] = true

		deleted, err := o.store.DeleteChunksFrom(ctx, req.RepoID, doc.FilePath, counts[doc.FilePath])
		if err != nil {
			return total, fmt.Errorf("failed to prune %s: %w", doc.FilePath, err)
		}
		total += int(deleted)
		o.report(StagePrune, i+1, len(req.Documents))
	}
	return total, nil
}

// ClearChunks removes every stored chunk of a repository
func (o *Orchestrator) ClearChunks(ctx context.Context, repoID string) (int64, error) {
	if strings.TrimSpace(repoID) == "" {
		return 0, types.ErrInvalidRepoID
	}

	deleted, err := o.store.DeleteRepoChunks(ctx, repoID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear repository %s: %w", repoID, err)
	}
	o.logger.Info("repository cleared", "repo_id", repoID, "deleted", deleted)
	return deleted, nil
}

// IngestDirectory fetches documents from a local checkout and ingests them.
// With Replace set the repository is cleared first.
func (o *Orchestrator) IngestDirectory(ctx context.Context, src DocumentSource, req DirectoryRequest) (*types.IngestResult, error) {
	if strings.TrimSpace(req.RepoID) == "" {
		return nil, types.ErrInvalidRepoID
	}

	docs, err := src.Fetch(ctx, req.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch documents from %s: %w", req.Path, err)
	}

	if req.Replace {
		if _, err := o.ClearChunks(ctx, req.RepoID); err != nil {
			return nil, err
		}
	}

	return o.Ingest(ctx, Request{
		RepoID:       req.RepoID,
		RepoFullName: req.RepoFullName,
		Documents:    docs,
	})
}

func (o *Orchestrator) report(stage string, done, total int) {
	if o.progress != nil {
		o.progress(stage, done, total)
	}
}
