package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/codepathfinder/repocontext/internal/chunker"
	"github.com/codepathfinder/repocontext/internal/config"
	"github.com/codepathfinder/repocontext/internal/embedder"
	"github.com/codepathfinder/repocontext/internal/fetcher"
	"github.com/codepathfinder/repocontext/internal/ingest"
	"github.com/codepathfinder/repocontext/internal/retriever"
	"github.com/codepathfinder/repocontext/internal/storage"
)

// pipeline holds the components built from one configuration
type pipeline struct {
	store     storage.Storage
	embedder  embedder.Embedder
	ingester  *ingest.Orchestrator
	retriever *retriever.Retriever
	fetcher   *fetcher.LocalFetcher
}

// buildPipeline opens the store and creates every component. progress may be nil.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, progress ingest.ProgressFunc) (*pipeline, error) {
	storeCfg, err := cfg.StorageOptions()
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", storeCfg.Driver, err)
	}

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	fetchOpts := cfg.FetcherOptions()
	fetchOpts.Logger = logger
	f, err := fetcher.New(fetchOpts)
	if err != nil {
		_ = emb.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize fetcher: %w", err)
	}

	ingestOpts := cfg.IngestOptions()
	ingestOpts.Logger = logger
	ingestOpts.Progress = progress

	retrieveOpts := cfg.RetrieverOptions()
	retrieveOpts.Logger = logger

	logger.Debug("pipeline ready",
		"storage", storeCfg.Driver,
		"provider", emb.Provider(),
		"model", emb.Model(),
		"dimension", emb.Dimension())

	return &pipeline{
		store:     store,
		embedder:  emb,
		ingester:  ingest.New(chunker.New(cfg.ChunkerOptions()), emb, store, ingestOpts),
		retriever: retriever.New(emb, store, retrieveOpts),
		fetcher:   f,
	}, nil
}

// Close releases the embedder and the store
func (p *pipeline) Close() error {
	return errors.Join(p.embedder.Close(), p.store.Close())
}
