// Package config loads repocontext settings from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codepathfinder/repocontext/internal/chunker"
	"github.com/codepathfinder/repocontext/internal/embedder"
	"github.com/codepathfinder/repocontext/internal/fetcher"
	"github.com/codepathfinder/repocontext/internal/ingest"
	"github.com/codepathfinder/repocontext/internal/retriever"
	"github.com/codepathfinder/repocontext/internal/storage"
)

// Environment overrides
const (
	EnvDBPath        = "REPOCONTEXT_DB_PATH"
	EnvStorageDriver = "REPOCONTEXT_STORAGE_DRIVER"
	EnvDSN           = "REPOCONTEXT_DSN"
	EnvLogLevel      = "REPOCONTEXT_LOG_LEVEL"
	EnvProvider      = embedder.EnvProvider
)

// FileName is the config file looked up by LoadFromDir
const FileName = "repocontext.yaml"

// DefaultDBPath is where the sqlite and bolt backends keep their file
const DefaultDBPath = "~/.repocontext/repocontext.db"

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration for repocontext.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StorageConfig selects the vector store backend.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite", "postgres", "bolt"
	Path   string `yaml:"path"`   // sqlite and bolt file
	DSN    string `yaml:"dsn"`    // postgres connection string
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"` // "jina", "openai", "local"; empty detects from env
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url"`    // OpenAI-compatible or Jina endpoint
	APIKeyEnv  string        `yaml:"api_key_env"` // Environment variable holding the API key
	Dimension  int           `yaml:"dimension"`
	CacheSize  int           `yaml:"cache_size"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// ChunkingConfig holds chunk sizing.
type ChunkingConfig struct {
	ChunkTokens   int `yaml:"chunk_tokens"`
	OverlapTokens int `yaml:"overlap_tokens"`
	CharsPerToken int `yaml:"chars_per_token"`
}

// IngestConfig holds ingestion batching.
type IngestConfig struct {
	EmbedBatchSize int  `yaml:"embed_batch_size"`
	StoreBatchSize int  `yaml:"store_batch_size"`
	PruneStale     bool `yaml:"prune_stale"`
}

// RetrieveConfig holds retrieval defaults.
type RetrieveConfig struct {
	TopK          int     `yaml:"top_k"`
	MinSimilarity float64 `yaml:"min_similarity"`
	MaxQueryChars int     `yaml:"max_query_chars"`
}

// FetchConfig selects documents in a local checkout.
type FetchConfig struct {
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
	MaxFileBytes int64    `yaml:"max_file_bytes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver: storage.DriverSQLite,
			Path:   DefaultDBPath,
		},
		Embedding: EmbeddingConfig{
			Timeout:    embedder.DefaultTimeout,
			MaxRetries: embedder.MaxRetries,
		},
		Chunking: ChunkingConfig{
			ChunkTokens:   chunker.DefaultChunkTokens,
			OverlapTokens: chunker.DefaultOverlapTokens,
			CharsPerToken: chunker.CharsPerToken,
		},
		Ingest: IngestConfig{
			EmbedBatchSize: embedder.MaxBatchSize,
			StoreBatchSize: ingest.DefaultStoreBatchSize,
		},
		Retrieve: RetrieveConfig{
			TopK:          retriever.DefaultLimit,
			MinSimilarity: retriever.DefaultMinSimilarity,
			MaxQueryChars: retriever.DefaultMaxQueryChars,
		},
		Fetch: FetchConfig{
			Includes:     append([]string(nil), fetcher.DefaultIncludes...),
			Excludes:     append([]string(nil), fetcher.DefaultExcludes...),
			MaxFileBytes: fetcher.DefaultMaxFileBytes,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file on top of the defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads repocontext.yaml, then .repocontext/config.yaml, from dir
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".repocontext", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv overrides fields from REPOCONTEXT_* environment variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv(EnvStorageDriver); v != "" {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v := os.Getenv(EnvDSN); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv(EnvProvider); v != "" {
		c.Embedding.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case storage.DriverSQLite, storage.DriverBolt:
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: storage.path is required for %s", ErrInvalidConfig, c.Storage.Driver)
		}
	case storage.DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("%w: storage.dsn is required for postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}

	switch c.Embedding.Provider {
	case "", embedder.ProviderJina, embedder.ProviderOpenAI, embedder.ProviderLocal:
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, c.Embedding.Provider)
	}

	if c.Chunking.ChunkTokens <= 0 {
		return fmt.Errorf("%w: chunking.chunk_tokens must be positive", ErrInvalidConfig)
	}
	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.ChunkTokens {
		return fmt.Errorf("%w: chunking.overlap_tokens must be in [0, chunk_tokens)", ErrInvalidConfig)
	}

	if c.Ingest.EmbedBatchSize < 0 || c.Ingest.EmbedBatchSize > embedder.MaxBatchSize {
		return fmt.Errorf("%w: ingest.embed_batch_size must be at most %d", ErrInvalidConfig, embedder.MaxBatchSize)
	}

	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("%w: retrieve.top_k must be positive", ErrInvalidConfig)
	}
	if c.Retrieve.MinSimilarity < 0 || c.Retrieve.MinSimilarity > 1 {
		return fmt.Errorf("%w: retrieve.min_similarity must be in [0, 1]", ErrInvalidConfig)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Logging.Format)
	}

	return nil
}

// StorageOptions returns the storage.Open settings with "~" expanded
func (c *Config) StorageOptions() (storage.Config, error) {
	path, err := ExpandHome(c.Storage.Path)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Driver: c.Storage.Driver, Path: path, DSN: c.Storage.DSN}, nil
}

// EmbedderConfig returns the embedder.New settings
func (c *Config) EmbedderConfig() embedder.Config {
	cfg := embedder.Config{
		Provider:   c.Embedding.Provider,
		BaseURL:    c.Embedding.BaseURL,
		Model:      c.Embedding.Model,
		Dimension:  c.Embedding.Dimension,
		CacheSize:  c.Embedding.CacheSize,
		Timeout:    c.Embedding.Timeout,
		MaxRetries: c.Embedding.MaxRetries,
	}
	if c.Embedding.APIKeyEnv != "" {
		cfg.APIKey = os.Getenv(c.Embedding.APIKeyEnv)
	}
	return cfg
}

// ChunkerOptions returns the chunk sizing
func (c *Config) ChunkerOptions() chunker.Options {
	return chunker.Options{
		ChunkTokens:   c.Chunking.ChunkTokens,
		OverlapTokens: c.Chunking.OverlapTokens,
		CharsPerToken: c.Chunking.CharsPerToken,
	}
}

// IngestOptions returns orchestrator options without progress or logger
func (c *Config) IngestOptions() ingest.Options {
	return ingest.Options{
		EmbedBatchSize: c.Ingest.EmbedBatchSize,
		StoreBatchSize: c.Ingest.StoreBatchSize,
		PruneStale:     c.Ingest.PruneStale,
	}
}

// RetrieverOptions returns retriever defaults without a logger
func (c *Config) RetrieverOptions() retriever.Options {
	return retriever.Options{
		Limit:         c.Retrieve.TopK,
		MinSimilarity: c.Retrieve.MinSimilarity,
		MaxQueryChars: c.Retrieve.MaxQueryChars,
	}
}

// FetcherOptions returns document selection without a logger
func (c *Config) FetcherOptions() fetcher.Options {
	return fetcher.Options{
		Include:      c.Fetch.Includes,
		Exclude:      c.Fetch.Excludes,
		MaxFileBytes: c.Fetch.MaxFileBytes,
	}
}

// ExpandHome replaces a leading "~" with the user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
