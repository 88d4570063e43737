// Package fetcher loads the documentation files of a repository checkout
// as documents ready for ingestion.
package fetcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/codepathfinder/repocontext/pkg/types"
)

// DefaultMaxFileBytes skips files larger than 1 MiB
const DefaultMaxFileBytes = 1 << 20

// DefaultIncludes selects the files contributors read before opening an issue or PR
var DefaultIncludes = []string{
	"README*",
	"CONTRIBUTING*",
	".github/CONTRIBUTING*",
	".github/PULL_REQUEST_TEMPLATE*",
	"CODE_OF_CONDUCT*",
	"docs/**/*.md",
	"docs/**/*.txt",
}

// DefaultExcludes prunes dependency and VCS directories
var DefaultExcludes = []string{
	".git",
	"**/node_modules",
	"**/vendor",
}

// Options configures a LocalFetcher. Empty fields take the defaults.
type Options struct {
	Include      []string // doublestar patterns relative to the root
	Exclude      []string // matched against directories and files
	MaxFileBytes int64
	Workers      int
	Logger       *slog.Logger
}

// LocalFetcher reads documents from a directory on disk
type LocalFetcher struct {
	includes     []string
	excludes     []string
	maxFileBytes int64
	workers      int
	logger       *slog.Logger
}

// New creates a LocalFetcher
func New(opts Options) (*LocalFetcher, error) {
	if len(opts.Include) == 0 {
		opts.Include = DefaultIncludes
	}
	if opts.Exclude == nil {
		opts.Exclude = DefaultExcludes
	}
	for _, p := range append(append([]string{}, opts.Include...), opts.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = DefaultMaxFileBytes
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &LocalFetcher{
		includes:     opts.Include,
		excludes:     opts.Exclude,
		maxFileBytes: opts.MaxFileBytes,
		workers:      opts.Workers,
		logger:       opts.Logger,
	}, nil
}

// Fetch returns the matching documents under root, sorted by path.
// Document paths are relative to root and slash-separated.
func (f *LocalFetcher) Fetch(ctx context.Context, root string) ([]types.Document, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	paths, err := f.discover(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	docs := make([]*types.Document, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)

	for i, rel := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", rel, err)
			}
			if !utf8.Valid(data) {
				f.logger.Debug("skipping non-text file", "path", rel)
				return nil
			}
			docs[i] = &types.Document{FilePath: rel, Content: string(data)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make([]types.Document, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			result = append(result, *d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FilePath < result[j].FilePath })

	f.logger.Info("fetched documents", "root", root, "documents", len(result))
	return result, nil
}

// discover walks root and returns the relative paths of matching files
func (f *LocalFetcher) discover(ctx context.Context, root string) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if matchAny(f.excludes, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !matchAny(f.includes, rel) || matchAny(f.excludes, rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > f.maxFileBytes {
			f.logger.Debug("skipping large file", "path", rel, "size", info.Size())
			return nil
		}

		paths = append(paths, rel)
		return nil
	})

	return paths, err
}

func matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if matched, err := doublestar.Match(pattern, path); err == nil && matched {
			return true
		}
	}
	return false
}
