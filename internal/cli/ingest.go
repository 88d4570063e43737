package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/codepathfinder/repocontext/internal/ingest"
)

type ingestFlags struct {
	repoID   string
	repoName string
	replace  bool
	prune    bool
	quiet    bool
}

func newIngestCmd(a *app) *cobra.Command {
	var f ingestFlags

	cmd := &cobra.Command{
		Use:   "ingest [path]",
		Short: "Ingest the documentation of a repository checkout",
		Long: `Chunk, embed and store the contributor documentation found in a local
checkout. Re-ingesting replaces chunks by (repository, file, index).

Examples:
  repocontext ingest --repo-id 42 --repo-name acme/widgets .
  repocontext ingest --repo-id 42 --replace /srv/checkouts/widgets`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runIngest(cmd, args, f)
		},
	}

	cmd.Flags().StringVar(&f.repoID, "repo-id", "", "repository identifier (required)")
	cmd.Flags().StringVar(&f.repoName, "repo-name", "", "repository display name, e.g. owner/repo")
	cmd.Flags().BoolVar(&f.replace, "replace", false, "delete all stored chunks of the repository first")
	cmd.Flags().BoolVar(&f.prune, "prune", false, "delete chunks left over from longer versions of ingested files")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "do not render progress")
	_ = cmd.MarkFlagRequired("repo-id")

	return cmd
}

func (a *app) runIngest(cmd *cobra.Command, args []string, f ingestFlags) error {
	path := a.rootDir
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	if f.prune {
		a.cfg.Ingest.PruneStale = true
	}

	var progress *ingestProgress
	var progressFn ingest.ProgressFunc
	if !f.quiet {
		progress = &ingestProgress{w: cmd.ErrOrStderr()}
		progressFn = progress.update
	}

	p, err := buildPipeline(cmd.Context(), a.cfg, a.logger, progressFn)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	fmt.Fprintf(cmd.ErrOrStderr(), "Scanning %s...\n", path)

	result, err := p.ingester.IngestDirectory(cmd.Context(), p.fetcher, ingest.DirectoryRequest{
		RepoID:       f.repoID,
		RepoFullName: f.repoName,
		Path:         path,
		Replace:      f.replace,
	})
	if progress != nil {
		progress.finish()
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Ingested %d documents into %d chunks for %s\n",
		result.DocumentsProcessed, result.ChunksStored, f.repoID)
	if result.StaleChunksDeleted > 0 {
		fmt.Fprintf(out, "Removed %d stale chunks\n", result.StaleChunksDeleted)
	}
	fmt.Fprintf(out, "Duration: %s\n", formatDuration(result.Duration))

	return nil
}

// ingestProgress renders embedding progress on a single bar
type ingestProgress struct {
	w    io.Writer
	bar  *progressbar.ProgressBar
	done bool
}

func (p *ingestProgress) update(stage string, done, total int) {
	switch stage {
	case ingest.StageChunk:
		fmt.Fprintf(p.w, "Chunking %d documents\n", total)
	case ingest.StageEmbed:
		p.ensureBar(total)
		_ = p.bar.Set(done)
	case ingest.StageStore:
		p.ensureBar(total)
		p.bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] stored %d", done))
	}
}

func (p *ingestProgress) ensureBar(total int) {
	if p.bar != nil {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			p.done = true
			fmt.Fprintln(p.w)
		}),
	)
}

func (p *ingestProgress) finish() {
	if p.bar != nil && !p.done {
		_ = p.bar.Finish()
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
