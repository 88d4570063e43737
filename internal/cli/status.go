package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/codepathfinder/repocontext/internal/storage"
)

func newStatusCmd(a *app) *cobra.Command {
	var repoID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what is stored for a repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildPipeline(cmd.Context(), a.cfg, a.logger, nil)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			out := cmd.OutOrStdout()

			status, err := p.store.GetStatus(cmd.Context(), repoID)
			if errors.Is(err, storage.ErrNotFound) {
				fmt.Fprintf(out, "Repository %s is not ingested\n", repoID)
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}

			fmt.Fprintf(out, "Repository:    %s\n", status.RepoID)
			if status.RepoFullName != "" {
				fmt.Fprintf(out, "Name:          %s\n", status.RepoFullName)
			}
			fmt.Fprintf(out, "Files:         %d\n", status.FilesCount)
			fmt.Fprintf(out, "Chunks:        %d\n", status.ChunksCount)
			fmt.Fprintf(out, "Dimension:     %d\n", status.Dimension)
			fmt.Fprintf(out, "Last ingested: %s\n", status.LastIngestedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Backend:       %s (%.2f MB)\n", status.Backend, status.IndexSizeMB)
			return nil
		},
	}

	cmd.Flags().StringVar(&repoID, "repo-id", "", "repository identifier (required)")
	_ = cmd.MarkFlagRequired("repo-id")

	return cmd
}
