package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newClearCmd(a *app) *cobra.Command {
	var repoID string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored chunk of a repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildPipeline(cmd.Context(), a.cfg, a.logger, nil)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			deleted, err := p.ingester.ClearChunks(cmd.Context(), repoID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d chunks for %s\n", deleted, repoID)
			return nil
		},
	}

	cmd.Flags().StringVar(&repoID, "repo-id", "", "repository identifier (required)")
	_ = cmd.MarkFlagRequired("repo-id")

	return cmd
}
