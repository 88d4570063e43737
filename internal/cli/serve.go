package cli

import (
	"github.com/spf13/cobra"

	"github.com/codepathfinder/repocontext/internal/mcp"
	"github.com/codepathfinder/repocontext/internal/storage"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Run the Model Context Protocol server on stdin/stdout, exposing the
ingest_repository, retrieve_context, clear_repository and get_status tools.
Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.logger.Info("repocontext starting",
				"version", a.info.Version,
				"build_mode", storage.BuildMode,
				"sqlite_driver", storage.DriverName,
				"vector_extension", storage.VectorExtensionAvailable)

			p, err := buildPipeline(cmd.Context(), a.cfg, a.logger, nil)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			server, err := mcp.NewServer(mcp.Deps{
				Storage:   p.store,
				Ingester:  p.ingester,
				Retriever: p.retriever,
				Fetcher:   p.fetcher,
				Logger:    a.logger,
			})
			if err != nil {
				return err
			}

			err = server.Serve(cmd.Context())
			a.logger.Info("server stopped")
			return err
		},
	}
}
