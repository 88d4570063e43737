// Package cli implements the repocontext command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/codepathfinder/repocontext/internal/config"
	"github.com/codepathfinder/repocontext/internal/logging"
)

// BuildInfo is stamped into the binary at link time
type BuildInfo struct {
	Version   string
	BuildTime string
}

// app carries the state shared by all commands of one invocation
type app struct {
	info     BuildInfo
	cfgFile  string
	rootDir  string
	logLevel string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd builds the command tree
func NewRootCmd(info BuildInfo) *cobra.Command {
	a := &app{info: info}

	rootCmd := &cobra.Command{
		Use:   "repocontext",
		Short: "Retrieve repository documentation relevant to an issue",
		Long: `repocontext ingests the contributor documentation of repositories
(README, CONTRIBUTING, docs/) into a vector store and retrieves the
excerpts most relevant to an issue, formatted for an LLM prompt.

Example usage:
  repocontext ingest --repo-id 42 --repo-name acme/widgets ./widgets
  repocontext retrieve --repo-id 42 --title "Tests fail on Windows"
  repocontext serve                 # MCP server on stdio`,
		SilenceUsage:      true,
		PersistentPreRunE: a.loadConfig,
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./repocontext.yaml)")
	rootCmd.PersistentFlags().StringVarP(&a.rootDir, "dir", "d", "", "directory to look for the config file in (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCmd(a),
		newIngestCmd(a),
		newRetrieveCmd(a),
		newClearCmd(a),
		newStatusCmd(a),
		newVersionCmd(a),
	)

	return rootCmd
}

// Execute runs the command line with ctx cancelled on shutdown
func Execute(ctx context.Context, info BuildInfo) error {
	return NewRootCmd(info).ExecuteContext(ctx)
}

func (a *app) loadConfig(cmd *cobra.Command, args []string) error {
	var err error

	if a.rootDir == "" {
		a.rootDir, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	if a.cfgFile != "" {
		a.cfg, err = config.Load(a.cfgFile)
	} else {
		a.cfg, err = config.LoadFromDir(a.rootDir)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a.cfg.ApplyEnv()
	if a.logLevel != "" {
		a.cfg.Logging.Level = a.logLevel
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	a.logger, err = logging.New(logging.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	return nil
}
