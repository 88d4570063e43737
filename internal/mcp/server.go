package mcp

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/codepathfinder/repocontext/internal/ingest"
	"github.com/codepathfinder/repocontext/internal/retriever"
	"github.com/codepathfinder/repocontext/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "repocontext"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Deps are the pipeline components the tools call into. The caller owns
// them and closes the storage after Serve returns.
type Deps struct {
	Storage   storage.Storage
	Ingester  *ingest.Orchestrator
	Retriever *retriever.Retriever
	Fetcher   ingest.DocumentSource
	Logger    *slog.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	storage   storage.Storage
	ingester  *ingest.Orchestrator
	retriever *retriever.Retriever
	fetcher   ingest.DocumentSource
	locks     *ingest.RepoLocks
	logger    *slog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(deps Deps) (*Server, error) {
	if deps.Storage == nil || deps.Ingester == nil || deps.Retriever == nil || deps.Fetcher == nil {
		return nil, errors.New("storage, ingester, retriever and fetcher are required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		mcp:       server.NewMCPServer(ServerName, ServerVersion),
		storage:   deps.Storage,
		ingester:  deps.Ingester,
		retriever: deps.Retriever,
		fetcher:   deps.Fetcher,
		locks:     ingest.NewRepoLocks(),
		logger:    logger,
	}

	s.registerTools()

	return s, nil
}

// Serve runs the MCP server on stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio", "name", ServerName, "version", ServerVersion)

	stdio := server.NewStdioServer(s.mcp)
	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(ingestRepositoryTool(), s.handleIngestRepository)
	s.mcp.AddTool(retrieveContextTool(), s.handleRetrieveContext)
	s.mcp.AddTool(clearRepositoryTool(), s.handleClearRepository)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
