package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/codepathfinder/repocontext/internal/ingest"
	"github.com/codepathfinder/repocontext/internal/retriever"
	"github.com/codepathfinder/repocontext/internal/storage"
	"github.com/codepathfinder/repocontext/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodeIngestInProgress = -32002 // Another ingestion of the repository is running
	ErrorCodeEmptyQuery       = -32004 // Issue title and body are both empty
)

// handleIngestRepository handles the ingest_repository tool invocation
func (s *Server) handleIngestRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repoID, err := requireRepoID(args)
	if err != nil {
		return nil, err
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	if !s.locks.TryAcquire(repoID) {
		return nil, newMCPError(ErrorCodeIngestInProgress, "repository is already being ingested", map[string]interface{}{
			"repo_id": repoID,
		})
	}
	defer s.locks.Release(repoID)

	result, err := s.ingester.IngestDirectory(ctx, s.fetcher, ingest.DirectoryRequest{
		RepoID:       repoID,
		RepoFullName: getStringDefault(args, "repo_full_name", ""),
		Path:         path,
		Replace:      getBoolDefault(args, "replace", false),
	})
	if err != nil {
		s.logger.Error("ingest_repository failed", "repo_id", repoID, "error", err)
		return nil, newMCPError(ErrorCodeInternalError, "ingestion failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"ingested":             true,
		"repo_id":              repoID,
		"documents_processed":  result.DocumentsProcessed,
		"chunks_stored":        result.ChunksStored,
		"stale_chunks_deleted": result.StaleChunksDeleted,
		"duration_ms":          result.Duration.Milliseconds(),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRetrieveContext handles the retrieve_context tool invocation
func (s *Server) handleRetrieveContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repoID, err := requireRepoID(args)
	if err != nil {
		return nil, err
	}

	title := getStringDefault(args, "issue_title", "")
	body := getStringDefault(args, "issue_body", "")
	if strings.TrimSpace(title) == "" && strings.TrimSpace(body) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "issue_title or issue_body is required", map[string]interface{}{
			"param":  "issue_title",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 0)
	if limit < 0 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	minSimilarity := getFloatDefault(args, "min_similarity", 0)
	if minSimilarity < 0 || minSimilarity > 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "min_similarity must be between 0 and 1", map[string]interface{}{
			"param": "min_similarity",
			"value": minSimilarity,
		})
	}

	result, err := s.retriever.Retrieve(ctx, retriever.Request{
		RepoID:        repoID,
		IssueTitle:    title,
		IssueBody:     body,
		Limit:         limit,
		MinSimilarity: minSimilarity,
	})
	if errors.Is(err, types.ErrEmptyQuery) {
		return nil, newMCPError(ErrorCodeEmptyQuery, "issue text is empty", nil)
	}
	if err != nil {
		s.logger.Error("retrieve_context failed", "repo_id", repoID, "error", err)
		return nil, newMCPError(ErrorCodeInternalError, "retrieval failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	chunks := make([]map[string]interface{}, 0, len(result.Chunks))
	for _, c := range result.Chunks {
		chunks = append(chunks, map[string]interface{}{
			"file_path":   c.FilePath,
			"chunk_index": c.ChunkIndex,
			"similarity":  c.Similarity,
			"content":     c.Content,
		})
	}

	response := map[string]interface{}{
		"repo_id":      repoID,
		"empty":        result.Empty,
		"context_text": result.ContextText,
		"chunks":       chunks,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleClearRepository handles the clear_repository tool invocation
func (s *Server) handleClearRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repoID, err := requireRepoID(args)
	if err != nil {
		return nil, err
	}

	if !s.locks.TryAcquire(repoID) {
		return nil, newMCPError(ErrorCodeIngestInProgress, "repository is being ingested", map[string]interface{}{
			"repo_id": repoID,
		})
	}
	defer s.locks.Release(repoID)

	deleted, err := s.ingester.ClearChunks(ctx, repoID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to clear repository", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"cleared":        true,
		"repo_id":        repoID,
		"chunks_deleted": deleted,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repoID, err := requireRepoID(args)
	if err != nil {
		return nil, err
	}

	status, err := s.storage.GetStatus(ctx, repoID)
	if errors.Is(err, storage.ErrNotFound) {
		response := map[string]interface{}{
			"ingested": false,
			"repo_id":  repoID,
			"message":  "Repository not ingested. Use ingest_repository to ingest its documentation.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"ingested": true,
		"repo": map[string]interface{}{
			"repo_id":          status.RepoID,
			"repo_full_name":   status.RepoFullName,
			"last_ingested_at": status.LastIngestedAt.Format("2006-01-02T15:04:05Z07:00"),
		},
		"statistics": map[string]interface{}{
			"files_count":   status.FilesCount,
			"chunks_count":  status.ChunksCount,
			"dimension":     status.Dimension,
			"backend":       status.Backend,
			"index_size_mb": fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// requireRepoID extracts the mandatory repo_id parameter
func requireRepoID(args map[string]interface{}) (string, error) {
	repoID, ok := args["repo_id"].(string)
	if !ok || strings.TrimSpace(repoID) == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "repo_id parameter is required", map[string]interface{}{
			"param":  "repo_id",
			"reason": "missing or empty",
		})
	}
	return repoID, nil
}

// validatePath checks that path is an absolute, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	switch val := args[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
