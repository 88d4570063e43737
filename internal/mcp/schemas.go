package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// ingestRepositoryTool returns the tool definition for ingest_repository
func ingestRepositoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_repository",
		Description: "Ingest the contributor documentation of a local repository checkout so it can be retrieved for issues",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repo_id": map[string]interface{}{
					"type":        "string",
					"description": "Identifier that scopes the stored chunks",
				},
				"repo_full_name": map[string]interface{}{
					"type":        "string",
					"description": "Display name such as owner/repo, used in the context preamble",
				},
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the repository checkout",
				},
				"replace": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, delete every stored chunk of the repository before ingesting",
					"default":     false,
				},
			},
			Required: []string{"repo_id", "path"},
		},
	}
}

// retrieveContextTool returns the tool definition for retrieve_context
func retrieveContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "retrieve_context",
		Description: "Retrieve the documentation excerpts of a repository most relevant to an issue",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repo_id": map[string]interface{}{
					"type":        "string",
					"description": "Repository to search",
				},
				"issue_title": map[string]interface{}{
					"type":        "string",
					"description": "Issue title",
				},
				"issue_body": map[string]interface{}{
					"type":        "string",
					"description": "Issue body",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of chunks to return (1-100)",
					"default":     5,
					"minimum":     1,
					"maximum":     100,
				},
				"min_similarity": map[string]interface{}{
					"type":        "number",
					"description": "Minimum cosine similarity of a returned chunk",
					"default":     0.7,
					"minimum":     0,
					"maximum":     1,
				},
			},
			Required: []string{"repo_id"},
		},
	}
}

// clearRepositoryTool returns the tool definition for clear_repository
func clearRepositoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clear_repository",
		Description: "Delete every stored chunk of a repository",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repo_id": map[string]interface{}{
					"type":        "string",
					"description": "Repository to clear",
				},
			},
			Required: []string{"repo_id"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report whether a repository is ingested and how many chunks it has",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repo_id": map[string]interface{}{
					"type":        "string",
					"description": "Repository to inspect",
				},
			},
			Required: []string{"repo_id"},
		},
	}
}
