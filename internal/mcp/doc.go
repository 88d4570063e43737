// Package mcp implements the Model Context Protocol (MCP) server for repocontext.
//
// The MCP server exposes four tools:
//   - ingest_repository: Chunk, embed and store the documentation of a checkout
//   - retrieve_context: Find the excerpts most relevant to an issue
//   - clear_repository: Delete every stored chunk of a repository
//   - get_status: Check whether a repository is ingested
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is started with:
//
//	repocontext serve
//
// # Tool: ingest_repository
//
//	Request:
//	{
//	  "name": "ingest_repository",
//	  "arguments": {
//	    "repo_id": "42",
//	    "repo_full_name": "acme/widgets",
//	    "path": "/srv/checkouts/acme/widgets",
//	    "replace": false
//	  }
//	}
//
//	Response:
//	{
//	  "ingested": true,
//	  "repo_id": "42",
//	  "documents_processed": 6,
//	  "chunks_stored": 31,
//	  "stale_chunks_deleted": 0,
//	  "duration_ms": 1840
//	}
//
// A second ingest_repository or clear_repository call for a repository that
// is still being ingested fails with code -32002.
//
// # Tool: retrieve_context
//
//	Request:
//	{
//	  "name": "retrieve_context",
//	  "arguments": {
//	    "repo_id": "42",
//	    "issue_title": "Tests fail on Windows",
//	    "issue_body": "Running make test ...",
//	    "limit": 5,
//	    "min_similarity": 0.7
//	  }
//	}
//
//	Response:
//	{
//	  "empty": false,
//	  "context_text": "Relevant excerpts from the documentation of acme/widgets: ...",
//	  "chunks": [
//	    {"file_path": "CONTRIBUTING.md", "chunk_index": 2, "similarity": 0.83, "content": "..."}
//	  ]
//	}
//
// No chunk at or above the threshold yields "empty": true with an empty
// context_text; that is a normal answer, not an error.
//
// # Error Handling
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (embedding service, database, filesystem)
//   - -32002: Ingestion of the repository in progress
//   - -32004: Issue title and body are empty
//
// # Logging
//
// The server logs to stderr through slog; stdout is reserved for the protocol.
package mcp
