// Package types provides the shared domain types of the repository context pipeline.
//
// A Document is a fetched text file. The chunker turns it into Chunks,
// ingestion pairs each Chunk with an embedding to form a StoredChunk, and
// retrieval returns RetrievedChunks with their similarity to a query:
//
//	doc := types.Document{FilePath: "CONTRIBUTING.md", Content: text}
//	stored := types.NewStoredChunk(repoID, "owner/name", chunk, vector)
//
// # Identity
//
// Stored chunks are keyed by (repository id, file path, chunk index).
// Re-ingesting the same key replaces the row. ChunkID derives a stable
// UUID from the key so that every vector store backend agrees on IDs.
//
// # Validation
//
//	if err := stored.Validate(); err != nil {
//	    return err
//	}
//
// Errors are sentinel values and should be matched with errors.Is.
package types
