// Package ingest drives the ingestion pipeline for a tracked repository:
// chunk documents, embed the chunks in bounded batches, and upsert the
// embedded rows into the vector store.
//
// Ingestion is idempotent. Rows are keyed by (repo, file, chunk index), so
// running it again with unchanged documents overwrites the same rows. When a
// document shrinks, rows beyond its new chunk count stay in the store unless
// Options.PruneStale is set or the caller clears the repository first.
//
// # Basic Usage
//
//	orch := ingest.New(chunker.New(chunker.DefaultOptions()), emb, store, ingest.Options{})
//	result, err := orch.Ingest(ctx, ingest.Request{
//	    RepoID:       "42",
//	    RepoFullName: "acme/widgets",
//	    Documents:    docs,
//	})
//
// A failed batch aborts the run and returns the error. Rows stored by
// earlier batches remain and are overwritten by the next run.
package ingest
