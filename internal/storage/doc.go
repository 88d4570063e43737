// Package storage persists embedded repository chunks and answers
// similarity searches over them.
//
// Every row is keyed by (repo_id, file_path, chunk_index). Writing a chunk
// with an existing key replaces its content and embedding and keeps the
// original creation time. Searches are always scoped to one repository.
//
// # Backends
//
//   - sqlite: the default. Embeddings are little-endian float32 blobs.
//     Schema changes go through versioned migrations.
//   - postgres: PostgreSQL with pgvector. Ranking uses the <=> cosine
//     distance operator.
//   - bolt: an embedded bbolt file with one bucket per repository.
//
// Use Open to select a backend from configuration:
//
//	store, err := storage.Open(ctx, storage.Config{Driver: "sqlite", Path: "repocontext.db"})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	results, err := store.SearchChunks(ctx, storage.SearchQuery{
//	    RepoID:        repoID,
//	    Vector:        queryVector,
//	    Limit:         5,
//	    MinSimilarity: 0.7,
//	})
//
// # Build Tags
//
// CGO build (sqlite_vec tag) uses github.com/mattn/go-sqlite3 and ranks in
// SQL with vec_distance_cosine when the sqlite-vec extension is loaded:
//
//	CGO_ENABLED=1 go build -tags "sqlite_vec"
//
// The default and purego builds use modernc.org/sqlite and compute cosine
// similarity in Go:
//
//	CGO_ENABLED=0 go build -tags "purego"
//
// Results are ordered by similarity, then file path, then chunk index, so
// equal scores rank the same way on every backend.
package storage
