package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/codepathfinder/repocontext/pkg/types"
)

// searchVector performs vector similarity search using cosine similarity
func searchVector(ctx context.Context, db *sql.DB, query SearchQuery) ([]types.RetrievedChunk, error) {
	// Use SQL-side distance when sqlite-vec is available
	if VectorExtensionAvailable {
		results, err := searchVectorOptimized(ctx, db, query)
		if err == nil || !isMissingFunction(err) {
			return results, err
		}
		// Built with the tag but the extension was not loaded
	}
	return searchVectorFallback(ctx, db, query)
}

func isMissingFunction(err error) bool {
	return strings.Contains(err.Error(), "no such function")
}

// searchVectorOptimized uses the sqlite-vec extension to rank rows in SQL
func searchVectorOptimized(ctx context.Context, db *sql.DB, query SearchQuery) ([]types.RetrievedChunk, error) {
	blob := serializeVector(query.Vector)

	// vec_distance_cosine returns a distance (lower is better); convert to similarity
	sqlQuery := `
		SELECT id, repo_id, repo_full_name, file_path, chunk_index, content, token_count,
			1.0 - vec_distance_cosine(embedding, ?) AS similarity
		FROM repo_chunks
		WHERE repo_id = ? AND dimension = ?
			AND (1.0 - vec_distance_cosine(embedding, ?)) >= ?
		ORDER BY similarity DESC, file_path, chunk_index
		LIMIT ?
	`
	rows, err := db.QueryContext(ctx, sqlQuery,
		blob, query.RepoID, len(query.Vector), blob, query.MinSimilarity, query.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.RetrievedChunk, 0, query.Limit)
	for rows.Next() {
		var rc types.RetrievedChunk
		if err := rows.Scan(&rc.ID, &rc.RepoID, &rc.RepoFullName, &rc.FilePath,
			&rc.ChunkIndex, &rc.Content, &rc.TokenCount, &rc.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, rc)
	}

	return results, rows.Err()
}

// searchVectorFallback scores every row of the repository in Go.
// Used by purego builds where sqlite-vec is unavailable.
func searchVectorFallback(ctx context.Context, db *sql.DB, query SearchQuery) ([]types.RetrievedChunk, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, repo_id, repo_full_name, file_path, chunk_index, content, token_count, embedding
		FROM repo_chunks
		WHERE repo_id = ?
	`, query.RepoID)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := computeSimilarityScores(rows, query)
	if err != nil {
		return nil, err
	}

	return topK(candidates, query.Limit), nil
}

// computeSimilarityScores scans rows and keeps those at or above the threshold
func computeSimilarityScores(rows *sql.Rows, query SearchQuery) ([]types.RetrievedChunk, error) {
	candidates := make([]types.RetrievedChunk, 0, 64)

	for rows.Next() {
		var rc types.RetrievedChunk
		var blob []byte
		if err := rows.Scan(&rc.ID, &rc.RepoID, &rc.RepoFullName, &rc.FilePath,
			&rc.ChunkIndex, &rc.Content, &rc.TokenCount, &blob); err != nil {
			return nil, err
		}

		vector := deserializeVector(blob)
		if len(vector) != len(query.Vector) {
			continue // Dimension mismatch, skip
		}

		rc.Similarity = cosineSimilarity(query.Vector, vector)
		if rc.Similarity < query.MinSimilarity {
			continue
		}

		candidates = append(candidates, rc)
	}

	return candidates, rows.Err()
}

// topK sorts candidates by similarity and keeps the first limit.
// Ties are broken by file path and chunk index so results are stable.
func topK(candidates []types.RetrievedChunk, limit int) []types.RetrievedChunk {
	sortCandidates(candidates)
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// sortCandidates sorts candidates by similarity in descending order
func sortCandidates(candidates []types.RetrievedChunk) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		return a.ChunkIndex < b.ChunkIndex
	})
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
