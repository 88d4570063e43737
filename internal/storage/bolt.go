package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"github.com/codepathfinder/repocontext/pkg/types"
)

var reposBucket = []byte("repos")

// boltChunk is the JSON value stored per chunk key
type boltChunk struct {
	ID           string    `json:"id"`
	RepoFullName string    `json:"repo_full_name"`
	FilePath     string    `json:"file_path"`
	ChunkIndex   int       `json:"chunk_index"`
	Content      string    `json:"content"`
	TokenCount   int       `json:"token_count"`
	Embedding    []float32 `json:"embedding"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BoltStorage implements Storage on an embedded bbolt file.
// Each repository owns a nested bucket under "repos"; keys are
// "<file_path>\x00<zero padded chunk index>" so a file's chunks are
// contiguous and ordered.
type BoltStorage struct {
	db   *bbolt.DB
	path string
}

// NewBoltStorage opens or creates the bbolt file at path
func NewBoltStorage(path string) (*BoltStorage, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(reposBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BoltStorage{db: db, path: path}, nil
}

// Close closes the bbolt file
func (s *BoltStorage) Close() error {
	return s.db.Close()
}

func boltKey(filePath string, chunkIndex int) []byte {
	return []byte(fmt.Sprintf("%s\x00%010d", filePath, chunkIndex))
}

func boltFilePrefix(filePath string) []byte {
	return append([]byte(filePath), 0)
}

// boltKeyIndex extracts the chunk index from a key sharing prefix
func boltKeyIndex(key, prefix []byte) (int, error) {
	return strconv.Atoi(string(key[len(prefix):]))
}

// repoBucket returns the bucket of repoID, or nil when it does not exist
func repoBucket(tx *bbolt.Tx, repoID string) *bbolt.Bucket {
	root := tx.Bucket(reposBucket)
	if root == nil {
		return nil
	}
	return root.Bucket([]byte(repoID))
}

// UpsertChunks writes all chunks in one bbolt transaction
func (s *BoltStorage) UpsertChunks(ctx context.Context, chunks []*types.StoredChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, chunk := range chunks {
		if err := chunk.Validate(); err != nil {
			return fmt.Errorf("invalid chunk %s: %w", chunk.Key(), err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now().UTC()
	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(reposBucket)
		for _, chunk := range chunks {
			bucket, err := root.CreateBucketIfNotExists([]byte(chunk.RepoID))
			if err != nil {
				return fmt.Errorf("failed to create bucket for repo %s: %w", chunk.RepoID, err)
			}

			if chunk.ID == "" {
				chunk.ID = types.ChunkID(chunk.RepoID, chunk.FilePath, chunk.ChunkIndex)
			}
			key := boltKey(chunk.FilePath, chunk.ChunkIndex)

			createdAt := now
			if existing := bucket.Get(key); existing != nil {
				var prev boltChunk
				if err := json.Unmarshal(existing, &prev); err == nil {
					createdAt = prev.CreatedAt
				}
			}

			value, err := json.Marshal(boltChunk{
				ID:           chunk.ID,
				RepoFullName: chunk.RepoFullName,
				FilePath:     chunk.FilePath,
				ChunkIndex:   chunk.ChunkIndex,
				Content:      chunk.Content,
				TokenCount:   chunk.TokenCount,
				Embedding:    chunk.Embedding,
				CreatedAt:    createdAt,
				UpdatedAt:    now,
			})
			if err != nil {
				return fmt.Errorf("failed to encode chunk %s: %w", chunk.Key(), err)
			}
			if err := bucket.Put(key, value); err != nil {
				return fmt.Errorf("failed to upsert chunk %s: %w", chunk.Key(), err)
			}

			chunk.CreatedAt = createdAt
			chunk.UpdatedAt = now
		}
		return nil
	})
}

// SearchChunks scores every chunk of the repository in Go
func (s *BoltStorage) SearchChunks(ctx context.Context, query SearchQuery) ([]types.RetrievedChunk, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	candidates := make([]types.RetrievedChunk, 0, 64)
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := repoBucket(tx, query.RepoID)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var bc boltChunk
			if err := json.Unmarshal(v, &bc); err != nil {
				return fmt.Errorf("failed to decode chunk: %w", err)
			}
			if len(bc.Embedding) != len(query.Vector) {
				return nil
			}
			similarity := cosineSimilarity(query.Vector, bc.Embedding)
			if similarity < query.MinSimilarity {
				return nil
			}
			candidates = append(candidates, types.RetrievedChunk{
				ID:           bc.ID,
				RepoID:       query.RepoID,
				RepoFullName: bc.RepoFullName,
				FilePath:     bc.FilePath,
				ChunkIndex:   bc.ChunkIndex,
				Content:      bc.Content,
				TokenCount:   bc.TokenCount,
				Similarity:   similarity,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return topK(candidates, query.Limit), nil
}

// DeleteRepoChunks drops the repository bucket
func (s *BoltStorage) DeleteRepoChunks(ctx context.Context, repoID string) (int64, error) {
	var deleted int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := repoBucket(tx, repoID)
		if bucket == nil {
			return nil
		}
		deleted = int64(bucket.Stats().KeyN)
		return tx.Bucket(reposBucket).DeleteBucket([]byte(repoID))
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks for repo %s: %w", repoID, err)
	}
	return deleted, nil
}

// DeleteChunksFrom removes chunks of one file at or beyond fromIndex
func (s *BoltStorage) DeleteChunksFrom(ctx context.Context, repoID, filePath string, fromIndex int) (int64, error) {
	var deleted int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := repoBucket(tx, repoID)
		if bucket == nil {
			return nil
		}

		prefix := boltFilePrefix(filePath)
		var stale [][]byte
		c := bucket.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			idx, err := boltKeyIndex(k, prefix)
			if err != nil {
				continue
			}
			if idx >= fromIndex {
				stale = append(stale, append([]byte(nil), k...))
			}
		}

		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		deleted = int64(len(stale))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale chunks for %s: %w", filePath, err)
	}
	return deleted, nil
}

// CountChunks returns the number of chunks stored for a repository
func (s *BoltStorage) CountChunks(ctx context.Context, repoID string) (int, error) {
	var count int
	err := s.db.View(func(tx *bbolt.Tx) error {
		if bucket := repoBucket(tx, repoID); bucket != nil {
			count = bucket.Stats().KeyN
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// GetStatus summarizes the stored chunks of a repository
func (s *BoltStorage) GetStatus(ctx context.Context, repoID string) (*RepoStatus, error) {
	status := &RepoStatus{RepoID: repoID, Backend: "bolt"}
	files := make(map[string]struct{})

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := repoBucket(tx, repoID)
		if bucket == nil {
			return nil
		}
		err := bucket.ForEach(func(_, v []byte) error {
			var bc boltChunk
			if err := json.Unmarshal(v, &bc); err != nil {
				return fmt.Errorf("failed to decode chunk: %w", err)
			}
			status.ChunksCount++
			files[bc.FilePath] = struct{}{}
			if !bc.UpdatedAt.Before(status.LastIngestedAt) {
				status.LastIngestedAt = bc.UpdatedAt
				status.RepoFullName = bc.RepoFullName
				status.Dimension = len(bc.Embedding)
			}
			return nil
		})
		status.IndexSizeMB = float64(tx.Size()) / (1024 * 1024)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read repo status: %w", err)
	}
	if status.ChunksCount == 0 {
		return nil, ErrNotFound
	}

	status.FilesCount = len(files)
	return status, nil
}
