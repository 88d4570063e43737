package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// EnvTestPostgresDSN points the postgres tests at a database with pgvector
const EnvTestPostgresDSN = "REPOCONTEXT_TEST_POSTGRES_DSN"

func TestPostgresStorage(t *testing.T) {
	dsn := os.Getenv(EnvTestPostgresDSN)
	if dsn == "" {
		t.Skipf("Skipping: %s not set", EnvTestPostgresDSN)
	}

	runStorageSuite(t, func(t *testing.T) Storage {
		ctx := context.Background()
		s, err := NewPostgresStorage(ctx, dsn)
		require.NoError(t, err)

		clean := func() {
			for _, repoID := range suiteRepos {
				_, _ = s.DeleteRepoChunks(ctx, repoID)
			}
		}
		clean()
		t.Cleanup(func() {
			clean()
			_ = s.Close()
		})
		return s
	})
}
