package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     func(dir string) Config
		backend string
		wantErr error
	}{
		{
			name:    "default driver is sqlite",
			cfg:     func(dir string) Config { return Config{Path: filepath.Join(dir, "nested", "repocontext.db")} },
			backend: "sqlite-" + BuildMode,
		},
		{
			name:    "bolt",
			cfg:     func(dir string) Config { return Config{Driver: DriverBolt, Path: filepath.Join(dir, "nested", "repocontext.bolt")} },
			backend: "bolt",
		},
		{
			name:    "unknown driver",
			cfg:     func(dir string) Config { return Config{Driver: "mongo", Path: filepath.Join(dir, "x.db")} },
			wantErr: ErrUnknownDriver,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := tt.cfg(dir)

			s, err := Open(ctx, cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer s.Close()

			_, err = os.Stat(cfg.Path)
			assert.NoError(t, err)

			require.NoError(t, s.UpsertChunks(ctx, nil))
			_, err = s.GetStatus(ctx, "repo-a")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, Config{Driver: DriverPostgres})
	assert.Error(t, err)

	_, err = Open(ctx, Config{Driver: DriverSQLite})
	assert.Error(t, err)
}
