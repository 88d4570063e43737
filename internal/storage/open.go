package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Backend driver names accepted by Open
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
)

// Config selects and locates a storage backend
type Config struct {
	Driver string // sqlite (default), postgres or bolt
	Path   string // file path for sqlite and bolt
	DSN    string // connection string for postgres
}

// Open creates the backend named by cfg.Driver
func Open(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		if err := ensureParentDir(cfg.Path); err != nil {
			return nil, err
		}
		return NewSQLiteStorage(cfg.Path)
	case DriverBolt:
		if err := ensureParentDir(cfg.Path); err != nil {
			return nil, err
		}
		return NewBoltStorage(cfg.Path)
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires a DSN")
		}
		return NewPostgresStorage(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func ensureParentDir(path string) error {
	if path == "" {
		return fmt.Errorf("storage path is required")
	}
	if path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	return nil
}
