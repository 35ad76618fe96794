package objstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore holds raw image payloads, keyed by record id. Records and
// their indexes live in Redis; only the bytes go through here.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// DirStore is a filesystem-backed BlobStore, one file per payload. It is
// the default backend for local installs and tests.
type DirStore struct {
	dir string
}

func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

func (d *DirStore) path(key string) string {
	// Record ids are hex plus a prefix, but never trust a key as a path.
	safe := strings.ReplaceAll(key, string(os.PathSeparator), "_")
	return filepath.Join(d.dir, safe)
}

func (d *DirStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := os.WriteFile(d.path(key), data, 0o644); err != nil {
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	return nil
}

func (d *DirStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(d.path(key))
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return data, nil
}

func (d *DirStore) Remove(ctx context.Context, key string) error {
	if err := os.Remove(d.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob %s: %w", key, err)
	}
	return nil
}
