// Package jsonfile stores each collection as a pretty-printed JSON array in
// its own file, <dir>/<name>.json. Every save rewrites the whole file
// atomically.
package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/asaidimu/go-shelf/core/persistence"
	"github.com/asaidimu/go-shelf/core/schema"
	"go.uber.org/zap"
)

const (
	fileExt  = ".json"
	tempExt  = ".tmp"
	filePerm = 0o644
	dirPerm  = 0o755
)

// Driver is a persistence.StorageDriver keeping one file per collection.
type Driver struct {
	dir    string
	logger *zap.Logger
	mu     sync.Mutex // serializes file access
}

var _ persistence.StorageDriver = (*Driver)(nil)

// NewDriver creates a driver rooted at dir, creating the directory if needed.
func NewDriver(dir string, logger *zap.Logger) (*Driver, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory must not be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return &Driver{dir: dir, logger: logger}, nil
}

// Path returns the file backing a collection.
func (d *Driver) Path(name string) string {
	return filepath.Join(d.dir, name+fileExt)
}

// Load reads the snapshot of a collection. A missing file reports
// persistence.ErrNoSnapshot.
func (d *Driver) Load(ctx context.Context, name string) ([]schema.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := d.Path(name)

	d.mu.Lock()
	data, err := os.ReadFile(path)
	d.mu.Unlock()

	if errors.Is(err, fs.ErrNotExist) {
		return nil, persistence.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	docs, err := persistence.DecodeDocuments(data)
	if err != nil {
		return nil, fmt.Errorf("corrupt collection file %s: %w", path, err)
	}
	d.logger.Debug("Loaded collection file", zap.String("path", path), zap.Int("count", len(docs)))
	return docs, nil
}

// Save rewrites the file of a collection.
func (d *Driver) Save(ctx context.Context, name string, docs []schema.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := persistence.EncodeDocuments(docs)
	if err != nil {
		return err
	}

	path := d.Path(name)
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := writeFileAtomic(path, data, filePerm); err != nil {
		return err
	}
	d.logger.Debug("Wrote collection file", zap.String("path", path), zap.Int("count", len(docs)))
	return nil
}

// Close is a no-op; files are closed after every operation.
func (d *Driver) Close() error {
	return nil
}

// writeFileAtomic writes data to path+".tmp", syncs it, renames it over path
// and syncs the parent directory so the rename itself is durable.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	tmpPath := path + tempExt
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	// Best effort: the data is already in place.
	_ = syncDir(dir)
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
