package persistence

import (
	"context"
	"errors"
	"sync"

	"github.com/asaidimu/go-shelf/core/schema"
)

// ErrNoSnapshot is returned by StorageDriver.Load when nothing has been
// stored for a collection yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// StorageDriver persists whole collections. Each Save replaces the stored
// snapshot of the named collection with docs, in order; Load returns the
// last saved snapshot.
//
// Drivers must be safe for concurrent use across collections. Callers
// serialize access to a single collection.
type StorageDriver interface {
	// Load returns the stored documents of a collection, or ErrNoSnapshot
	// when there are none. Numbers in the returned documents may be any
	// numeric type, including json.Number.
	Load(ctx context.Context, name string) ([]schema.Document, error)

	// Save replaces the stored snapshot of a collection.
	Save(ctx context.Context, name string, docs []schema.Document) error

	// Close releases any resources held by the driver.
	Close() error
}

// MemoryDriver keeps snapshots in memory. It is intended for tests and
// examples. FailLoad and FailSave, when set, are consulted before each
// operation and their error returned.
type MemoryDriver struct {
	mu        sync.RWMutex
	snapshots map[string][]schema.Document

	FailLoad func(name string) error
	FailSave func(name string) error
}

// NewMemoryDriver creates an empty in-memory driver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{snapshots: make(map[string][]schema.Document)}
}

// Load returns a copy of the stored snapshot.
func (m *MemoryDriver) Load(ctx context.Context, name string) ([]schema.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.FailLoad != nil {
		if err := m.FailLoad(name); err != nil {
			return nil, err
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	docs, ok := m.snapshots[name]
	if !ok {
		return nil, ErrNoSnapshot
	}
	return cloneDocuments(docs), nil
}

// Save stores a copy of docs.
func (m *MemoryDriver) Save(ctx context.Context, name string, docs []schema.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.FailSave != nil {
		if err := m.FailSave(name); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[name] = cloneDocuments(docs)
	return nil
}

// Close is a no-op.
func (m *MemoryDriver) Close() error {
	return nil
}

func cloneDocuments(docs []schema.Document) []schema.Document {
	out := make([]schema.Document, len(docs))
	for i, doc := range docs {
		out[i] = doc.Clone()
	}
	return out
}
