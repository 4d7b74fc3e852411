// Package memfs is an in-memory replica. It backs tests and embedders that keep
// their own storage.
package memfs

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/paintress/paintress-sync/internal/syncer"
)

type entry struct {
	meta    syncer.FileMetadata
	content []byte
}

// FS is a goroutine safe in-memory FileSystem.
type FS struct {
	mu      sync.RWMutex
	files   map[string]*entry
	now     func() int64
	noPrune bool
}

var _ syncer.FileSystem = (*FS)(nil)

type Option func(*FS)

// WithClock sets the clock used to stamp tombstones.
func WithClock(now func() int64) Option {
	return func(fs *FS) {
		fs.now = now
	}
}

// WithoutPrune makes Prune fail with ErrUnsupported, like the REST remote.
func WithoutPrune() Option {
	return func(fs *FS) {
		fs.noPrune = true
	}
}

func New(opts ...Option) *FS {
	fs := &FS{
		files: make(map[string]*entry),
		now:   func() int64 { return time.Now().UnixMilli() },
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Put seeds a live file without any guard.
func (fs *FS) Put(path string, content []byte, createdAt, updatedAt int64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = &entry{
		meta: syncer.FileMetadata{
			Path:      path,
			Size:      int64(len(content)),
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		content: slices.Clone(content),
	}
}

// Tombstone seeds a deletion record without any guard.
func (fs *FS) Tombstone(path string, createdAt, updatedAt, deletedAt int64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = &entry{
		meta: syncer.FileMetadata{
			Path:      path,
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
			DeletedAt: deletedAt,
			Deleted:   true,
		},
	}
}

// Stat returns the entry recorded for path, live or deleted.
func (fs *FS) Stat(path string) (syncer.FileMetadata, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	e, ok := fs.files[path]
	if !ok {
		return syncer.FileMetadata{}, false
	}
	return e.meta, true
}

func (fs *FS) GetFiles(_ context.Context) ([]syncer.FileMetadata, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	files := make([]syncer.FileMetadata, 0, len(fs.files))
	for _, e := range fs.files {
		files = append(files, e.meta)
	}
	slices.SortFunc(files, func(a, b syncer.FileMetadata) int {
		return strings.Compare(a.Path, b.Path)
	})
	return files, nil
}

func (fs *FS) GetFileContent(_ context.Context, path string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	e, ok := fs.files[path]
	if !ok || e.meta.Deleted {
		return nil, fmt.Errorf("%s: %w", path, syncer.ErrNotFound)
	}
	return slices.Clone(e.content), nil
}

func (fs *FS) Update(_ context.Context, path string, content []byte, previousUpdatedAt, newUpdatedAt int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	e, ok := fs.files[path]
	if ok && e.meta.UpdatedAt != previousUpdatedAt {
		return fmt.Errorf("%s: have %d, expected %d: %w", path, e.meta.UpdatedAt, previousUpdatedAt, syncer.ErrConflict)
	}

	createdAt := newUpdatedAt
	if ok && !e.meta.Deleted {
		createdAt = e.meta.CreatedAt
	}

	fs.files[path] = &entry{
		meta: syncer.FileMetadata{
			Path:      path,
			Size:      int64(len(content)),
			CreatedAt: createdAt,
			UpdatedAt: newUpdatedAt,
		},
		content: slices.Clone(content),
	}
	return nil
}

func (fs *FS) Remove(_ context.Context, path string, previousUpdatedAt int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	e, ok := fs.files[path]
	if !ok || e.meta.Deleted {
		return nil
	}
	if e.meta.UpdatedAt != previousUpdatedAt {
		return fmt.Errorf("%s: have %d, expected %d: %w", path, e.meta.UpdatedAt, previousUpdatedAt, syncer.ErrConflict)
	}

	e.meta.Deleted = true
	e.meta.DeletedAt = fs.now()
	e.meta.Size = 0
	e.content = nil
	return nil
}

func (fs *FS) Prune(_ context.Context, path string) error {
	if fs.noPrune {
		return syncer.ErrUnsupported
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if e, ok := fs.files[path]; ok && e.meta.Deleted {
		delete(fs.files, path)
	}
	return nil
}
