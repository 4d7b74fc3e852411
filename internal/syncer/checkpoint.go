package syncer

import (
	"context"
	"slices"
	"sync"
)

// CheckpointStore persists the last_synced_at timestamp between passes.
type CheckpointStore interface {
	Load(ctx context.Context) (int64, error)
	Store(ctx context.Context, lastSyncedAt int64) error
}

// ConflictStore remembers the paths a pass left unresolved, so later passes
// keep classifying them as conflicts until both sides agree.
type ConflictStore interface {
	OpenConflicts(ctx context.Context) ([]string, error)
	SetConflicts(ctx context.Context, paths []string, detectedAt int64) error
}

// MemoryCheckpoint keeps the checkpoint in memory.
type MemoryCheckpoint struct {
	mu    sync.Mutex
	value int64
}

func NewMemoryCheckpoint(initial int64) *MemoryCheckpoint {
	return &MemoryCheckpoint{value: initial}
}

func (m *MemoryCheckpoint) Load(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, nil
}

func (m *MemoryCheckpoint) Store(_ context.Context, lastSyncedAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = lastSyncedAt
	return nil
}

// MemoryConflicts keeps open conflicts in memory.
type MemoryConflicts struct {
	mu    sync.Mutex
	paths []string
}

func NewMemoryConflicts() *MemoryConflicts {
	return &MemoryConflicts{}
}

func (m *MemoryConflicts) OpenConflicts(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.paths), nil
}

func (m *MemoryConflicts) SetConflicts(_ context.Context, paths []string, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = slices.Clone(paths)
	return nil
}
