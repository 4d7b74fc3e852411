package syncer

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a path is unknown or only a tombstone remains.
	ErrNotFound = errors.New("file not found")
	// ErrConflict is returned when the optimistic guard on a write or delete fails.
	ErrConflict = errors.New("file changed since last observation")
	// ErrUnsupported is returned by replicas that cannot perform an operation, e.g. prune.
	ErrUnsupported = errors.New("operation not supported")
	// ErrTransport wraps network and storage failures from a backend.
	ErrTransport = errors.New("transport failure")
	// ErrSyncInProgress is returned when a pass is requested while another one runs.
	ErrSyncInProgress = errors.New("sync already running")
	// ErrUnresolvable is returned by a ConflictResolver that declines a pair.
	ErrUnresolvable = errors.New("conflict cannot be resolved")
)

// FileSystem is the uniform view over one replica.
//
// Update and Remove are guarded: when an entry exists at path, live or deleted,
// and its recorded UpdatedAt differs from previousUpdatedAt, the call fails with
// ErrConflict and nothing is written. Missing paths pass the guard.
type FileSystem interface {
	// GetFiles returns a consistent snapshot of live files and tombstones.
	GetFiles(ctx context.Context) ([]FileMetadata, error)

	// GetFileContent returns the content of a live file.
	GetFileContent(ctx context.Context, path string) ([]byte, error)

	// Update writes content at path and records newUpdatedAt as its version.
	Update(ctx context.Context, path string, content []byte, previousUpdatedAt, newUpdatedAt int64) error

	// Remove turns the entry at path into a tombstone.
	Remove(ctx context.Context, path string, previousUpdatedAt int64) error

	// Prune permanently forgets the tombstone at path.
	Prune(ctx context.Context, path string) error
}

// ConflictResolver merges two concurrently modified versions of a path.
type ConflictResolver interface {
	CanResolve(host, remote *FileMetadata) bool
	Resolve(host, remote *FileMetadata, hostContent, remoteContent []byte) ([]byte, error)
}

// Cipher encrypts content before it reaches a replica and decrypts it on the way back.
type Cipher interface {
	Encrypt(plain []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
}
