package files

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/paintress/paintress-sync/internal/db"
	"github.com/paintress/paintress-sync/internal/server/blob"
)

// Service owns the file records of every workspace and their blobs.
type Service struct {
	index   *Index
	backend blob.Backend
	presign bool

	// writes check the guard and commit as one step
	mu sync.Mutex
}

type ServiceOption func(*Service)

// WithPresign makes DownloadURL hand out presigned URLs.
func WithPresign(enabled bool) ServiceOption {
	return func(s *Service) {
		s.presign = enabled
	}
}

func NewService(index *Index, backend blob.Backend, opts ...ServiceOption) *Service {
	s := &Service{index: index, backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Index() *Index {
	return s.index
}

// Summary lists the workspace records, tombstones included.
func (s *Service) Summary(ctx context.Context, workspace string) ([]*File, error) {
	return s.index.List(ctx, workspace)
}

func (s *Service) Get(ctx context.Context, workspace, fileID string) (*File, error) {
	return s.index.ByID(ctx, workspace, fileID)
}

// Write stores new content at a path. Any existing record, tombstones included,
// must still carry PreviousUpdatedAt, otherwise ErrFileConflict is returned and
// nothing changes. A tombstone at the path is revived under its old id.
func (s *Service) Write(ctx context.Context, params *WriteParams) (*File, error) {
	if !ValidatePath(params.Path) {
		return nil, ErrInvalidPath
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.index.ByPath(ctx, s.index.db, params.Workspace, params.Path)
	if err != nil && !errors.Is(err, ErrFileNotFound) {
		return nil, err
	}
	if existing != nil && existing.UpdatedAt != params.PreviousUpdatedAt {
		return nil, fmt.Errorf("%w: have %d, got %d", ErrFileConflict, existing.UpdatedAt, params.PreviousUpdatedAt)
	}

	hash, err := hashReader(params.Body)
	if err != nil {
		return nil, fmt.Errorf("hash upload: %w", err)
	}

	file := &File{
		FileID:      uuid.NewString(),
		WorkspaceID: params.Workspace,
		Path:        params.Path,
		CreatedAt:   params.UpdatedAt,
	}
	oldKey := ""
	if existing != nil {
		file.FileID = existing.FileID
		oldKey = existing.BlobKey
		if !existing.Deleted {
			file.CreatedAt = existing.CreatedAt
		}
	}
	file.UpdatedAt = params.UpdatedAt
	file.BlobKey = fmt.Sprintf("%s/%s/%d", params.Workspace, file.FileID, params.UpdatedAt)
	file.BlobHash = hash

	resp, err := s.backend.PutObject(ctx, &blob.PutObjectParams{
		Key:  file.BlobKey,
		Body: params.Body,
		Size: params.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("put blob: %w", err)
	}
	file.Size = resp.Size

	err = db.WithTx(ctx, s.index.db, func(tx *sqlx.Tx) error {
		return s.index.Upsert(ctx, tx, file)
	})
	if err != nil {
		s.deleteBlob(ctx, file.BlobKey)
		return nil, fmt.Errorf("record file: %w", err)
	}

	if oldKey != "" && oldKey != file.BlobKey {
		s.deleteBlob(ctx, oldKey)
	}

	slog.Debug("file written", "workspace", file.WorkspaceID, "path", file.Path, "id", file.FileID, "size", file.Size, "updatedAt", file.UpdatedAt)
	return file, nil
}

// Delete turns a live record into a tombstone stamped with UpdatedAt. Deleting a
// missing path or a tombstone returns ErrFileNotFound.
func (s *Service) Delete(ctx context.Context, params *DeleteParams) (*File, error) {
	if !ValidatePath(params.Path) {
		return nil, ErrInvalidPath
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.index.ByPath(ctx, s.index.db, params.Workspace, params.Path)
	if err != nil {
		return nil, err
	}
	if existing.Deleted {
		return nil, ErrFileNotFound
	}
	if existing.UpdatedAt != params.PreviousUpdatedAt {
		return nil, fmt.Errorf("%w: have %d, got %d", ErrFileConflict, existing.UpdatedAt, params.PreviousUpdatedAt)
	}

	oldKey := existing.BlobKey
	file := *existing
	file.Deleted = true
	file.Size = 0
	file.BlobKey = ""
	file.BlobHash = ""
	file.UpdatedAt = params.UpdatedAt
	file.DeletedAt = params.UpdatedAt

	err = db.WithTx(ctx, s.index.db, func(tx *sqlx.Tx) error {
		return s.index.Upsert(ctx, tx, &file)
	})
	if err != nil {
		return nil, fmt.Errorf("record deletion: %w", err)
	}

	if oldKey != "" {
		s.deleteBlob(ctx, oldKey)
	}

	slog.Debug("file deleted", "workspace", file.WorkspaceID, "path", file.Path, "id", file.FileID, "deletedAt", file.DeletedAt)
	return &file, nil
}

// Open streams the content of a live file.
func (s *Service) Open(ctx context.Context, file *File) (*blob.GetObjectResponse, error) {
	if file.Deleted || file.BlobKey == "" {
		return nil, ErrFileNotFound
	}
	resp, err := s.backend.GetObject(ctx, file.BlobKey)
	if errors.Is(err, blob.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: missing blob %s", ErrFileNotFound, file.BlobKey)
	}
	return resp, err
}

// DownloadURL returns a presigned URL for the file, or "" when downloads go
// through the server.
func (s *Service) DownloadURL(ctx context.Context, file *File) (string, error) {
	if !s.presign || file.Deleted || file.BlobKey == "" {
		return "", nil
	}
	url, err := s.backend.GetObjectPresigned(ctx, file.BlobKey)
	if errors.Is(err, blob.ErrPresignUnsupported) {
		return "", nil
	}
	return url, err
}

func (s *Service) deleteBlob(ctx context.Context, key string) {
	if err := s.backend.DeleteObject(ctx, key); err != nil {
		slog.Warn("delete blob", "key", key, "error", err)
	}
}

func hashReader(r io.ReadSeeker) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
