package files

import (
	"errors"
	"io"
	"path"
	"strings"
)

var (
	ErrFileConflict = errors.New("file has been updated since the last sync")
	ErrFileNotFound = errors.New("file not found")
	ErrInvalidPath  = errors.New("invalid file path")
)

// File is one row of a workspace's file table. Deleted rows are tombstones and
// keep their id so that a revived path is served under the same id.
type File struct {
	FileID      string `db:"file_id" json:"file_id"`
	WorkspaceID string `db:"workspace_id" json:"-"`
	Path        string `db:"file_path" json:"file_path"`
	Size        int64  `db:"file_size" json:"file_size"`
	BlobKey     string `db:"blob_key" json:"-"`
	BlobHash    string `db:"blob_hash" json:"blob_hash"`
	Deleted     bool   `db:"deleted" json:"deleted"`
	CreatedAt   int64  `db:"created_at" json:"created_at"`
	UpdatedAt   int64  `db:"updated_at" json:"updated_at"`
	DeletedAt   int64  `db:"deleted_at" json:"deleted_at"`
}

// Name is the last element of the file path.
func (f *File) Name() string {
	return path.Base(f.Path)
}

type WriteParams struct {
	Workspace         string
	Path              string
	Body              io.ReadSeeker
	Size              int64
	PreviousUpdatedAt int64
	UpdatedAt         int64
}

type DeleteParams struct {
	Workspace         string
	Path              string
	PreviousUpdatedAt int64
	UpdatedAt         int64
}

// ValidatePath accepts slash separated relative paths without dot segments.
func ValidatePath(p string) bool {
	if p == "" || len(p) > 1024 {
		return false
	}
	if strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return false
	}
	for _, part := range strings.Split(p, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
