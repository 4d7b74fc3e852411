package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS files (
	file_id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	file_size INTEGER NOT NULL DEFAULT 0,
	blob_key TEXT NOT NULL DEFAULT '',
	blob_hash TEXT NOT NULL DEFAULT '',
	deleted INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	deleted_at INTEGER NOT NULL DEFAULT 0,
	UNIQUE (workspace_id, file_path)
);

CREATE INDEX IF NOT EXISTS idx_files_workspace ON files(workspace_id);
`

const fileColumns = `file_id, workspace_id, file_path, file_size, blob_key, blob_hash, deleted, created_at, updated_at, deleted_at`

// Index is the SQLite table of file records.
type Index struct {
	db *sqlx.DB
}

// NewIndex creates the schema on db if needed.
func NewIndex(db *sqlx.DB) (*Index, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize file index: %w", err)
	}
	return &Index{db: db}, nil
}

func (idx *Index) DB() *sqlx.DB {
	return idx.db
}

// List returns every record of the workspace, tombstones included.
func (idx *Index) List(ctx context.Context, workspace string) ([]*File, error) {
	files := []*File{}
	err := idx.db.SelectContext(ctx, &files,
		`SELECT `+fileColumns+` FROM files WHERE workspace_id = ? ORDER BY file_path`, workspace)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// ByPath returns the record at path or ErrFileNotFound.
func (idx *Index) ByPath(ctx context.Context, q sqlx.QueryerContext, workspace, path string) (*File, error) {
	var f File
	err := sqlx.GetContext(ctx, q, &f,
		`SELECT `+fileColumns+` FROM files WHERE workspace_id = ? AND file_path = ?`, workspace, path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFileNotFound
	} else if err != nil {
		return nil, err
	}
	return &f, nil
}

// ByID returns the record with fileID or ErrFileNotFound.
func (idx *Index) ByID(ctx context.Context, workspace, fileID string) (*File, error) {
	var f File
	err := idx.db.GetContext(ctx, &f,
		`SELECT `+fileColumns+` FROM files WHERE workspace_id = ? AND file_id = ?`, workspace, fileID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFileNotFound
	} else if err != nil {
		return nil, err
	}
	return &f, nil
}

// Upsert inserts f or replaces the row with the same id.
func (idx *Index) Upsert(ctx context.Context, e sqlx.ExtContext, f *File) error {
	_, err := sqlx.NamedExecContext(ctx, e, `
		INSERT INTO files (`+fileColumns+`)
		VALUES (:file_id, :workspace_id, :file_path, :file_size, :blob_key, :blob_hash, :deleted, :created_at, :updated_at, :deleted_at)
		ON CONFLICT (file_id) DO UPDATE SET
			file_size = excluded.file_size,
			blob_key = excluded.blob_key,
			blob_hash = excluded.blob_hash,
			deleted = excluded.deleted,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at`, f)
	return err
}

// Count returns the number of live files in the workspace.
func (idx *Index) Count(ctx context.Context, workspace string) (int, error) {
	var n int
	err := idx.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM files WHERE workspace_id = ? AND deleted = 0`, workspace)
	return n, err
}
