package localfs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/paintress/paintress-sync/internal/db"
	"github.com/paintress/paintress-sync/internal/syncer"
)

const stateSchema = `
CREATE TABLE IF NOT EXISTS file_index (
	path TEXT PRIMARY KEY,
	size INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS file_history (
	path TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	deleted_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS conflicts (
	path TEXT PRIMARY KEY,
	detected_at INTEGER NOT NULL
);
`

const keyLastSyncedAt = "last_synced_at"

// Conflict is a path left unresolved by the last pass.
type Conflict struct {
	Path       string `db:"path"`
	DetectedAt int64  `db:"detected_at"`
}

// StateDB keeps the local replica bookkeeping: the file index used to detect
// deletions, the tombstones, the sync checkpoint and unresolved conflicts.
type StateDB struct {
	db *sqlx.DB
}

var (
	_ syncer.CheckpointStore = (*StateDB)(nil)
	_ syncer.ConflictStore   = (*StateDB)(nil)
)

// OpenState opens the state database at path. An empty path keeps it in memory.
func OpenState(path string) (*StateDB, error) {
	opts := []db.SqliteOption{db.WithSchema(stateSchema)}
	if path != "" {
		opts = append(opts, db.WithPath(path), db.WithMaxOpenConns(1))
	}

	conn, err := db.NewSqliteDB(opts...)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	return &StateDB{db: conn}, nil
}

func (s *StateDB) Close() error {
	return s.db.Close()
}

func (s *StateDB) Load(ctx context.Context) (int64, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM kv WHERE key = ?`, keyLastSyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return strconv.ParseInt(value, 10, 64)
}

func (s *StateDB) Store(ctx context.Context, lastSyncedAt int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		keyLastSyncedAt, strconv.FormatInt(lastSyncedAt, 10))
	return err
}

// Tombstones returns every recorded deletion.
func (s *StateDB) Tombstones(ctx context.Context) ([]syncer.FileMetadata, error) {
	var files []syncer.FileMetadata
	err := s.db.SelectContext(ctx, &files,
		`SELECT path, 0 AS size, created_at, updated_at, deleted_at, 1 AS deleted FROM file_history ORDER BY path`)
	return files, err
}

// Tombstone returns the deletion recorded for path, if any.
func (s *StateDB) Tombstone(ctx context.Context, path string) (*syncer.FileMetadata, error) {
	var f syncer.FileMetadata
	err := s.db.GetContext(ctx, &f,
		`SELECT path, 0 AS size, created_at, updated_at, deleted_at, 1 AS deleted FROM file_history WHERE path = ?`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &f, nil
}

// MarkDeleted records a tombstone for f and drops it from the index.
func (s *StateDB) MarkDeleted(ctx context.Context, f syncer.FileMetadata, deletedAt int64) error {
	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO file_history (path, created_at, updated_at, deleted_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				created_at = excluded.created_at,
				updated_at = excluded.updated_at,
				deleted_at = excluded.deleted_at`,
			f.Path, f.CreatedAt, f.UpdatedAt, deletedAt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM file_index WHERE path = ?`, f.Path)
		return err
	})
}

// RemoveTombstone forgets the deletion recorded for path.
func (s *StateDB) RemoveTombstone(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM file_history WHERE path = ?`, path)
	return err
}

// Index returns the live files seen by the last walk, keyed by path.
func (s *StateDB) Index(ctx context.Context) (map[string]syncer.FileMetadata, error) {
	var files []syncer.FileMetadata
	if err := s.db.SelectContext(ctx, &files,
		`SELECT path, size, created_at, updated_at FROM file_index`); err != nil {
		return nil, err
	}

	index := make(map[string]syncer.FileMetadata, len(files))
	for _, f := range files {
		index[f.Path] = f
	}
	return index, nil
}

// Indexed records a live file written by the replica itself. Any tombstone for
// the path is dropped.
func (s *StateDB) Indexed(ctx context.Context, f syncer.FileMetadata) error {
	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := upsertIndex(ctx, tx, f); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM file_history WHERE path = ?`, f.Path)
		return err
	})
}

// ReplaceIndex swaps the whole index for files and drops tombstones of paths
// that are live again.
func (s *StateDB) ReplaceIndex(ctx context.Context, files []syncer.FileMetadata) error {
	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM file_index`); err != nil {
			return err
		}
		for _, f := range files {
			if err := upsertIndex(ctx, tx, f); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM file_history WHERE path = ?`, f.Path); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertIndex(ctx context.Context, tx *sqlx.Tx, f syncer.FileMetadata) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO file_index (path, size, created_at, updated_at) VALUES (:path, :size, :created_at, :updated_at)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`, f)
	return err
}

// SetConflicts records paths as the open conflicts. Paths already open keep the
// time they were first detected, paths missing from the list are closed.
func (s *StateDB) SetConflicts(ctx context.Context, paths []string, detectedAt int64) error {
	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if len(paths) == 0 {
			_, err := tx.ExecContext(ctx, `DELETE FROM conflicts`)
			return err
		}

		query, args, err := sqlx.In(`DELETE FROM conflicts WHERE path NOT IN (?)`, paths)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return err
		}

		for _, p := range paths {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO conflicts (path, detected_at) VALUES (?, ?) ON CONFLICT(path) DO NOTHING`, p, detectedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

// OpenConflicts returns the paths of the open conflicts.
func (s *StateDB) OpenConflicts(ctx context.Context) ([]string, error) {
	var paths []string
	err := s.db.SelectContext(ctx, &paths, `SELECT path FROM conflicts ORDER BY path`)
	return paths, err
}

func (s *StateDB) Conflicts(ctx context.Context) ([]Conflict, error) {
	var conflicts []Conflict
	err := s.db.SelectContext(ctx, &conflicts, `SELECT path, detected_at FROM conflicts ORDER BY path`)
	return conflicts, err
}
