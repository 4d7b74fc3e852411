// Package localfs is the host replica: a directory on disk plus a SQLite state
// database that remembers deletions.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
	"github.com/paintress/paintress-sync/internal/syncer"
	"github.com/paintress/paintress-sync/internal/utils"
)

const trashDir = StateDir + "/trash"

// FS exposes a directory as a syncer.FileSystem.
//
// Deletions are detected by comparing each walk with the index stored by the
// previous one, so a tombstone's DeletedAt is the time the deletion was noticed.
type FS struct {
	root        string
	state       *StateDB
	ignore      *IgnoreList
	maxFileSize int64
	useTrash    bool
	now         func() int64
	mu          sync.Mutex
}

var _ syncer.FileSystem = (*FS)(nil)

type Option func(*FS)

// WithIgnoreList replaces the default ignore rules.
func WithIgnoreList(l *IgnoreList) Option {
	return func(f *FS) {
		f.ignore = l
	}
}

// WithMaxFileSize skips files larger than n bytes. Zero means no limit.
func WithMaxFileSize(n int64) Option {
	return func(f *FS) {
		f.maxFileSize = n
	}
}

// WithTrash moves removed files under .paintress/trash instead of unlinking them.
func WithTrash(enabled bool) Option {
	return func(f *FS) {
		f.useTrash = enabled
	}
}

func WithClock(now func() int64) Option {
	return func(f *FS) {
		f.now = now
	}
}

func New(root string, state *StateDB, opts ...Option) (*FS, error) {
	root, err := utils.ResolvePath(root)
	if err != nil {
		return nil, err
	}
	if !utils.DirExists(root) {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}

	f := &FS{
		root:  root,
		state: state,
		now:   func() int64 { return time.Now().UnixMilli() },
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.ignore == nil {
		if f.ignore, err = NewIgnoreList(root, nil); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *FS) Root() string {
	return f.root
}

// IsIgnored reports whether an absolute path under root is invisible to the replica.
func (f *FS) IsIgnored(absPath string) bool {
	rel, err := filepath.Rel(f.root, absPath)
	if err != nil || !filepath.IsLocal(rel) {
		return true
	}
	return f.ignore.ShouldIgnore(filepath.ToSlash(rel))
}

// abs maps a replica path to a location under root.
func (f *FS) abs(path string) (string, error) {
	local := filepath.FromSlash(path)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("path %q escapes the replica root", path)
	}
	return filepath.Join(f.root, local), nil
}

func (f *FS) walk() ([]syncer.FileMetadata, error) {
	var files []syncer.FileMetadata

	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if p == f.root {
			return nil
		}

		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if f.ignore.ShouldIgnore(rel) || f.ignore.ShouldIgnore(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || f.ignore.ShouldIgnore(rel) {
			return nil
		}

		info, err := d.Info()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		} else if err != nil {
			return err
		}

		if f.maxFileSize > 0 && info.Size() > f.maxFileSize {
			slog.Debug("file too large, skipping", "path", rel, "size", humanize.Bytes(uint64(info.Size())))
			return nil
		}

		mtime := info.ModTime().UnixMilli()
		files = append(files, syncer.FileMetadata{
			Path:      rel,
			Size:      info.Size(),
			CreatedAt: mtime,
			UpdatedAt: mtime,
		})
		return nil
	})

	return files, err
}

// GetFiles walks the root, records tombstones for indexed files that vanished
// and returns live files followed by tombstones.
func (f *FS) GetFiles(ctx context.Context) ([]syncer.FileMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	live, err := f.walk()
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", f.root, err)
	}

	index, err := f.state.Index(ctx)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	seen := mapset.NewThreadUnsafeSetWithSize[string](len(live))
	for i := range live {
		file := &live[i]
		seen.Add(file.Path)
		// keep the creation time of files we already know, unless the file was
		// replaced by one that is older than our record
		if prev, ok := index[file.Path]; ok && prev.CreatedAt <= file.UpdatedAt {
			file.CreatedAt = prev.CreatedAt
		}
	}

	now := f.now()
	for path, prev := range index {
		if seen.Contains(path) {
			continue
		}
		if f.ignore.ShouldIgnore(path) {
			continue
		}
		// over the size limit is not a deletion
		if abs, err := f.abs(path); err == nil && utils.FileExists(abs) {
			continue
		}
		slog.Debug("deletion detected", "path", path)
		if err := f.state.MarkDeleted(ctx, prev, now); err != nil {
			return nil, fmt.Errorf("mark deleted %s: %w", path, err)
		}
	}

	if err := f.state.ReplaceIndex(ctx, live); err != nil {
		return nil, fmt.Errorf("store index: %w", err)
	}

	tombstones, err := f.state.Tombstones(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tombstones: %w", err)
	}

	files := slices.Grow(live, len(tombstones))
	for _, t := range tombstones {
		if !seen.Contains(t.Path) {
			files = append(files, t)
		}
	}
	return files, nil
}

func (f *FS) GetFileContent(_ context.Context, path string) ([]byte, error) {
	abs, err := f.abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", syncer.ErrNotFound, err)
	}

	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, syncer.ErrNotFound)
	} else if err != nil {
		return nil, err
	}
	return data, nil
}

// stat returns the recorded modification time of the file at abs, or zero when
// nothing live is there.
func stat(abs string) (int64, error) {
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", abs)
	}
	return info.ModTime().UnixMilli(), nil
}

func (f *FS) Update(ctx context.Context, path string, content []byte, previousUpdatedAt, newUpdatedAt int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	abs, err := f.abs(path)
	if err != nil {
		return err
	}

	mtime, err := stat(abs)
	if err != nil {
		return err
	}
	if mtime != 0 && mtime != previousUpdatedAt {
		return fmt.Errorf("%s: modified at %d, expected %d: %w", path, mtime, previousUpdatedAt, syncer.ErrConflict)
	}
	if mtime == 0 {
		tomb, err := f.state.Tombstone(ctx, path)
		if err != nil {
			return fmt.Errorf("load tombstone %s: %w", path, err)
		}
		if tomb != nil && tomb.UpdatedAt != previousUpdatedAt {
			return fmt.Errorf("%s: deleted at %d, expected %d: %w", path, tomb.DeletedAt, previousUpdatedAt, syncer.ErrConflict)
		}
	}

	if err := utils.WriteFileAtomic(abs, content, time.UnixMilli(newUpdatedAt)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	createdAt := newUpdatedAt
	if mtime != 0 {
		if index, err := f.state.Index(ctx); err == nil {
			if prev, ok := index[path]; ok {
				createdAt = prev.CreatedAt
			}
		}
	}

	return f.state.Indexed(ctx, syncer.FileMetadata{
		Path:      path,
		Size:      int64(len(content)),
		CreatedAt: createdAt,
		UpdatedAt: newUpdatedAt,
	})
}

func (f *FS) Remove(ctx context.Context, path string, previousUpdatedAt int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	abs, err := f.abs(path)
	if err != nil {
		return err
	}

	mtime, err := stat(abs)
	if err != nil {
		return err
	}
	if mtime == 0 {
		return nil
	}
	if mtime != previousUpdatedAt {
		return fmt.Errorf("%s: modified at %d, expected %d: %w", path, mtime, previousUpdatedAt, syncer.ErrConflict)
	}

	createdAt := mtime
	if index, err := f.state.Index(ctx); err == nil {
		if prev, ok := index[path]; ok {
			createdAt = prev.CreatedAt
		}
	}

	if f.useTrash {
		dst := filepath.Join(f.root, filepath.FromSlash(trashDir), strconv.FormatInt(f.now(), 10), filepath.FromSlash(path))
		err = utils.MoveFile(abs, dst)
	} else {
		err = os.Remove(abs)
	}
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	f.removeEmptyParents(abs)

	return f.state.MarkDeleted(ctx, syncer.FileMetadata{
		Path:      path,
		CreatedAt: createdAt,
		UpdatedAt: mtime,
	}, f.now())
}

// removeEmptyParents deletes directories left empty by a removal, up to root.
func (f *FS) removeEmptyParents(abs string) {
	for dir := filepath.Dir(abs); dir != f.root && strings.HasPrefix(dir, f.root); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}

func (f *FS) Prune(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.RemoveTombstone(ctx, path)
}
