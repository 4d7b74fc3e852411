package files

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/paintress/paintress-sync/internal/db"
	"github.com/paintress/paintress-sync/internal/server/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *blob.LocalBackend) {
	t.Helper()

	sqlDB, err := db.NewSqliteDB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	index, err := NewIndex(sqlDB)
	require.NoError(t, err)

	backend, err := blob.NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	return NewService(index, backend), backend
}

func write(t *testing.T, svc *Service, ws, path, content string, prev, updated int64) (*File, error) {
	t.Helper()
	return svc.Write(context.Background(), &WriteParams{
		Workspace:         ws,
		Path:              path,
		Body:              bytes.NewReader([]byte(content)),
		Size:              int64(len(content)),
		PreviousUpdatedAt: prev,
		UpdatedAt:         updated,
	})
}

func readAll(t *testing.T, svc *Service, f *File) string {
	t.Helper()
	resp, err := svc.Open(context.Background(), f)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestWriteCreatesAndUpdates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	created, err := write(t, svc, "ws", "notes/a.md", "one", 0, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, created.FileID)
	assert.Equal(t, int64(100), created.CreatedAt)
	assert.Equal(t, int64(100), created.UpdatedAt)
	assert.Equal(t, int64(3), created.Size)
	assert.Len(t, created.BlobHash, 64)

	updated, err := write(t, svc, "ws", "notes/a.md", "two!", 100, 200)
	require.NoError(t, err)
	assert.Equal(t, created.FileID, updated.FileID)
	assert.Equal(t, int64(100), updated.CreatedAt)
	assert.Equal(t, int64(200), updated.UpdatedAt)
	assert.Equal(t, "two!", readAll(t, svc, updated))

	summary, err := svc.Summary(ctx, "ws")
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, int64(4), summary[0].Size)

	// old blob is gone
	_, err = svc.backend.GetObject(ctx, created.BlobKey)
	assert.ErrorIs(t, err, blob.ErrObjectNotFound)
}

func TestWriteGuard(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := write(t, svc, "ws", "a.md", "one", 0, 100)
	require.NoError(t, err)

	_, err = write(t, svc, "ws", "a.md", "stale", 50, 300)
	assert.ErrorIs(t, err, ErrFileConflict)

	f, err := svc.index.ByPath(context.Background(), svc.index.db, "ws", "a.md")
	require.NoError(t, err)
	assert.Equal(t, int64(100), f.UpdatedAt)
	assert.Equal(t, "one", readAll(t, svc, f))
}

func TestDeleteAndRevive(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	created, err := write(t, svc, "ws", "a.md", "one", 0, 100)
	require.NoError(t, err)

	_, err = svc.Delete(ctx, &DeleteParams{Workspace: "ws", Path: "a.md", PreviousUpdatedAt: 99, UpdatedAt: 150})
	assert.ErrorIs(t, err, ErrFileConflict)

	deleted, err := svc.Delete(ctx, &DeleteParams{Workspace: "ws", Path: "a.md", PreviousUpdatedAt: 100, UpdatedAt: 150})
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
	assert.Equal(t, int64(150), deleted.DeletedAt)
	assert.Equal(t, int64(150), deleted.UpdatedAt)
	assert.Empty(t, deleted.BlobKey)

	_, err = svc.Open(ctx, deleted)
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = svc.Delete(ctx, &DeleteParams{Workspace: "ws", Path: "a.md", PreviousUpdatedAt: 150, UpdatedAt: 160})
	assert.ErrorIs(t, err, ErrFileNotFound)

	// a stale write must not bring the file back
	_, err = write(t, svc, "ws", "a.md", "stale", 100, 300)
	assert.ErrorIs(t, err, ErrFileConflict)
	tomb, err := svc.Index().ByPath(ctx, svc.Index().db, "ws", "a.md")
	require.NoError(t, err)
	assert.True(t, tomb.Deleted)
	assert.Equal(t, int64(150), tomb.UpdatedAt)

	// the revived file keeps its id
	revived, err := write(t, svc, "ws", "a.md", "again", 150, 400)
	require.NoError(t, err)
	assert.Equal(t, created.FileID, revived.FileID)
	assert.False(t, revived.Deleted)
	assert.Equal(t, int64(400), revived.CreatedAt)
	assert.Equal(t, "again", readAll(t, svc, revived))
}

func TestDeleteMissing(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Delete(context.Background(), &DeleteParams{Workspace: "ws", Path: "nope.md", UpdatedAt: 1})
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestWorkspacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	a, err := write(t, svc, "alpha", "same.md", "a", 0, 1)
	require.NoError(t, err)
	_, err = write(t, svc, "beta", "same.md", "b", 0, 1)
	require.NoError(t, err)

	list, err := svc.Summary(ctx, "beta")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotEqual(t, a.FileID, list[0].FileID)

	_, err = svc.Get(ctx, "beta", a.FileID)
	assert.ErrorIs(t, err, ErrFileNotFound)

	n, err := svc.Index().Count(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWriteRejectsBadPaths(t *testing.T) {
	svc, _ := newTestService(t)
	for _, p := range []string{"", "/abs.md", "../up.md", "a//b.md", "a/./b.md", `win\path.md`} {
		_, err := write(t, svc, "ws", p, "x", 0, 1)
		assert.ErrorIs(t, err, ErrInvalidPath, p)
	}
}

func TestDownloadURLWithoutPresign(t *testing.T) {
	svc, _ := newTestService(t)
	f, err := write(t, svc, "ws", "a.md", "x", 0, 1)
	require.NoError(t, err)

	url, err := svc.DownloadURL(context.Background(), f)
	require.NoError(t, err)
	assert.Empty(t, url)

	svc.presign = true
	url, err = svc.DownloadURL(context.Background(), f)
	require.NoError(t, err)
	assert.Empty(t, url, "local backend cannot presign")
}
