package syncer_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/paintress/paintress-sync/internal/replica/memfs"
	"github.com/paintress/paintress-sync/internal/syncer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passAt = int64(1000)

func clock() int64 { return passAt }

// latestWins merges by taking the newer side, like the text resolver does.
type latestWins struct{ calls int }

func (r *latestWins) CanResolve(_, _ *syncer.FileMetadata) bool { return true }

func (r *latestWins) Resolve(host, remote *syncer.FileMetadata, hostContent, remoteContent []byte) ([]byte, error) {
	r.calls++
	if host.UpdatedAt > remote.UpdatedAt {
		return hostContent, nil
	}
	return remoteContent, nil
}

type refuseAll struct{}

func (refuseAll) CanResolve(_, _ *syncer.FileMetadata) bool { return false }

func (refuseAll) Resolve(_, _ *syncer.FileMetadata, _, _ []byte) ([]byte, error) {
	return nil, syncer.ErrUnresolvable
}

func newPair() (*memfs.FS, *memfs.FS) {
	return memfs.New(memfs.WithClock(clock)), memfs.New(memfs.WithClock(clock), memfs.WithoutPrune())
}

func content(t *testing.T, fs syncer.FileSystem, path string) string {
	t.Helper()
	data, err := fs.GetFileContent(context.Background(), path)
	require.NoError(t, err)
	return string(data)
}

func TestSyncFirstPassConverges(t *testing.T) {
	ctx := context.Background()
	host, remote := newPair()
	host.Put("notes/a.md", []byte("from host"), 100, 100)
	remote.Put("b.txt", []byte("from remote"), 200, 200)

	cp := syncer.NewMemoryCheckpoint(0)
	c := syncer.NewController(host, remote, cp, syncer.WithClock(clock))

	report, err := c.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, report.Committed)
	assert.Equal(t, 1, report.Applied[syncer.ActionPush])
	assert.Equal(t, 1, report.Applied[syncer.ActionPull])

	assert.Equal(t, "from host", content(t, remote, "notes/a.md"))
	assert.Equal(t, "from remote", content(t, host, "b.txt"))

	meta, _ := remote.Stat("notes/a.md")
	assert.Equal(t, int64(100), meta.UpdatedAt, "pushed version keeps the host timestamp")

	last, err := cp.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, passAt, last)

	// a second pass has nothing to do
	report, err = c.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, report.Changed())
}

func TestSyncPropagatesDeletion(t *testing.T) {
	ctx := context.Background()
	host, remote := newPair()
	host.Tombstone("a.txt", 10, 50, 500)
	remote.Put("a.txt", []byte("old"), 10, 50)

	cp := syncer.NewMemoryCheckpoint(100)
	c := syncer.NewController(host, remote, cp, syncer.WithClock(clock))

	report, err := c.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied[syncer.ActionRemove])

	meta, ok := remote.Stat("a.txt")
	require.True(t, ok)
	assert.True(t, meta.Deleted)

	// both tombstones now exist, the host one gets pruned while the remote one stays
	report, err = c.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied[syncer.ActionPrune])

	_, ok = host.Stat("a.txt")
	assert.False(t, ok)
	_, ok = remote.Stat("a.txt")
	assert.True(t, ok)
}

func TestSyncRemoteDeletionRemovesHostCopy(t *testing.T) {
	ctx := context.Background()
	host, remote := newPair()
	host.Put("a.txt", []byte("old"), 10, 50)
	remote.Tombstone("a.txt", 10, 50, 500)

	c := syncer.NewController(host, remote, syncer.NewMemoryCheckpoint(100), syncer.WithClock(clock))
	_, err := c.Sync(ctx)
	require.NoError(t, err)

	meta, ok := host.Stat("a.txt")
	require.True(t, ok)
	assert.True(t, meta.Deleted)
	assert.Equal(t, passAt, meta.DeletedAt)
}

func TestSyncResolvesConflict(t *testing.T) {
	ctx := context.Background()
	host, remote := newPair()
	host.Put("a.md", []byte("host edit"), 10, 150)
	remote.Put("a.md", []byte("remote edit"), 10, 160)

	resolver := &latestWins{}
	cp := syncer.NewMemoryCheckpoint(100)
	c := syncer.NewController(host, remote, cp, syncer.WithClock(clock), syncer.WithResolver(resolver))

	report, err := c.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.calls)
	assert.Equal(t, 1, report.Applied[syncer.ActionConflict])
	assert.Empty(t, report.UnresolvedConflicts)

	assert.Equal(t, "remote edit", content(t, host, "a.md"))
	assert.Equal(t, "remote edit", content(t, remote, "a.md"))

	// both sides are stamped with the previous checkpoint, so the next pass is quiet
	hm, _ := host.Stat("a.md")
	rm, _ := remote.Stat("a.md")
	assert.Equal(t, int64(100), hm.UpdatedAt)
	assert.Equal(t, int64(100), rm.UpdatedAt)

	report, err = c.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, report.Changed())
}

func TestSyncReportsUnresolvedConflict(t *testing.T) {
	ctx := context.Background()
	host, remote := newPair()
	host.Put("image.png", []byte("host"), 10, 150)
	remote.Put("image.png", []byte("remote"), 10, 160)

	cp := syncer.NewMemoryCheckpoint(100)
	c := syncer.NewController(host, remote, cp, syncer.WithClock(clock), syncer.WithResolver(refuseAll{}))

	report, err := c.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"image.png"}, report.UnresolvedConflicts)
	assert.True(t, report.Committed)
	assert.Zero(t, report.Applied[syncer.ActionConflict])

	assert.Equal(t, "host", content(t, host, "image.png"))
	assert.Equal(t, "remote", content(t, remote, "image.png"))
}

func TestSyncKeepsUnresolvedConflictOpen(t *testing.T) {
	ctx := context.Background()
	host, remote := newPair()
	host.Put("image.png", []byte("host"), 10, 150)
	remote.Put("image.png", []byte("remote"), 10, 160)

	conflicts := syncer.NewMemoryConflicts()
	c := syncer.NewController(host, remote, syncer.NewMemoryCheckpoint(100),
		syncer.WithClock(clock), syncer.WithResolver(refuseAll{}), syncer.WithConflictStore(conflicts))

	for pass := 1; pass <= 2; pass++ {
		report, err := c.Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"image.png"}, report.UnresolvedConflicts, "pass %d", pass)
		assert.Equal(t, 1, report.Planned[syncer.ActionConflict], "pass %d", pass)

		open, err := conflicts.OpenConflicts(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"image.png"}, open, "pass %d", pass)
	}
	assert.Equal(t, "host", content(t, host, "image.png"))
	assert.Equal(t, "remote", content(t, remote, "image.png"))

	plan, _, err := c.Plan(ctx)
	require.NoError(t, err)
	action, ok := plan.Get("image.png")
	require.True(t, ok)
	assert.Equal(t, syncer.ActionConflict, action.Kind)

	// both sides agree again, the conflict closes
	host.Put("image.png", []byte("same"), 10, 900)
	remote.Put("image.png", []byte("same"), 10, 900)
	report, err := c.Sync(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.UnresolvedConflicts)

	open, err := conflicts.OpenConflicts(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestSyncWithoutResolverLeavesConflicts(t *testing.T) {
	host, remote := newPair()
	host.Put("a.md", []byte("host"), 10, 150)
	remote.Put("a.md", []byte("remote"), 10, 160)

	c := syncer.NewController(host, remote, syncer.NewMemoryCheckpoint(100), syncer.WithClock(clock))
	report, err := c.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md"}, report.UnresolvedConflicts)
}

// faultyFS injects errors in front of a memfs replica.
type faultyFS struct {
	*memfs.FS
	updateErr  error
	missing    string
	blockFiles chan struct{}
	entered    chan struct{}
}

func (f *faultyFS) GetFiles(ctx context.Context) ([]syncer.FileMetadata, error) {
	if f.blockFiles != nil {
		close(f.entered)
		<-f.blockFiles
	}
	return f.FS.GetFiles(ctx)
}

func (f *faultyFS) GetFileContent(ctx context.Context, path string) ([]byte, error) {
	if path == f.missing {
		return nil, syncer.ErrNotFound
	}
	return f.FS.GetFileContent(ctx, path)
}

func (f *faultyFS) Update(ctx context.Context, path string, content []byte, prev, next int64) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.FS.Update(ctx, path, content, prev, next)
}

func TestSyncAbortsOnConflictError(t *testing.T) {
	ctx := context.Background()
	host, inner := newPair()
	host.Put("a.txt", []byte("a"), 150, 150)
	host.Put("b.txt", []byte("b"), 150, 150)
	remote := &faultyFS{FS: inner, updateErr: syncer.ErrConflict}

	cp := syncer.NewMemoryCheckpoint(100)
	c := syncer.NewController(host, remote, cp, syncer.WithClock(clock))

	report, err := c.Sync(ctx)
	require.ErrorIs(t, err, syncer.ErrConflict)
	require.NotNil(t, report)
	assert.False(t, report.Committed)
	assert.Zero(t, report.Applied[syncer.ActionPush], "pass stops at the first failure")

	last, _ := cp.Load(ctx)
	assert.Equal(t, int64(100), last)
}

func TestSyncAbortsOnTransportError(t *testing.T) {
	ctx := context.Background()
	host, inner := newPair()
	host.Put("a.txt", []byte("a"), 150, 150)
	remote := &faultyFS{FS: inner, updateErr: errors.Join(errors.New("dial tcp"), syncer.ErrTransport)}

	cp := syncer.NewMemoryCheckpoint(100)
	_, err := syncer.NewController(host, remote, cp, syncer.WithClock(clock)).Sync(ctx)
	require.ErrorIs(t, err, syncer.ErrTransport)

	last, _ := cp.Load(ctx)
	assert.Equal(t, int64(100), last)
}

func TestSyncNotFoundFailsOnlyThatAction(t *testing.T) {
	ctx := context.Background()
	inner, remote := newPair()
	inner.Put("a.txt", []byte("a"), 150, 150)
	inner.Put("b.txt", []byte("b"), 150, 150)
	host := &faultyFS{FS: inner, missing: "a.txt"}

	cp := syncer.NewMemoryCheckpoint(100)
	c := syncer.NewController(host, remote, cp, syncer.WithClock(clock))

	report, err := c.Sync(ctx)
	require.ErrorIs(t, err, syncer.ErrNotFound)
	assert.Contains(t, report.Failed, "a.txt")
	assert.Equal(t, 1, report.Applied[syncer.ActionPush])
	assert.False(t, report.Committed)
	assert.Equal(t, "b", content(t, remote, "b.txt"))

	last, _ := cp.Load(ctx)
	assert.Equal(t, int64(100), last)
}

func TestSyncRejectsConcurrentPass(t *testing.T) {
	ctx := context.Background()
	inner, remote := newPair()
	host := &faultyFS{FS: inner, blockFiles: make(chan struct{}), entered: make(chan struct{})}
	c := syncer.NewController(host, remote, syncer.NewMemoryCheckpoint(0), syncer.WithClock(clock))

	done := make(chan error)
	go func() {
		_, err := c.Sync(ctx)
		done <- err
	}()

	<-host.entered
	_, err := c.Sync(ctx)
	assert.ErrorIs(t, err, syncer.ErrSyncInProgress)

	close(host.blockFiles)
	require.NoError(t, <-done)
}

// reverseCipher is a reversible stand-in for a real cipher.
type reverseCipher struct{}

func reverse(b []byte) []byte {
	out := bytes.Clone(b)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (reverseCipher) Encrypt(plain []byte) ([]byte, error) { return reverse(plain), nil }
func (reverseCipher) Decrypt(data []byte) ([]byte, error)  { return reverse(data), nil }

func TestSyncEncryptsRemoteContent(t *testing.T) {
	ctx := context.Background()
	host, remote := newPair()
	host.Put("a.txt", []byte("abc"), 150, 150)
	remote.Put("b.txt", []byte("zyx"), 150, 150)

	c := syncer.NewController(host, remote, syncer.NewMemoryCheckpoint(100),
		syncer.WithClock(clock), syncer.WithCipher(reverseCipher{}))

	_, err := c.Sync(ctx)
	require.NoError(t, err)

	assert.Equal(t, "cba", content(t, remote, "a.txt"))
	assert.Equal(t, "xyz", content(t, host, "b.txt"))
}

func TestPlanDoesNotApply(t *testing.T) {
	ctx := context.Background()
	host, remote := newPair()
	host.Put("a.txt", []byte("a"), 150, 150)

	cp := syncer.NewMemoryCheckpoint(100)
	c := syncer.NewController(host, remote, cp, syncer.WithClock(clock))

	plan, last, err := c.Plan(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), last)
	assert.Equal(t, 1, plan.Counts()[syncer.ActionPush])

	_, ok := remote.Stat("a.txt")
	assert.False(t, ok)
}
