package remotefs_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paintress/paintress-sync/internal/crypto"
	"github.com/paintress/paintress-sync/internal/db"
	"github.com/paintress/paintress-sync/internal/replica/localfs"
	"github.com/paintress/paintress-sync/internal/replica/remotefs"
	"github.com/paintress/paintress-sync/internal/server"
	"github.com/paintress/paintress-sync/internal/server/auth"
	"github.com/paintress/paintress-sync/internal/server/blob"
	"github.com/paintress/paintress-sync/internal/server/events"
	"github.com/paintress/paintress-sync/internal/syncer"
	"github.com/paintress/paintress-sync/internal/syncmsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	url string
	svc *server.Services
	hub *events.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &server.Config{
		DataDir: t.TempDir(),
		Blob:    blob.Config{Backend: blob.BackendLocal},
		Auth: auth.Config{
			Enabled:           true,
			TokenIssuer:       "test",
			AccessTokenSecret: "0123456789abcdef0123456789abcdef",
			AccessTokenExpiry: time.Hour,
		},
	}
	require.NoError(t, cfg.Validate())

	sqlDB, err := db.NewSqliteDB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	svc, err := server.NewServices(cfg, sqlDB)
	require.NoError(t, err)

	hub := events.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	handler, err := server.SetupRoutes(cfg, svc, hub)
	require.NoError(t, err)
	srv := httptest.NewServer(handler)

	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		hub.Shutdown(shutdownCtx)
		cancel()
		srv.Close()
	})
	return &testServer{url: srv.URL, svc: svc, hub: hub}
}

func (s *testServer) client(t *testing.T, workspace, device string) *remotefs.Client {
	t.Helper()
	token, err := s.svc.Auth.IssueToken(workspace, 0)
	require.NoError(t, err)

	c, err := remotefs.New(&remotefs.Config{ServerURL: s.url, Token: token, DeviceID: device})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestPing(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t, "studio", "dev-a")

	pong, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "studio", pong.Workspace)

	bad, err := remotefs.New(&remotefs.Config{ServerURL: srv.url, Token: "nope"})
	require.NoError(t, err)
	_, err = bad.Ping(context.Background())
	assert.ErrorIs(t, err, remotefs.ErrUnauthorized)
}

func TestNewRequiresServerURL(t *testing.T) {
	_, err := remotefs.New(&remotefs.Config{})
	assert.ErrorIs(t, err, remotefs.ErrNoServerURL)

	_, err = remotefs.New(&remotefs.Config{ServerURL: "not a url"})
	assert.Error(t, err)
}

func TestFileSystemContract(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	c := srv.client(t, "studio", "dev-a")

	require.NoError(t, c.Update(ctx, "a.md", []byte("one"), 0, 1000))

	files, err := c.GetFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, syncer.FileMetadata{Path: "a.md", Size: 3, CreatedAt: 1000, UpdatedAt: 1000}, files[0])

	data, err := c.GetFileContent(ctx, "a.md")
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	// guard
	err = c.Update(ctx, "a.md", []byte("two"), 999, 2000)
	assert.ErrorIs(t, err, syncer.ErrConflict)
	err = c.Remove(ctx, "a.md", 999)
	assert.ErrorIs(t, err, syncer.ErrConflict)

	require.NoError(t, c.Remove(ctx, "a.md", 1000))
	files, err = c.GetFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, files[0].Deleted)
	assert.Positive(t, files[0].DeletedAt)

	_, err = c.GetFileContent(ctx, "a.md")
	assert.ErrorIs(t, err, syncer.ErrNotFound)
	_, err = c.GetFileContent(ctx, "never.md")
	assert.ErrorIs(t, err, syncer.ErrNotFound)

	// removing a tombstone is a no-op
	assert.NoError(t, c.Remove(ctx, "a.md", 0))
	assert.ErrorIs(t, c.Prune(ctx, "a.md"), syncer.ErrUnsupported)
}

func TestWorkspacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	alpha := srv.client(t, "alpha", "dev-a")
	beta := srv.client(t, "beta", "dev-b")

	require.NoError(t, alpha.Update(ctx, "a.md", []byte("a"), 0, 1))

	files, err := beta.GetFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestSubscribeSkipsOwnEvents(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	writer := srv.client(t, "studio", "dev-writer")
	other := srv.client(t, "studio", "dev-other")
	listener := srv.client(t, "studio", "dev-writer")

	var mu sync.Mutex
	var got []string
	seen := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), got...)
	}

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go listener.Subscribe(subCtx, func(fc *syncmsg.FilesChanged) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, fc.Paths...)
	})

	require.Eventually(t, func() bool {
		return srv.hub.ActiveClients("studio") == 1
	}, 5*time.Second, 10*time.Millisecond)

	// same socket, so the own event would arrive before the foreign one
	require.NoError(t, writer.Update(ctx, "self.md", []byte("x"), 0, 100))
	require.NoError(t, other.Update(ctx, "other.md", []byte("y"), 0, 200))

	require.Eventually(t, func() bool {
		return len(seen()) > 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"other.md"}, seen())
}

func TestSyncLocalWithServer(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)

	newHost := func(device string) (*syncer.Controller, string) {
		root := t.TempDir()
		state, err := localfs.OpenState("")
		require.NoError(t, err)
		t.Cleanup(func() { state.Close() })

		host, err := localfs.New(root, state)
		require.NoError(t, err)

		remote := srv.client(t, "studio", device)
		cipher := crypto.NewPasswordCipher("correct horse")
		return syncer.NewController(host, remote, state, syncer.WithCipher(cipher)), root
	}

	laptop, laptopRoot := newHost("laptop")
	desktop, desktopRoot := newHost("desktop")

	write := func(root, rel, content string) {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
	read := func(root, rel string) string {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		require.NoError(t, err)
		return string(data)
	}

	write(laptopRoot, "journal/monday.md", "went climbing")

	report, err := laptop.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, report.Committed)
	assert.Equal(t, 1, report.Applied[syncer.ActionPush])

	// the server only holds ciphertext
	stored, err := srv.svc.Files.Summary(ctx, "studio")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotEqual(t, int64(len("went climbing")), stored[0].Size)

	report, err = desktop.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied[syncer.ActionPull])
	assert.Equal(t, "went climbing", read(desktopRoot, "journal/monday.md"))

	// deletion on desktop reaches the laptop
	require.NoError(t, os.Remove(filepath.Join(desktopRoot, "journal/monday.md")))
	time.Sleep(5 * time.Millisecond)
	_, err = desktop.Sync(ctx)
	require.NoError(t, err)

	_, err = laptop.Sync(ctx)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(laptopRoot, "journal/monday.md"))
	assert.True(t, os.IsNotExist(err))
}
