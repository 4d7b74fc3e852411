package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paintress/paintress-sync/internal/client/config"
	"github.com/paintress/paintress-sync/internal/client/workspace"
	"github.com/paintress/paintress-sync/internal/conflict"
	"github.com/paintress/paintress-sync/internal/crypto"
	"github.com/paintress/paintress-sync/internal/replica/localfs"
	"github.com/paintress/paintress-sync/internal/replica/remotefs"
	"github.com/paintress/paintress-sync/internal/syncer"
	"github.com/paintress/paintress-sync/internal/utils"
)

// Client wires one synced folder to one server workspace.
type Client struct {
	config     *config.Config
	workspace  *workspace.Workspace
	state      *localfs.StateDB
	host       *localfs.FS
	remote     *remotefs.Client
	controller *syncer.Controller
}

// Status is a read-only view of the folder and the server.
type Status struct {
	ServerURL     string
	Workspace     string
	ServerVersion string
	PingError     error
	LastSyncedAt  int64
	Pending       []*syncer.SyncAction
	Conflicts     []localfs.Conflict
}

func (s *Status) Connected() bool {
	return s.PingError == nil
}

func New(cfg *config.Config) (*Client, error) {
	ws, err := workspace.NewWorkspace(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	if err := utils.EnsureDir(ws.StateDir); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}

	state, err := localfs.OpenState(ws.StatePath)
	if err != nil {
		return nil, err
	}

	ignore, err := localfs.NewIgnoreList(ws.Root, cfg.ExcludeGlobs)
	if err != nil {
		state.Close()
		return nil, err
	}

	host, err := localfs.New(ws.Root, state,
		localfs.WithIgnoreList(ignore),
		localfs.WithMaxFileSize(cfg.MaxFileSizeBytes()),
		localfs.WithTrash(cfg.Trash),
	)
	if err != nil {
		state.Close()
		return nil, err
	}

	remote, err := remotefs.New(&remotefs.Config{
		ServerURL: cfg.ServerURL,
		Token:     cfg.Token,
		DeviceID:  cfg.DeviceID,
	})
	if err != nil {
		state.Close()
		return nil, err
	}

	opts := []syncer.Option{
		syncer.WithResolver(conflict.NewResolver(cfg.Policy())),
		syncer.WithConflictStore(state),
	}
	if cfg.EncryptionKey != "" {
		opts = append(opts, syncer.WithCipher(crypto.NewPasswordCipher(cfg.EncryptionKey)))
	}

	return &Client{
		config:     cfg,
		workspace:  ws,
		state:      state,
		host:       host,
		remote:     remote,
		controller: syncer.NewController(host, remote, state, opts...),
	}, nil
}

// Lock takes the workspace lock. Only one process may sync a folder.
func (c *Client) Lock() error {
	return c.workspace.Setup()
}

func (c *Client) Close() error {
	c.remote.Close()
	err := c.state.Close()
	return errors.Join(err, c.workspace.Unlock())
}

// SyncOnce runs a single pass. Conflicts it leaves behind stay open in the state
// database until a later pass sees both sides agree.
func (c *Client) SyncOnce(ctx context.Context) (*syncer.Report, error) {
	return c.controller.Sync(ctx)
}

// Status pings the server and computes the pending actions without applying them.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	st := &Status{ServerURL: c.remote.ServerURL()}

	lastSyncedAt, err := c.state.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	st.LastSyncedAt = lastSyncedAt

	if st.Conflicts, err = c.state.Conflicts(ctx); err != nil {
		return nil, fmt.Errorf("load conflicts: %w", err)
	}

	ping, err := c.remote.Ping(ctx)
	if err != nil {
		st.PingError = err
		return st, nil
	}
	st.Workspace = ping.Workspace
	st.ServerVersion = ping.Version

	plan, _, err := c.controller.Plan(ctx)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	st.Pending = plan.Actions()

	return st, nil
}

// runSync is the daemon entry point: a pass that is already running is skipped.
func (c *Client) runSync(ctx context.Context, reason string) {
	start := time.Now()
	report, err := c.SyncOnce(ctx)
	switch {
	case errors.Is(err, syncer.ErrSyncInProgress):
		slog.Debug("sync skipped", "reason", reason, "cause", "in progress")
	case errors.Is(err, context.Canceled):
	case err != nil:
		slog.Error("sync failed", "reason", reason, "error", err, "took", time.Since(start))
	case report.Changed():
		slog.Debug("sync pass", "reason", reason, "took", report.Took)
	}
}
