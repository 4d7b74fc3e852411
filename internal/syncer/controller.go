package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Controller reconciles a host replica with a remote replica.
//
// A pass snapshots both sides, classifies every path into one action and applies
// the actions one at a time. The checkpoint moves forward only after a pass in
// which every action succeeded.
type Controller struct {
	host       FileSystem
	remote     FileSystem
	checkpoint CheckpointStore
	resolver   ConflictResolver
	conflicts  ConflictStore
	now        func() int64
	muSync     sync.Mutex
}

type Option func(*Controller)

// WithResolver sets the resolver used for conflicts. Without one every conflict
// is left unresolved.
func WithResolver(r ConflictResolver) Option {
	return func(c *Controller) {
		c.resolver = r
	}
}

// WithConflictStore persists unresolved conflicts. Paths it holds are classified
// as conflicts on every pass until both replicas agree on them.
func WithConflictStore(store ConflictStore) Option {
	return func(c *Controller) {
		c.conflicts = store
	}
}

// WithCipher encrypts everything written to the remote and decrypts everything read from it.
func WithCipher(cipher Cipher) Option {
	return func(c *Controller) {
		c.remote = Encrypted(c.remote, cipher)
	}
}

// WithClock overrides the millisecond clock used to stamp passes.
func WithClock(now func() int64) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func NewController(host, remote FileSystem, checkpoint CheckpointStore, opts ...Option) *Controller {
	c := &Controller{
		host:       host,
		remote:     remote,
		checkpoint: checkpoint,
		now:        func() int64 { return time.Now().UnixMilli() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Plan classifies the current state of both replicas without applying anything.
func (c *Controller) Plan(ctx context.Context) (*Plan, int64, error) {
	lastSyncedAt, err := c.checkpoint.Load(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load checkpoint: %w", err)
	}

	hostFiles, remoteFiles, err := c.snapshot(ctx)
	if err != nil {
		return nil, 0, err
	}

	plan, err := c.classify(ctx, hostFiles, remoteFiles, lastSyncedAt)
	if err != nil {
		return nil, 0, err
	}
	return plan, lastSyncedAt, nil
}

func (c *Controller) classify(ctx context.Context, hostFiles, remoteFiles []FileMetadata, lastSyncedAt int64) (*Plan, error) {
	plan := Classify(hostFiles, remoteFiles, lastSyncedAt)
	if c.conflicts == nil {
		return plan, nil
	}

	open, err := c.conflicts.OpenConflicts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load conflicts: %w", err)
	}
	plan.reopen(open, hostFiles, remoteFiles)
	return plan, nil
}

// Sync runs one pass. It fails with ErrSyncInProgress if another pass is running.
func (c *Controller) Sync(ctx context.Context) (*Report, error) {
	if !c.muSync.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer c.muSync.Unlock()

	tstart := time.Now()

	lastSyncedAt, err := c.checkpoint.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	startedAt := c.now()

	hostFiles, remoteFiles, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	plan, err := c.classify(ctx, hostFiles, remoteFiles, lastSyncedAt)
	if err != nil {
		return nil, err
	}
	report := newReport(startedAt, lastSyncedAt)
	report.Planned = plan.Counts()

	slog.Debug("sync plan", "lastSyncedAt", lastSyncedAt, "now", startedAt,
		"host", len(hostFiles), "remote", len(remoteFiles), "actions", plan.Len())

	for _, action := range plan.Actions() {
		applied, err := c.apply(ctx, action, lastSyncedAt)
		path := action.Path()

		switch {
		case err == nil && applied:
			report.Applied[action.Kind]++
			slog.Info("sync", "op", action.Kind, "path", path)
		case err == nil:
			report.UnresolvedConflicts = append(report.UnresolvedConflicts, path)
			slog.Warn("sync", "op", action.Kind, "path", path, "resolved", false)
		case errors.Is(err, ErrNotFound):
			// raced with an external change, retry on the next pass
			report.Failed[path] = err
			slog.Warn("sync", "op", action.Kind, "path", path, "error", err)
		default:
			report.Took = time.Since(tstart)
			slog.Error("sync", "op", action.Kind, "path", path, "error", err)
			return report, fmt.Errorf("%s %s: %w", action.Kind, path, err)
		}
	}

	report.Took = time.Since(tstart)

	if len(report.Failed) > 0 {
		errs := make([]error, 0, len(report.Failed))
		for path, err := range report.Failed {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
		return report, fmt.Errorf("sync incomplete: %w", errors.Join(errs...))
	}

	if c.conflicts != nil {
		if err := c.conflicts.SetConflicts(ctx, report.UnresolvedConflicts, startedAt); err != nil {
			return report, fmt.Errorf("store conflicts: %w", err)
		}
	}

	if err := c.checkpoint.Store(ctx, startedAt); err != nil {
		return report, fmt.Errorf("store checkpoint: %w", err)
	}
	report.Committed = true

	if report.Changed() {
		slog.Info("sync complete", "took", report.Took,
			"pushed", report.Applied[ActionPush],
			"pulled", report.Applied[ActionPull],
			"removed", report.Applied[ActionRemove],
			"pruned", report.Applied[ActionPrune],
			"merged", report.Applied[ActionConflict],
			"unresolved", len(report.UnresolvedConflicts),
		)
	}

	return report, nil
}

func (c *Controller) snapshot(ctx context.Context) ([]FileMetadata, []FileMetadata, error) {
	hostFiles, err := c.host.GetFiles(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("get host files: %w", err)
	}

	remoteFiles, err := c.remote.GetFiles(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("get remote files: %w", err)
	}

	return hostFiles, remoteFiles, nil
}

// apply executes a single action. It returns false without error when a
// conflict was left unresolved.
func (c *Controller) apply(ctx context.Context, a *SyncAction, lastSyncedAt int64) (bool, error) {
	switch a.Kind {
	case ActionPrune:
		return true, c.prune(ctx, a)
	case ActionRemove:
		return true, c.remove(ctx, a)
	case ActionConflict:
		return c.resolve(ctx, a, lastSyncedAt)
	case ActionPush:
		return true, c.push(ctx, a)
	case ActionPull:
		return true, c.pull(ctx, a)
	}
	return false, fmt.Errorf("unknown action %s", a.Kind)
}

func (c *Controller) prune(ctx context.Context, a *SyncAction) error {
	if a.Host != nil && a.Host.Deleted {
		return c.host.Prune(ctx, a.Host.Path)
	}
	if a.Remote != nil && a.Remote.Deleted {
		return c.remote.Prune(ctx, a.Remote.Path)
	}
	return nil
}

func (c *Controller) remove(ctx context.Context, a *SyncAction) error {
	// remote first: a host that is behind can always be corrected from the remote
	if a.Remote != nil && !a.Remote.Deleted {
		if err := c.remote.Remove(ctx, a.Remote.Path, a.Remote.UpdatedAt); err != nil {
			return fmt.Errorf("remote: %w", err)
		}
	}

	if a.Host != nil && !a.Host.Deleted {
		if err := c.host.Remove(ctx, a.Host.Path, a.Host.UpdatedAt); err != nil {
			return fmt.Errorf("host: %w", err)
		}
	}

	return nil
}

func (c *Controller) resolve(ctx context.Context, a *SyncAction, lastSyncedAt int64) (bool, error) {
	if c.resolver == nil || a.Host == nil || a.Remote == nil || a.Host.Deleted || a.Remote.Deleted {
		return false, nil
	}

	if !c.resolver.CanResolve(a.Host, a.Remote) {
		return false, nil
	}

	hostContent, err := c.host.GetFileContent(ctx, a.Host.Path)
	if err != nil {
		return false, fmt.Errorf("host: %w", err)
	}

	remoteContent, err := c.remote.GetFileContent(ctx, a.Remote.Path)
	if err != nil {
		return false, fmt.Errorf("remote: %w", err)
	}

	merged, err := c.resolver.Resolve(a.Host, a.Remote, hostContent, remoteContent)
	if errors.Is(err, ErrUnresolvable) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("resolve: %w", err)
	}

	// both sides converge on the same version, remote first
	if err := c.remote.Update(ctx, a.Remote.Path, merged, a.Remote.UpdatedAt, lastSyncedAt); err != nil {
		return false, fmt.Errorf("remote: %w", err)
	}
	if err := c.host.Update(ctx, a.Host.Path, merged, a.Host.UpdatedAt, lastSyncedAt); err != nil {
		return false, fmt.Errorf("host: %w", err)
	}

	return true, nil
}

func (c *Controller) push(ctx context.Context, a *SyncAction) error {
	if a.Host == nil {
		return nil
	}

	content, err := c.host.GetFileContent(ctx, a.Host.Path)
	if err != nil {
		return fmt.Errorf("host: %w", err)
	}

	previous := a.Host.UpdatedAt
	if a.Remote != nil {
		previous = a.Remote.UpdatedAt
	}

	if err := c.remote.Update(ctx, a.Host.Path, content, previous, a.Host.UpdatedAt); err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	return nil
}

func (c *Controller) pull(ctx context.Context, a *SyncAction) error {
	if a.Remote == nil {
		return nil
	}

	content, err := c.remote.GetFileContent(ctx, a.Remote.Path)
	if err != nil {
		return fmt.Errorf("remote: %w", err)
	}

	previous := a.Remote.UpdatedAt
	if a.Host != nil {
		previous = a.Host.UpdatedAt
	}

	if err := c.host.Update(ctx, a.Remote.Path, content, previous, a.Remote.UpdatedAt); err != nil {
		return fmt.Errorf("host: %w", err)
	}
	return nil
}
