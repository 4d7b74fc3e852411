package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paintress/paintress-sync/internal/client/config"
	"github.com/paintress/paintress-sync/internal/syncmsg"
	"golang.org/x/sync/errgroup"
)

var ErrManualSync = errors.New("sync_type is manual, run `paintress sync` instead")

// Daemon keeps a folder in sync until its context is cancelled.
type Daemon struct {
	client   *Client
	interval time.Duration
	watcher  *Watcher
	remoteCh chan struct{}
}

func NewDaemon(cfg *config.Config) (*Daemon, error) {
	if !cfg.Enabled {
		return nil, config.ErrDisabled
	}
	if cfg.SyncType == config.SyncTypeManual {
		return nil, ErrManualSync
	}

	c, err := New(cfg)
	if err != nil {
		return nil, err
	}

	return &Daemon{
		client:   c,
		interval: cfg.SyncInterval,
		remoteCh: make(chan struct{}, 1),
	}, nil
}

func (d *Daemon) Start(ctx context.Context) error {
	slog.Info("client daemon start", "root", d.client.workspace.Root, "server", d.client.remote.ServerURL(), "interval", d.interval)

	if err := d.client.Lock(); err != nil {
		d.client.Close()
		return err
	}
	defer d.client.Close()

	d.watcher = NewWatcher(d.client.workspace.Root)
	d.watcher.FilterPaths(d.client.host.IsIgnored)
	if err := d.watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer d.watcher.Stop()

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		d.loop(egCtx, d.watcher.Triggers())
		return nil
	})

	eg.Go(func() error {
		if err := d.client.remote.Subscribe(egCtx, d.onRemoteChange); err != nil {
			return fmt.Errorf("events: %w", err)
		}
		return nil
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("client daemon failure", "error", err)
		return err
	}

	slog.Info("client daemon stopped")
	return nil
}

func (d *Daemon) onRemoteChange(msg *syncmsg.FilesChanged) {
	slog.Debug("remote change", "paths", len(msg.Paths), "origin", msg.Origin)
	select {
	case d.remoteCh <- struct{}{}:
	default:
	}
}

// loop runs passes one at a time: at start, after every interval and on
// change notifications.
func (d *Daemon) loop(ctx context.Context, watcherCh <-chan []string) {
	d.client.runSync(ctx, "startup")

	// a timer and not a ticker so slow passes never queue up ticks
	timer := time.NewTimer(d.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			d.client.runSync(ctx, "interval")
		case paths := <-watcherCh:
			slog.Debug("local change", "paths", len(paths))
			d.client.runSync(ctx, "local")
		case <-d.remoteCh:
			d.client.runSync(ctx, "remote")
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(d.interval)
	}
}
