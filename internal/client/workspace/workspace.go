package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/paintress/paintress-sync/internal/replica/localfs"
	"github.com/paintress/paintress-sync/internal/utils"
)

const (
	lockFile  = "paintress.lock"
	stateFile = "state.db"
	logsDir   = "logs"
)

var (
	ErrWorkspaceLocked = errors.New("workspace locked by another process")
	ErrNotADirectory   = errors.New("workspace root is not a directory")
)

// Workspace is a synced folder and the state directory inside it.
type Workspace struct {
	Root      string
	StateDir  string
	StatePath string
	LogsDir   string

	flock *flock.Flock
}

func NewWorkspace(rootDir string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", rootDir, err)
	}

	stateDir := filepath.Join(root, localfs.StateDir)

	return &Workspace{
		Root:      root,
		StateDir:  stateDir,
		StatePath: filepath.Join(stateDir, stateFile),
		LogsDir:   filepath.Join(stateDir, logsDir),
		flock:     flock.New(filepath.Join(stateDir, lockFile)),
	}, nil
}

// Lock takes an exclusive lock so two daemons never sync the same folder.
func (w *Workspace) Lock() error {
	if err := utils.EnsureDir(w.StateDir); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", w.StateDir, err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock workspace: %w", err)
	}
	if !locked {
		return ErrWorkspaceLocked
	}

	return nil
}

func (w *Workspace) Unlock() error {
	// only the holder removes the lock file
	if !w.flock.Locked() {
		return nil
	}

	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock workspace: %w", err)
	}

	return os.Remove(w.flock.Path())
}

// Setup creates the root and state directories and locks the workspace.
func (w *Workspace) Setup() error {
	if info, err := os.Stat(w.Root); err == nil && !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, w.Root)
	}

	for _, dir := range []string{w.Root, w.StateDir, w.LogsDir} {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := w.Lock(); err != nil {
		return err
	}

	slog.Info("workspace", "root", w.Root)
	return nil
}
