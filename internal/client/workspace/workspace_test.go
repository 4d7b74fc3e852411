package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceSetup_CreatesLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vault")

	w, err := NewWorkspace(root)
	require.NoError(t, err)

	require.NoError(t, w.Setup())
	t.Cleanup(func() { _ = w.Unlock() })

	assert.DirExists(t, w.Root)
	assert.DirExists(t, w.StateDir)
	assert.DirExists(t, w.LogsDir)
	assert.Equal(t, filepath.Join(root, ".paintress", "state.db"), w.StatePath)
}

func TestWorkspaceSetup_RejectsFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vault")
	require.NoError(t, os.WriteFile(root, []byte("x"), 0o644))

	w, err := NewWorkspace(root)
	require.NoError(t, err)
	require.ErrorIs(t, w.Setup(), ErrNotADirectory)
}

func TestWorkspaceLocking_SingleInstance(t *testing.T) {
	root := t.TempDir()

	w1, err := NewWorkspace(root)
	require.NoError(t, err)
	w2, err := NewWorkspace(root)
	require.NoError(t, err)

	require.NoError(t, w1.Lock())

	err = w2.Lock()
	require.ErrorIs(t, err, ErrWorkspaceLocked)

	lockPath := filepath.Join(root, ".paintress", "paintress.lock")
	assert.FileExists(t, lockPath)

	require.NoError(t, w1.Unlock())
	_, statErr := os.Stat(lockPath)
	require.ErrorIs(t, statErr, os.ErrNotExist)

	require.NoError(t, w2.Lock())
	t.Cleanup(func() { _ = w2.Unlock() })
}

func TestUnlockWithoutLock(t *testing.T) {
	w, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, w.Unlock())
}
