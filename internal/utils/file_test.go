package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "note.md")
	mtime := time.UnixMilli(1_700_000_000_123)

	require.NoError(t, WriteFileAtomic(path, []byte("hello"), mtime))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, mtime.UnixMilli(), info.ModTime().UnixMilli())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "trash", "1", "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	require.NoError(t, MoveFile(src, dst))
	assert.FileExists(t, dst)
	assert.NoFileExists(t, src)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	assert.Equal(t, "********", MaskSecret("tok"))
	assert.Equal(t, "********", MaskSecret("12345678"))
	assert.Equal(t, "eyJh********", MaskSecret("eyJhbGciOiJIUzI1NiJ9.payload.sig"))
}
