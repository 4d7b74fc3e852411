package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// WriteFileAtomic writes data next to path and renames it into place, then sets
// the modification time to mtime.
func WriteFileAtomic(path string, data []byte, mtime time.Time) error {
	if err := EnsureParent(path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".paintress-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chtimes(tmpName, mtime, mtime); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// MoveFile renames src to dst, creating the parent of dst.
func MoveFile(src, dst string) error {
	if err := EnsureParent(dst); err != nil {
		return err
	}
	return os.Rename(src, dst)
}
