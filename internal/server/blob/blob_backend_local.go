package blob

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/paintress/paintress-sync/internal/utils"
)

// LocalBackend keeps objects as plain files under a root directory.
type LocalBackend struct {
	root string
}

func NewLocalBackend(root string) (*LocalBackend, error) {
	root, err := utils.ResolvePath(root)
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureDir(root); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &LocalBackend{root: root}, nil
}

func (l *LocalBackend) path(key string) (string, error) {
	if !ValidateKey(key) {
		return "", ErrInvalidKey
	}
	return filepath.Join(l.root, filepath.FromSlash(key)), nil
}

func (l *LocalBackend) PutObject(_ context.Context, params *PutObjectParams) (*PutObjectResponse, error) {
	path, err := l.path(params.Key)
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureParent(path); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	hash := md5.New()
	n, err := io.Copy(io.MultiWriter(tmp, hash), params.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("write object: %w", err)
	}
	if params.Size >= 0 && n != params.Size {
		return nil, fmt.Errorf("write object: got %d bytes, expected %d", n, params.Size)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, err
	}

	return &PutObjectResponse{
		Key:  params.Key,
		Size: n,
		ETag: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

func (l *LocalBackend) GetObject(_ context.Context, key string) (*GetObjectResponse, error) {
	path, err := l.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	} else if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	return &GetObjectResponse{Body: f, Size: info.Size()}, nil
}

func (l *LocalBackend) GetObjectPresigned(context.Context, string) (string, error) {
	return "", ErrPresignUnsupported
}

func (l *LocalBackend) DeleteObject(_ context.Context, key string) error {
	path, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

var _ Backend = (*LocalBackend)(nil)
