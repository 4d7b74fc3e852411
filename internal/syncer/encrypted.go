package syncer

import (
	"context"
	"fmt"
)

// encryptedFS applies a Cipher around every content transfer of a replica.
type encryptedFS struct {
	FileSystem
	cipher Cipher
}

// Encrypted wraps fs so that content is encrypted before it is written and
// decrypted after it is read. Metadata passes through untouched.
func Encrypted(fs FileSystem, cipher Cipher) FileSystem {
	if cipher == nil {
		return fs
	}
	return &encryptedFS{FileSystem: fs, cipher: cipher}
}

func (e *encryptedFS) GetFileContent(ctx context.Context, path string) ([]byte, error) {
	data, err := e.FileSystem.GetFileContent(ctx, path)
	if err != nil {
		return nil, err
	}
	plain, err := e.cipher.Decrypt(data)
	if err != nil {
		return nil, fmt.Errorf("decrypt %s: %w", path, err)
	}
	return plain, nil
}

func (e *encryptedFS) Update(ctx context.Context, path string, content []byte, previousUpdatedAt, newUpdatedAt int64) error {
	data, err := e.cipher.Encrypt(content)
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", path, err)
	}
	return e.FileSystem.Update(ctx, path, data, previousUpdatedAt, newUpdatedAt)
}
