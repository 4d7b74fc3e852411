// Package crypto encrypts file content with a key derived from a password.
//
// Each payload is laid out as salt(16) | nonce(12) | AES-256-GCM ciphertext, so any
// client holding the password can decrypt it without extra metadata.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLen    = 16
	nonceLen   = 12
	keyLen     = 32
	iterations = 100_000
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// PasswordCipher is safe for concurrent use. With an empty password it passes
// content through unchanged.
type PasswordCipher struct {
	password []byte
}

func NewPasswordCipher(password string) *PasswordCipher {
	return &PasswordCipher{password: []byte(password)}
}

// Enabled reports whether a password is configured.
func (c *PasswordCipher) Enabled() bool {
	return len(c.password) > 0
}

func (c *PasswordCipher) deriveKey(salt []byte) []byte {
	return pbkdf2.Key(c.password, salt, iterations, keyLen, sha256.New)
}

func (c *PasswordCipher) gcm(salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.deriveKey(salt))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (c *PasswordCipher) Encrypt(plain []byte) ([]byte, error) {
	if !c.Enabled() {
		return plain, nil
	}

	out := make([]byte, saltLen+nonceLen, saltLen+nonceLen+len(plain)+16)
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}

	aead, err := c.gcm(out[:saltLen])
	if err != nil {
		return nil, err
	}

	return aead.Seal(out, out[saltLen:saltLen+nonceLen], plain, nil), nil
}

func (c *PasswordCipher) Decrypt(data []byte) ([]byte, error) {
	if !c.Enabled() {
		return data, nil
	}

	if len(data) < saltLen+nonceLen {
		return nil, ErrCiphertextTooShort
	}

	aead, err := c.gcm(data[:saltLen])
	if err != nil {
		return nil, err
	}

	plain, err := aead.Open(nil, data[saltLen:saltLen+nonceLen], data[saltLen+nonceLen:], nil)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return plain, nil
}
