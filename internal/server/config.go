package server

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/paintress/paintress-sync/internal/server/auth"
	"github.com/paintress/paintress-sync/internal/server/blob"
)

const (
	DefaultAddr      = "127.0.0.1:3000"
	DefaultRateLimit = "600-M"
	dbFileName       = "paintress.db"
)

type Config struct {
	HTTP    HTTPConfig  `mapstructure:"http"`
	Blob    blob.Config `mapstructure:"blob"`
	Auth    auth.Config `mapstructure:"auth"`
	DataDir string      `mapstructure:"data_dir"`
}

type HTTPConfig struct {
	Addr      string `mapstructure:"addr"`
	CertFile  string `mapstructure:"cert_file"`
	KeyFile   string `mapstructure:"key_file"`
	RateLimit string `mapstructure:"rate_limit"`
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultAddr
	}
	if (c.HTTP.CertFile == "") != (c.HTTP.KeyFile == "") {
		return errors.New("http `cert_file` and `key_file` must be set together")
	}
	if c.DataDir == "" {
		return errors.New("`data_dir` is required")
	}
	if c.Blob.Backend == blob.BackendLocal || c.Blob.Backend == "" {
		if c.Blob.LocalRoot == "" {
			c.Blob.LocalRoot = filepath.Join(c.DataDir, "blobs")
		}
	}
	if err := c.Blob.Validate(); err != nil {
		return fmt.Errorf("blob: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return nil
}

// TLS reports whether the server terminates TLS itself.
func (c *HTTPConfig) TLS() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, dbFileName)
}
