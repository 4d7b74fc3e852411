package blob

import (
	"fmt"

	"github.com/paintress/paintress-sync/internal/utils"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

type Config struct {
	Backend   string   `mapstructure:"backend"`
	LocalRoot string   `mapstructure:"local_root"`
	S3        S3Config `mapstructure:"s3"`
}

type S3Config struct {
	BucketName    string `mapstructure:"bucket_name"`
	Region        string `mapstructure:"region"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Endpoint      string `mapstructure:"endpoint"`
	UseAccelerate bool   `mapstructure:"use_accelerate"`
	// Presign makes downloads redirect to a presigned URL instead of streaming through the server.
	Presign bool `mapstructure:"presign"`
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal, "":
		if c.LocalRoot == "" {
			return fmt.Errorf("blob `local_root` required for the local backend")
		}
		return nil
	case BackendS3:
		return c.S3.Validate()
	}
	return fmt.Errorf("unknown blob backend %q", c.Backend)
}

func (c *S3Config) Validate() error {
	if c.BucketName == "" {
		return fmt.Errorf("bucket_name required")
	}
	if c.Region == "" {
		return fmt.Errorf("region required")
	}
	if c.AccessKey == "" {
		return fmt.Errorf("access_key required")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret_key required")
	}
	if c.Endpoint != "" && !utils.IsValidURL(c.Endpoint) {
		return fmt.Errorf("invalid endpoint URL %q", c.Endpoint)
	}
	return nil
}

// NewBackend builds the backend selected by the config.
func NewBackend(cfg *Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Backend == BackendS3 {
		return NewS3BackendWithConfig(&cfg.S3)
	}
	return NewLocalBackend(cfg.LocalRoot)
}
