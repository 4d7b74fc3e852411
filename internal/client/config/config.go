package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/paintress/paintress-sync/internal/conflict"
	"github.com/paintress/paintress-sync/internal/utils"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	SyncTypeAuto   = "auto"
	SyncTypeManual = "manual"

	DefaultSyncInterval = 30 * time.Second
	DefaultMaxFileSize  = "10MB"
	minSyncInterval     = time.Second
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".paintress", "config.yaml")
	DefaultLogFile    = filepath.Join(home, ".paintress", "logs", "paintress.log")
	DefaultServerURL  = "http://localhost:3000"

	ErrDisabled = errors.New("sync is disabled in the config")
)

type Config struct {
	Enabled       bool           `mapstructure:"enabled" yaml:"enabled"`
	Root          string         `mapstructure:"root" yaml:"root"`
	ServerURL     string         `mapstructure:"server_url" yaml:"server_url"`
	Token         string         `mapstructure:"token" yaml:"token"`
	DeviceID      string         `mapstructure:"device_id" yaml:"device_id,omitempty"`
	EncryptionKey string         `mapstructure:"encryption_key" yaml:"encryption_key,omitempty"`
	SyncType      string         `mapstructure:"sync_type" yaml:"sync_type"`
	SyncInterval  time.Duration  `mapstructure:"sync_interval" yaml:"-"`
	ExcludeGlobs  []string       `mapstructure:"exclude_globs" yaml:"exclude_globs,omitempty"`
	MaxFileSize   string         `mapstructure:"max_file_size" yaml:"max_file_size"`
	Trash         bool           `mapstructure:"trash" yaml:"trash"`
	Conflict      ConflictConfig `mapstructure:"conflict" yaml:"conflict"`
	Path          string         `mapstructure:"-" yaml:"-"`

	maxFileSize int64
	policy      *conflict.Policy
}

type ConflictConfig struct {
	AutoResolve bool            `mapstructure:"auto_resolve" yaml:"auto_resolve"`
	Fallback    string          `mapstructure:"fallback" yaml:"fallback"`
	Rules       []conflict.Rule `mapstructure:"rules" yaml:"rules,omitempty"`
}

// Default returns a config with every optional setting filled in.
func Default() *Config {
	return &Config{
		Enabled:      true,
		ServerURL:    DefaultServerURL,
		SyncType:     SyncTypeAuto,
		SyncInterval: DefaultSyncInterval,
		MaxFileSize:  DefaultMaxFileSize,
		Conflict: ConflictConfig{
			AutoResolve: true,
			Fallback:    string(conflict.StrategyLatest),
		},
		Path: DefaultConfigPath,
	}
}

// Validate normalizes paths and parses the derived settings.
func (c *Config) Validate() error {
	if c.Root == "" {
		return errors.New("`root` is required")
	}
	root, err := utils.ResolvePath(c.Root)
	if err != nil {
		return fmt.Errorf("root: %w", err)
	}
	c.Root = root

	if c.Path != "" {
		if c.Path, err = utils.ResolvePath(c.Path); err != nil {
			return fmt.Errorf("config path: %w", err)
		}
	}

	if c.ServerURL, err = utils.NormalizeURL(c.ServerURL); err != nil {
		return fmt.Errorf("server_url: %w", err)
	}

	switch c.SyncType {
	case "":
		c.SyncType = SyncTypeAuto
	case SyncTypeAuto, SyncTypeManual:
	default:
		return fmt.Errorf("sync_type must be %q or %q, got %q", SyncTypeAuto, SyncTypeManual, c.SyncType)
	}

	if c.SyncInterval == 0 {
		c.SyncInterval = DefaultSyncInterval
	} else if c.SyncInterval < minSyncInterval {
		return fmt.Errorf("sync_interval must be at least %s", minSyncInterval)
	}

	if c.MaxFileSize == "" {
		c.MaxFileSize = DefaultMaxFileSize
	}
	size, err := humanize.ParseBytes(c.MaxFileSize)
	if err != nil {
		return fmt.Errorf("max_file_size: %w", err)
	}
	c.maxFileSize = int64(size)

	c.policy, err = conflict.NewPolicy(c.Conflict.AutoResolve, c.Conflict.Fallback, c.Conflict.Rules)
	if err != nil {
		return fmt.Errorf("conflict: %w", err)
	}

	return nil
}

// MaxFileSizeBytes is valid after Validate.
func (c *Config) MaxFileSizeBytes() int64 {
	return c.maxFileSize
}

// Policy is valid after Validate.
func (c *Config) Policy() *conflict.Policy {
	if c.policy == nil {
		return conflict.DefaultPolicy()
	}
	return c.policy
}

// MarshalYAML writes the interval in its human form.
func (c *Config) MarshalYAML() (any, error) {
	type plain Config
	return struct {
		plain        `yaml:",inline"`
		SyncInterval string `yaml:"sync_interval"`
	}{plain(*c), c.SyncInterval.String()}, nil
}

// Load decodes the settings viper has collected on top of Default and validates
// the result. Comma separated exclude_globs and duration strings are accepted.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if used := v.ConfigFileUsed(); used != "" {
		cfg.Path = used
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the config as YAML to path.
func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}
