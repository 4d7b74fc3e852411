package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func runConfigInit(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "paintress"}
	addGlobalFlags(root)
	root.AddCommand(newConfigCmd())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"config", "init"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestConfigInit_WritesYAML(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")

	out, err := runConfigInit(t,
		"--config", path,
		"--root", filepath.Join(tmp, "vault"),
		"--server", "https://sync.example.com/",
		"--token", "secret-token-value",
		"--exclude", "*.tmp",
		"--exclude", "private/**",
	)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.Contains(t, out, "secr********")
	assert.NotContains(t, out, "secret-token-value")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &got))
	assert.Equal(t, "https://sync.example.com", got["server_url"])
	assert.Equal(t, "secret-token-value", got["token"])
	assert.Equal(t, "auto", got["sync_type"])
	assert.Equal(t, "30s", got["sync_interval"])
	assert.Equal(t, []any{"*.tmp", "private/**"}, got["exclude_globs"])
	assert.NotContains(t, got, "encryption_key")
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("root: /elsewhere\n"), 0o600))

	_, err := runConfigInit(t, "--config", path, "--root", tmp)
	require.ErrorIs(t, err, errConfigExists)

	_, err = runConfigInit(t, "--config", path, "--root", tmp, "--force")
	require.NoError(t, err)
}

func TestConfigInit_RequiresRoot(t *testing.T) {
	_, err := runConfigInit(t, "--config", filepath.Join(t.TempDir(), "config.yaml"))
	require.Error(t, err)
}
