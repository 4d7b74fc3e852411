package conflict

import (
	"testing"

	"github.com/paintress/paintress-sync/internal/syncer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meta(path string, updatedAt int64) *syncer.FileMetadata {
	return &syncer.FileMetadata{Path: path, CreatedAt: 1, UpdatedAt: updatedAt}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"notes/a.md":       "md",
		"a.tar.GZ":         "gz",
		"dir.d/Makefile":   "makefile",
		".env":             "env",
		"conf/app.CONFIG":  "config",
		"deep/x/y/z.yaml":  "yaml",
		"no/extension/env": "env",
	}
	for in, want := range tests {
		assert.Equal(t, want, Extension(in), in)
	}
}

func TestCanResolve(t *testing.T) {
	r := NewResolver(nil)

	tests := []struct {
		path string
		want bool
	}{
		{"a.md", true},
		{"a.txt", true},
		{"settings.json", true},
		{"a.yml", true},
		{"a.properties", true},
		{"README.MD", true},
		{"image.png", false},
		{"archive.zip", false},
		{"binary", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, r.CanResolve(meta(tt.path, 1), meta(tt.path, 2)))
		})
	}
}

func TestResolveLatestWins(t *testing.T) {
	r := NewResolver(nil)

	host := []byte("line one\nline two\nline three\n")
	remote := []byte("line one\nline 2\nline three\nline four\n")

	merged, err := r.Resolve(meta("a.md", 10), meta("a.md", 20), host, remote)
	require.NoError(t, err)
	assert.Equal(t, string(remote), string(merged))

	merged, err = r.Resolve(meta("a.md", 30), meta("a.md", 20), host, remote)
	require.NoError(t, err)
	assert.Equal(t, string(host), string(merged))
}

func TestResolveOldest(t *testing.T) {
	policy, err := NewPolicy(true, "oldest", nil)
	require.NoError(t, err)
	r := NewResolver(policy)

	merged, err := r.Resolve(meta("a.txt", 10), meta("a.txt", 20), []byte("old"), []byte("new"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(merged))
}

func TestResolveKeepsNonUTF8Bytes(t *testing.T) {
	r := NewResolver(nil)

	older := []byte("old\n")
	newer := []byte("caf\xe9 latin1\n")

	merged, err := r.Resolve(meta("a.txt", 10), meta("a.txt", 20), older, newer)
	require.NoError(t, err)
	assert.Equal(t, newer, merged)

	merged, err = r.Resolve(meta("a.txt", 30), meta("a.txt", 20), newer, older)
	require.NoError(t, err)
	assert.Equal(t, newer, merged)
}

func TestResolveRules(t *testing.T) {
	policy, err := NewPolicy(true, "latest", []Rule{
		{Glob: "private/**", Strategy: StrategyIgnore},
		{Glob: "**/*.json", Strategy: StrategyAlwaysPush},
		{Glob: "shared/*.md", Strategy: StrategyAlwaysPull},
	})
	require.NoError(t, err)
	r := NewResolver(policy)

	assert.False(t, r.CanResolve(meta("private/diary.md", 1), meta("private/diary.md", 2)))

	merged, err := r.Resolve(meta("cfg/app.json", 10), meta("cfg/app.json", 20), []byte("host"), []byte("remote"))
	require.NoError(t, err)
	assert.Equal(t, "host", string(merged))

	merged, err = r.Resolve(meta("shared/a.md", 30), meta("shared/a.md", 20), []byte("host"), []byte("remote"))
	require.NoError(t, err)
	assert.Equal(t, "remote", string(merged))

	_, err = r.Resolve(meta("private/diary.md", 1), meta("private/diary.md", 2), nil, nil)
	assert.ErrorIs(t, err, syncer.ErrUnresolvable)
}

func TestAutoResolveOff(t *testing.T) {
	policy, err := NewPolicy(false, "latest", nil)
	require.NoError(t, err)
	r := NewResolver(policy)
	assert.False(t, r.CanResolve(meta("a.md", 1), meta("a.md", 2)))
}

func TestNewPolicyValidation(t *testing.T) {
	_, err := NewPolicy(true, "newest", nil)
	assert.Error(t, err)

	_, err = NewPolicy(true, "latest", []Rule{{Glob: "[", Strategy: StrategyLatest}})
	assert.Error(t, err)

	_, err = NewPolicy(true, "latest", []Rule{{Glob: "*.md", Strategy: "sometimes"}})
	assert.Error(t, err)

	p, err := NewPolicy(true, "", []Rule{{Glob: "*.md"}})
	require.NoError(t, err)
	assert.Equal(t, StrategyLatest, p.Fallback)
	assert.Equal(t, StrategyLatest, p.Rules[0].Strategy)
}

func TestResolveBinaryIsUnresolvable(t *testing.T) {
	r := NewResolver(nil)
	_, err := r.Resolve(meta("a.png", 1), meta("a.png", 2), []byte{0}, []byte{1})
	assert.ErrorIs(t, err, syncer.ErrUnresolvable)
}
