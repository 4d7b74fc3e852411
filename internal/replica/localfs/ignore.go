package localfs

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"
)

const (
	// StateDir holds the replica bookkeeping and is never synced.
	StateDir   = ".paintress"
	IgnoreFile = ".paintressignore"
)

var defaultIgnoreLines = []string{
	StateDir + "/",
	".paintress-*.tmp",
	".git/",
	".obsidian/workspace*.json",
	".trash/",
	".DS_Store",
	"Thumbs.db",
	"*.swp",
	"*.swo",
	"*~",
}

// IgnoreList decides which paths are invisible to the replica. It combines the
// built-in list, the root .paintressignore file and the configured exclude globs.
type IgnoreList struct {
	ignore   *gitignore.GitIgnore
	excludes []string
}

// NewIgnoreList compiles the ignore rules for root. Exclude globs use doublestar
// syntax; an invalid glob is an error.
func NewIgnoreList(root string, excludes []string) (*IgnoreList, error) {
	lines := defaultIgnoreLines

	ignoreFile := filepath.Join(root, IgnoreFile)
	ignore, err := gitignore.CompileIgnoreFileAndLines(ignoreFile, lines...)
	if errors.Is(err, fs.ErrNotExist) {
		ignore = gitignore.CompileIgnoreLines(lines...)
	} else if err != nil {
		return nil, fmt.Errorf("read %s: %w", IgnoreFile, err)
	} else {
		slog.Debug("ignore file loaded", "path", ignoreFile)
	}

	clean := make([]string, 0, len(excludes))
	for _, pattern := range excludes {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude glob %q", pattern)
		}
		clean = append(clean, pattern)
	}

	return &IgnoreList{ignore: ignore, excludes: clean}, nil
}

// ShouldIgnore reports whether the slash separated relative path is ignored.
func (l *IgnoreList) ShouldIgnore(path string) bool {
	if path == StateDir || strings.HasPrefix(path, StateDir+"/") {
		return true
	}
	if l.ignore.MatchesPath(path) {
		return true
	}
	for _, pattern := range l.excludes {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

// SplitGlobs splits a comma separated exclude setting.
func SplitGlobs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
