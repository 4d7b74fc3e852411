// Package conflict merges files that were changed on both replicas since the
// last pass.
package conflict

import (
	"log/slog"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/paintress/paintress-sync/internal/syncer"
	"github.com/sergi/go-diff/diffmatchpatch"
)

var textExtensions = map[string]struct{}{
	"md":         {},
	"txt":        {},
	"json":       {},
	"yaml":       {},
	"yml":        {},
	"toml":       {},
	"ini":        {},
	"conf":       {},
	"cfg":        {},
	"config":     {},
	"properties": {},
	"env":        {},
}

// Extension returns the lower cased text after the last dot of the base name,
// or the whole base name when it has no dot.
func Extension(p string) string {
	base := path.Base(p)
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		base = base[i+1:]
	}
	return strings.ToLower(base)
}

// IsText reports whether p has one of the extensions the resolver can merge.
func IsText(p string) bool {
	_, ok := textExtensions[Extension(p)]
	return ok
}

// Resolver merges text files. The zero policy resolves every text conflict with
// StrategyLatest.
type Resolver struct {
	policy *Policy
	dmp    *diffmatchpatch.DiffMatchPatch
}

var _ syncer.ConflictResolver = (*Resolver)(nil)

func NewResolver(policy *Policy) *Resolver {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Resolver{
		policy: policy,
		dmp:    diffmatchpatch.New(),
	}
}

func (r *Resolver) CanResolve(host, remote *syncer.FileMetadata) bool {
	if host == nil || remote == nil {
		return false
	}
	if !IsText(host.Path) || !IsText(remote.Path) {
		return false
	}
	return r.policy.StrategyFor(host.Path) != StrategyIgnore
}

// Resolve returns the merged content. With StrategyLatest the older text is
// patched towards the newer one, so the result equals the newer content.
func (r *Resolver) Resolve(host, remote *syncer.FileMetadata, hostContent, remoteContent []byte) ([]byte, error) {
	if !r.CanResolve(host, remote) {
		return nil, syncer.ErrUnresolvable
	}

	older, newer := hostContent, remoteContent
	if host.UpdatedAt >= remote.UpdatedAt {
		older, newer = remoteContent, hostContent
	}

	switch r.policy.StrategyFor(host.Path) {
	case StrategyLatest:
		return r.patch(host.Path, older, newer), nil
	case StrategyOldest:
		return r.patch(host.Path, newer, older), nil
	case StrategyAlwaysPull:
		return remoteContent, nil
	case StrategyAlwaysPush:
		return hostContent, nil
	}
	return nil, syncer.ErrUnresolvable
}

// patch applies the diff from base to target onto base. Content that is not
// valid UTF-8 would not survive the rune based diff, so target is returned as is.
func (r *Resolver) patch(p string, base, target []byte) []byte {
	if !utf8.Valid(base) || !utf8.Valid(target) {
		return target
	}
	patches := r.dmp.PatchMake(string(base), string(target))
	merged, applied := r.dmp.PatchApply(patches, string(base))
	for i, ok := range applied {
		if !ok {
			slog.Warn("conflict patch failed, keeping target", "path", p, "patch", i)
			return target
		}
	}
	return []byte(merged)
}
