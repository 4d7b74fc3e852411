package syncer

// Plan holds at most one action per path, in the order each path was first
// classified. Reassigning a path replaces its action but keeps its position.
type Plan struct {
	order   []string
	actions map[string]*SyncAction
}

func newPlan() *Plan {
	return &Plan{actions: make(map[string]*SyncAction)}
}

func (p *Plan) set(path string, kind ActionKind, host, remote *FileMetadata) {
	if _, ok := p.actions[path]; !ok {
		p.order = append(p.order, path)
	}
	p.actions[path] = &SyncAction{Kind: kind, Host: host, Remote: remote}
}

// Actions returns the actions in execution order.
func (p *Plan) Actions() []*SyncAction {
	out := make([]*SyncAction, 0, len(p.order))
	for _, path := range p.order {
		out = append(out, p.actions[path])
	}
	return out
}

// Get returns the action for path, if any.
func (p *Plan) Get(path string) (*SyncAction, bool) {
	a, ok := p.actions[path]
	return a, ok
}

func (p *Plan) Len() int {
	return len(p.order)
}

// Counts returns the number of actions per kind.
func (p *Plan) Counts() map[ActionKind]int {
	counts := make(map[ActionKind]int)
	for _, a := range p.actions {
		counts[a.Kind]++
	}
	return counts
}

func index(files []FileMetadata) map[string]*FileMetadata {
	m := make(map[string]*FileMetadata, len(files))
	for i := range files {
		m[files[i].Path] = &files[i]
	}
	return m
}

// Classify turns two snapshots and the last checkpoint into a plan. It is a pure
// function of its inputs.
//
// Rules run in a fixed order and a later rule overrides an earlier one for the
// same path: remote tombstones, host tombstones, host modifications, remote
// modifications.
func Classify(hostFiles, remoteFiles []FileMetadata, lastSyncedAt int64) *Plan {
	hosts := index(hostFiles)
	remotes := index(remoteFiles)
	plan := newPlan()

	// remote deletions
	for i := range remoteFiles {
		remote := &remoteFiles[i]
		if !remote.Deleted {
			continue
		}
		host, ok := hosts[remote.Path]
		switch {
		case !ok:
			// never prune the remote tombstone, other hosts may not have seen it yet
		case host.Deleted:
			plan.set(remote.Path, ActionPrune, host, remote)
		case host.CreatedAt < remote.DeletedAt:
			plan.set(remote.Path, ActionRemove, host, remote)
		default:
			plan.set(remote.Path, ActionPush, host, remote)
		}
	}

	// host deletions
	for i := range hostFiles {
		host := &hostFiles[i]
		if !host.Deleted {
			continue
		}
		remote, ok := remotes[host.Path]
		switch {
		case !ok:
			// the remote never learned about this path
			plan.set(host.Path, ActionPrune, host, nil)
		case remote.Deleted:
			// already handled as a prune above
		case remote.CreatedAt < host.DeletedAt:
			plan.set(host.Path, ActionRemove, host, remote)
		default:
			plan.set(host.Path, ActionPull, host, remote)
		}
	}

	// host modifications
	for i := range hostFiles {
		host := &hostFiles[i]
		if host.Deleted || host.UpdatedAt <= lastSyncedAt {
			continue
		}
		remote, ok := remotes[host.Path]
		switch {
		case !ok || remote.UpdatedAt < lastSyncedAt:
			plan.set(host.Path, ActionPush, host, remote)
		case remote.UpdatedAt > lastSyncedAt:
			plan.set(host.Path, ActionConflict, host, remote)
		}
	}

	// remote modifications
	for i := range remoteFiles {
		remote := &remoteFiles[i]
		if remote.Deleted || remote.UpdatedAt <= lastSyncedAt {
			continue
		}
		host, ok := hosts[remote.Path]
		switch {
		case !ok || host.UpdatedAt < lastSyncedAt:
			plan.set(remote.Path, ActionPull, host, remote)
		case host.UpdatedAt > lastSyncedAt:
			plan.set(remote.Path, ActionConflict, host, remote)
		}
	}

	return plan
}

// reopen classifies open paths left unresolved by earlier passes as conflicts
// again, unless the plan already covers them. A path is dropped once either side
// is missing or deleted, or both sides carry the same version.
func (p *Plan) reopen(open []string, hostFiles, remoteFiles []FileMetadata) {
	if len(open) == 0 {
		return
	}
	hosts := index(hostFiles)
	remotes := index(remoteFiles)

	for _, path := range open {
		if _, ok := p.actions[path]; ok {
			continue
		}
		host, remote := hosts[path], remotes[path]
		if host == nil || remote == nil || host.Deleted || remote.Deleted {
			continue
		}
		if host.UpdatedAt == remote.UpdatedAt {
			continue
		}
		p.set(path, ActionConflict, host, remote)
	}
}
