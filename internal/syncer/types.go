package syncer

import "fmt"

// FileMetadata describes one path known to a replica, live or tombstoned.
// Timestamps are milliseconds since the epoch.
type FileMetadata struct {
	Path      string `json:"path" db:"path"`
	Size      int64  `json:"size" db:"size"`
	CreatedAt int64  `json:"createdAt" db:"created_at"`
	UpdatedAt int64  `json:"updatedAt" db:"updated_at"`
	DeletedAt int64  `json:"deletedAt" db:"deleted_at"`
	Deleted   bool   `json:"deleted" db:"deleted"`
}

func (f *FileMetadata) String() string {
	if f == nil {
		return "<nil>"
	}
	if f.Deleted {
		return fmt.Sprintf("%s(deleted@%d)", f.Path, f.DeletedAt)
	}
	return fmt.Sprintf("%s(c=%d u=%d)", f.Path, f.CreatedAt, f.UpdatedAt)
}

type ActionKind uint8

const (
	ActionPrune ActionKind = iota
	ActionRemove
	ActionConflict
	ActionPush
	ActionPull
)

var actionKindNames = []string{
	"prune",
	"remove",
	"conflict",
	"push",
	"pull",
}

func (k ActionKind) String() string {
	if int(k) < len(actionKindNames) {
		return actionKindNames[k]
	}
	return fmt.Sprintf("ActionKind(%d)", k)
}

// SyncAction is the single decision made for a path during one pass.
type SyncAction struct {
	Kind   ActionKind
	Host   *FileMetadata
	Remote *FileMetadata
}

// Path returns the path the action applies to.
func (a *SyncAction) Path() string {
	if a.Host != nil {
		return a.Host.Path
	}
	if a.Remote != nil {
		return a.Remote.Path
	}
	return ""
}
