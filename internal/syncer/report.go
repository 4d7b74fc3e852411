package syncer

import "time"

// Report summarizes one pass.
type Report struct {
	StartedAt    int64
	LastSyncedAt int64
	Took         time.Duration
	Planned      map[ActionKind]int
	Applied      map[ActionKind]int

	// UnresolvedConflicts lists paths changed on both sides that could not be merged.
	// They are not errors; the pass still advances the checkpoint and the
	// ConflictStore, when set, carries them into the next pass.
	UnresolvedConflicts []string

	// Failed maps paths to errors for actions that failed without aborting the pass.
	Failed map[string]error

	// Committed is true when the checkpoint was advanced.
	Committed bool
}

func newReport(startedAt, lastSyncedAt int64) *Report {
	return &Report{
		StartedAt:    startedAt,
		LastSyncedAt: lastSyncedAt,
		Planned:      make(map[ActionKind]int),
		Applied:      make(map[ActionKind]int),
		Failed:       make(map[string]error),
	}
}

// Changed reports whether the pass did anything worth logging.
func (r *Report) Changed() bool {
	return len(r.Applied) > 0 || len(r.UnresolvedConflicts) > 0 || len(r.Failed) > 0
}
