package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/paintress/paintress-sync/internal/client"
	"github.com/paintress/paintress-sync/internal/client/config"
	"github.com/paintress/paintress-sync/internal/replica/localfs"
	"github.com/paintress/paintress-sync/internal/syncer"
	"github.com/stretchr/testify/assert"
)

func TestPrintStatus(t *testing.T) {
	cfg := config.Default()
	cfg.Root = "/vault"

	st := &client.Status{
		ServerURL:     "http://localhost:3000",
		Workspace:     "notes",
		ServerVersion: "0.1.0",
		Pending: []*syncer.SyncAction{
			{Kind: syncer.ActionPush, Host: &syncer.FileMetadata{Path: "a.md"}},
			{Kind: syncer.ActionPull, Remote: &syncer.FileMetadata{Path: "b.md"}},
		},
		Conflicts: []localfs.Conflict{{Path: "c.md", DetectedAt: 1700000000000}},
	}

	var out bytes.Buffer
	printStatus(&out, cfg, st)

	got := out.String()
	assert.Contains(t, got, "/vault")
	assert.Contains(t, got, "connected")
	assert.Contains(t, got, "never")
	assert.Contains(t, got, "a.md")
	assert.Contains(t, got, "b.md")
	assert.Contains(t, got, "c.md")
}

func TestPrintStatus_Offline(t *testing.T) {
	cfg := config.Default()
	cfg.Root = "/vault"

	st := &client.Status{
		ServerURL: "http://localhost:3000",
		PingError: errors.New("connection refused"),
	}

	var out bytes.Buffer
	printStatus(&out, cfg, st)

	got := out.String()
	assert.Contains(t, got, "unreachable")
	assert.Contains(t, got, "connection refused")
	assert.NotContains(t, got, "Pending")
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, &syncer.Report{
		Applied:             map[syncer.ActionKind]int{syncer.ActionPush: 2},
		UnresolvedConflicts: []string{"draft.md"},
		Failed:              map[string]error{"gone.md": syncer.ErrNotFound},
	})

	got := out.String()
	assert.Contains(t, got, "push 2")
	assert.Contains(t, got, "draft.md")
	assert.Contains(t, got, "gone.md")

	out.Reset()
	printReport(&out, &syncer.Report{})
	assert.Contains(t, out.String(), "Already in sync")
}
