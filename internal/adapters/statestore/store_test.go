package statestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/reeve/internal/config"
	"github.com/example/reeve/internal/core/orchestrate"
	"github.com/example/reeve/internal/ports/secondary"
)

func TestLoadBeforeFirstRun(t *testing.T) {
	store, err := NewStore(config.NewProjectContext(t.TempDir()))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	state, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if state != nil {
		t.Errorf("expected nil before the first save, got %+v", state)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	project := config.NewProjectContext(t.TempDir())
	store, err := NewStore(project)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	ctx := context.Background()

	state := secondary.OrchestratorState{
		Stage: orchestrate.StageNeedsScan,
		NextAction: orchestrate.Action{
			Type:        orchestrate.ActionScan,
			TargetRepos: []string{"repo-a"},
		},
		EvidenceState: orchestrate.Snapshot{
			Repos: []orchestrate.RepoEvidence{
				{RepoID: "repo-a", HasIndex: true},
			},
			KickoffSufficient: true,
		},
		Stale:     true,
		UpdatedAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
	}

	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a state after save")
	}
	if loaded.Stage != orchestrate.StageNeedsScan || !loaded.Stale {
		t.Errorf("unexpected state: %+v", loaded)
	}
	if len(loaded.NextAction.TargetRepos) != 1 || loaded.NextAction.TargetRepos[0] != "repo-a" {
		t.Errorf("unexpected action: %+v", loaded.NextAction)
	}

	md, err := os.ReadFile(filepath.Join(project.OrchestratorDir(), mdFile))
	if err != nil {
		t.Fatalf("STATE.md missing: %v", err)
	}
	for _, want := range []string{"NEEDS_SCAN", "repo-a", "Stale:** true"} {
		if !strings.Contains(string(md), want) {
			t.Errorf("STATE.md missing %q", want)
		}
	}
}

func TestSaveReplacesCheckpointAtomically(t *testing.T) {
	project := config.NewProjectContext(t.TempDir())
	store, err := NewStore(project)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	ctx := context.Background()

	for _, stage := range []orchestrate.Stage{orchestrate.StageNeedsIndex, orchestrate.StageReady} {
		if err := store.Save(ctx, secondary.OrchestratorState{Stage: stage}); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	loaded, _ := store.Load(ctx)
	if loaded.Stage != orchestrate.StageReady {
		t.Errorf("expected the newest checkpoint, got %s", loaded.Stage)
	}

	entries, _ := os.ReadDir(project.OrchestratorDir())
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}
