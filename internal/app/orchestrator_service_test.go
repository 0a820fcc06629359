package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/example/reeve/internal/config"
	"github.com/example/reeve/internal/core/event"
	"github.com/example/reeve/internal/core/orchestrate"
	"github.com/example/reeve/internal/ports/secondary"
)

type orchestratorFixture struct {
	svc       *OrchestratorServiceImpl
	lock      *mockLockManager
	evidence  *mockEvidenceSource
	ledger    *mockLedger
	decisions *mockDecisionRepository
	state     *mockStateStore
	intake    *mockIntakeQueue
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	f := &orchestratorFixture{
		lock:      &mockLockManager{},
		evidence:  &mockEvidenceSource{},
		ledger:    newMockLedger(),
		decisions: newMockDecisionRepository(),
		state:     &mockStateStore{},
		intake:    newMockIntakeQueue(),
	}
	f.svc = NewOrchestratorService(
		[]string{"repo-a"},
		config.DefaultPolicy(),
		f.lock,
		f.evidence,
		f.ledger,
		f.decisions,
		f.state,
		f.intake,
	)
	return f
}

func mergeEvent(t *testing.T, repoID, path string, ts time.Time, obligations map[string]bool) event.ChangeEvent {
	t.Helper()
	e, err := event.New(event.Params{
		Type:        event.TypeMerge,
		Scope:       "repo:" + repoID,
		RepoID:      repoID,
		WorkID:      "WO-001",
		PRNumber:    7,
		Commit:      strings.Repeat("d", 40),
		Paths:       []string{path},
		Obligations: obligations,
		Summary:     "merged",
		Timestamp:   ts,
	})
	if err != nil {
		t.Fatalf("event.New failed: %v", err)
	}
	return e
}

func TestRunCycleSkipsWhenLockHeld(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.lock.held = &secondary.LockRecord{
		OwnerToken: "other-token",
		Owner:      secondary.LockOwner{PID: 999},
		AcquiredAt: time.Now().UTC(),
		TTLMS:      60_000,
	}

	res, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if !res.Skipped {
		t.Fatal("expected a skipped run")
	}
	if res.HeldBy == nil || res.HeldBy.Owner.PID != 999 {
		t.Errorf("expected the holder record, got %+v", res.HeldBy)
	}
	if len(f.state.saved) != 0 {
		t.Error("a skipped run must not write a checkpoint")
	}
}

func TestRunCycleWritesCheckpointAndReleases(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.evidence.snapshot = orchestrate.Snapshot{
		Repos: []orchestrate.RepoEvidence{{RepoID: "repo-a"}},
	}

	res, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if res.Skipped {
		t.Fatal("expected the run to proceed")
	}
	if res.State == nil || res.State.Stage != orchestrate.StageNeedsIndex {
		t.Errorf("unexpected state: %+v", res.State)
	}
	if len(f.state.saved) != 1 {
		t.Fatalf("expected 1 checkpoint write, got %d", len(f.state.saved))
	}
	if len(f.lock.releases) != 1 || f.lock.releases[0] != "test-token" {
		t.Errorf("lock was not released with the held token: %v", f.lock.releases)
	}
}

func TestRunCycleMergesLedgerRecencyIntoSnapshot(t *testing.T) {
	f := newOrchestratorFixture(t)
	scanAt := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	f.evidence.snapshot = orchestrate.Snapshot{
		Repos: []orchestrate.RepoEvidence{{
			RepoID:        "repo-a",
			HasIndex:      true,
			HasScan:       true,
			ScanUpdatedAt: scanAt,
		}},
		KickoffSufficient: true,
		FactsSatisfied:    true,
	}
	f.ledger.events = append(f.ledger.events,
		mergeEvent(t, "repo-a", "a.go", scanAt.Add(time.Hour), nil))

	res, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if !res.State.Stale {
		t.Error("a change newer than the scan must raise the stale signal")
	}
	if !res.State.EvidenceState.LatestEventAt.Equal(scanAt.Add(time.Hour)) {
		t.Errorf("latest_event_at: got %s", res.State.EvidenceState.LatestEventAt)
	}
}

func TestRunCycleSurfacesOldestOpenDecision(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.evidence.snapshot = orchestrate.Snapshot{
		Repos: []orchestrate.RepoEvidence{{RepoID: "repo-a", HasIndex: true, HasScan: true}},
	}

	svc := NewDecisionService(f.decisions, f.ledger)
	if _, err := svc.CreateDecision(context.Background(), createRequest("repo:repo-a")); err != nil {
		t.Fatalf("create decision failed: %v", err)
	}

	res, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if res.State.Stage != orchestrate.StageDecisionNeeded {
		t.Errorf("open decision must preempt, got %s", res.State.Stage)
	}
	if res.State.NextAction.DecisionID == "" {
		t.Error("expected the decision id in the next action")
	}
}

func TestRunCycleEnqueuesIntakeExactlyOnce(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.evidence.snapshot = orchestrate.Snapshot{}
	t0 := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	f.ledger.events = append(f.ledger.events,
		mergeEvent(t, "repo-a", "a.go", t0, map[string]bool{"must_add_e2e": true}),
		mergeEvent(t, "repo-a", "b.go", t0.Add(time.Minute), map[string]bool{"qa_review": false}),
	)

	res, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if res.IntakeErr != nil {
		t.Fatalf("intake failed: %v", res.IntakeErr)
	}
	if res.IntakeCreated != 1 {
		t.Fatalf("expected 1 intake item (unmet obligations only), got %d", res.IntakeCreated)
	}

	// A second run over the same ledger creates nothing new.
	res2, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}
	if res2.IntakeCreated != 0 {
		t.Errorf("reprocessing must not create items, got %d", res2.IntakeCreated)
	}
	if len(f.intake.items) != 1 {
		t.Errorf("expected a single queued item, got %d", len(f.intake.items))
	}

	cp := f.ledger.checkpoints[intakeConsumer]
	if cp.LastProcessedEventID == "" {
		t.Error("consumer checkpoint did not advance")
	}
}

func TestRunCycleIntakeCarriesObligations(t *testing.T) {
	f := newOrchestratorFixture(t)
	t0 := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	f.ledger.events = append(f.ledger.events,
		mergeEvent(t, "repo-a", "a.go", t0, map[string]bool{"must_add_e2e": true, "qa_review": true}))

	if _, err := f.svc.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	var item secondary.IntakeItem
	for _, it := range f.intake.items {
		item = it
	}
	if item.ID != "INTAKE-"+f.ledger.events[0].ID {
		t.Errorf("item id must embed the event id, got %s", item.ID)
	}
	if len(item.Obligations) != 2 || item.Obligations[0] != "must_add_e2e" {
		t.Errorf("unexpected obligations: %v", item.Obligations)
	}
	if item.WorkID != "WO-001" || item.PRNumber != 7 {
		t.Errorf("item lost event fields: %+v", item)
	}
}

func TestRunCycleIntakeFailureDoesNotAbortDecision(t *testing.T) {
	f := newOrchestratorFixture(t)
	t0 := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	f.ledger.events = append(f.ledger.events,
		mergeEvent(t, "repo-a", "a.go", t0, map[string]bool{"qa_review": true}))
	f.intake.enqueueErr = context.DeadlineExceeded

	res, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if res.IntakeErr == nil {
		t.Error("expected the intake failure to be reported")
	}
	if res.State == nil {
		t.Error("the decision checkpoint must survive an intake failure")
	}
}

func TestStatusDoesNotTakeLock(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.lock.held = &secondary.LockRecord{OwnerToken: "other"}

	if _, err := f.svc.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	state, err := f.svc.Status(context.Background())
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if state != nil {
		t.Errorf("no checkpoint expected after a skipped run, got %+v", state)
	}
}
