package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/example/reeve/internal/config"
	"github.com/example/reeve/internal/core/decision"
	"github.com/example/reeve/internal/core/event"
	"github.com/example/reeve/internal/core/orchestrate"
	"github.com/example/reeve/internal/ports/primary"
	"github.com/example/reeve/internal/ports/secondary"
)

// intakeConsumer is the checkpoint name of the built-in consumer that turns
// merge and ci_fix events with unmet obligations into intake items.
const intakeConsumer = "orchestrator-intake"

// OrchestratorServiceImpl implements the OrchestratorService interface.
// One run is: take the lock, assemble evidence, run the pure decision
// function, checkpoint the outcome, consume intake-worthy events, release.
type OrchestratorServiceImpl struct {
	repos     []string
	policy    config.Policy
	lock      secondary.LockManager
	evidence  secondary.EvidenceSource
	ledger    secondary.EventLedger
	decisions secondary.DecisionRepository
	state     secondary.StateStore
	intake    secondary.IntakeQueue
	now       func() time.Time
}

// NewOrchestratorService creates a new OrchestratorService with injected
// dependencies.
func NewOrchestratorService(
	repos []string,
	policy config.Policy,
	lock secondary.LockManager,
	evidence secondary.EvidenceSource,
	ledger secondary.EventLedger,
	decisions secondary.DecisionRepository,
	state secondary.StateStore,
	intake secondary.IntakeQueue,
) *OrchestratorServiceImpl {
	return &OrchestratorServiceImpl{
		repos:     repos,
		policy:    policy,
		lock:      lock,
		evidence:  evidence,
		ledger:    ledger,
		decisions: decisions,
		state:     state,
		intake:    intake,
		now:       time.Now,
	}
}

var _ primary.OrchestratorService = (*OrchestratorServiceImpl)(nil)

// RunCycle performs one coordinator run. Contention on the lock is a normal
// skip, never an error. Intake consumption is best-effort: a failure there
// is reported but does not invalidate the freshly written checkpoint.
func (s *OrchestratorServiceImpl) RunCycle(ctx context.Context) (*primary.CycleResult, error) {
	acquired, err := s.lock.Acquire(ctx, s.policy.LockTTL(), s.owner())
	if err != nil {
		return nil, fmt.Errorf("failed to acquire coordinator lock: %w", err)
	}
	if !acquired.Acquired {
		held := acquired.Record
		return &primary.CycleResult{Skipped: true, HeldBy: &held}, nil
	}
	defer s.lock.Release(ctx, acquired.Record.OwnerToken)

	snapshot, err := s.assembleSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	outcome := orchestrate.Decide(snapshot)
	state := secondary.OrchestratorState{
		Stage:         outcome.Stage,
		NextAction:    outcome.Action,
		EvidenceState: snapshot,
		Stale:         outcome.Stale,
		UpdatedAt:     s.now().UTC(),
	}
	if err := s.state.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to write orchestrator checkpoint: %w", err)
	}

	created, intakeErr := s.consumeIntake(ctx)

	return &primary.CycleResult{
		State:         &state,
		IntakeCreated: created,
		IntakeErr:     intakeErr,
	}, nil
}

// Status returns the last checkpoint without taking the lock.
func (s *OrchestratorServiceImpl) Status(ctx context.Context) (*secondary.OrchestratorState, error) {
	return s.state.Load(ctx)
}

// assembleSnapshot merges artifact evidence, open decision packets and
// ledger-derived recency into one value for the decision core.
func (s *OrchestratorServiceImpl) assembleSnapshot(ctx context.Context) (orchestrate.Snapshot, error) {
	snapshot, err := s.evidence.Snapshot(ctx, s.repos)
	if err != nil {
		return orchestrate.Snapshot{}, err
	}

	open, err := s.decisions.List(ctx, decision.StatusOpen)
	if err != nil {
		return orchestrate.Snapshot{}, err
	}
	for _, p := range open {
		snapshot.OpenDecisions = append(snapshot.OpenDecisions, orchestrate.OpenDecision{
			ID:       p.ID,
			OpenedAt: p.CreatedAt,
		})
	}

	events, err := s.ledger.ReadSince(ctx, time.Time{})
	if err != nil {
		return orchestrate.Snapshot{}, err
	}
	lastChange := make(map[string]time.Time)
	for _, e := range events {
		if e.Timestamp.After(snapshot.LatestEventAt) {
			snapshot.LatestEventAt = e.Timestamp
		}
		if e.RepoID != "" && e.Timestamp.After(lastChange[e.RepoID]) {
			lastChange[e.RepoID] = e.Timestamp
		}
	}
	for i := range snapshot.Repos {
		snapshot.Repos[i].LastChangeAt = lastChange[snapshot.Repos[i].RepoID]
	}

	return snapshot, nil
}

// consumeIntake advances the intake consumer over new ledger events exactly
// once: the checkpoint moves only after the item write succeeded, and item
// ids embed the event id, so a crash between the two leaves a retry that
// hits the already-existing file.
func (s *OrchestratorServiceImpl) consumeIntake(ctx context.Context) (int, error) {
	cp, err := s.ledger.ConsumerCheckpoint(ctx, intakeConsumer)
	if err != nil {
		return 0, err
	}

	var since time.Time
	var sinceID string
	if cp != nil {
		since = cp.LastProcessedAt
		sinceID = cp.LastProcessedEventID
	}

	// ReadSince is strictly-after, so re-read from one instant earlier and
	// drop everything at or before the checkpointed (timestamp, id) pair.
	events, err := s.ledger.ReadSince(ctx, since.Add(-time.Nanosecond))
	if err != nil {
		return 0, err
	}

	created := 0
	for _, e := range events {
		if !afterCheckpoint(e, since, sinceID) {
			continue
		}

		if wantsIntake(e) {
			isNew, err := s.intake.Enqueue(ctx, intakeItem(e, s.now()))
			if err != nil {
				return created, err
			}
			if isNew {
				created++
			}
		}

		if err := s.ledger.SaveConsumerCheckpoint(ctx, intakeConsumer, secondary.ConsumerCheckpoint{
			LastProcessedEventID: e.ID,
			LastProcessedAt:      e.Timestamp,
		}); err != nil {
			return created, err
		}
		since, sinceID = e.Timestamp, e.ID
	}

	return created, nil
}

// afterCheckpoint reports whether e is strictly after the checkpointed
// (timestamp, event_id) position in the ledger's total order.
func afterCheckpoint(e event.ChangeEvent, since time.Time, sinceID string) bool {
	if e.Timestamp.After(since) {
		return true
	}
	return e.Timestamp.Equal(since) && e.ID > sinceID
}

// wantsIntake reports whether an event should spawn a follow-up work item.
func wantsIntake(e event.ChangeEvent) bool {
	if e.Type != event.TypeMerge && e.Type != event.TypeCIFix {
		return false
	}
	return len(e.UnmetObligations()) > 0
}

func intakeItem(e event.ChangeEvent, now time.Time) secondary.IntakeItem {
	unmet := e.UnmetObligations()
	return secondary.IntakeItem{
		ID:          "INTAKE-" + e.ID,
		EventID:     e.ID,
		RepoID:      e.RepoID,
		WorkID:      e.WorkID,
		PRNumber:    e.PRNumber,
		Reason:      fmt.Sprintf("%s with unmet QA obligations: %s", e.Type, strings.Join(unmet, ", ")),
		Obligations: unmet,
		CreatedAt:   now.UTC(),
	}
}

func (s *OrchestratorServiceImpl) owner() secondary.LockOwner {
	host, _ := os.Hostname()
	cwd, _ := os.Getwd()
	return secondary.LockOwner{
		PID:     os.Getpid(),
		Host:    host,
		Cwd:     cwd,
		Command: strings.Join(os.Args, " "),
	}
}
