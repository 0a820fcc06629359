package primary

import (
	"context"

	"github.com/example/reeve/internal/ports/secondary"
)

// OrchestratorService defines the primary port for coordinator runs.
type OrchestratorService interface {
	// RunCycle performs one coordinator run: acquire the lock, assemble
	// evidence, decide, checkpoint, consume intake-worthy events, release.
	RunCycle(ctx context.Context) (*CycleResult, error)

	// Status returns the last checkpoint without taking the lock.
	Status(ctx context.Context) (*secondary.OrchestratorState, error)
}

// CycleResult reports what one run did.
type CycleResult struct {
	// Skipped is true when another coordinator holds the lock. The run
	// did nothing; this is a normal outcome, not an error.
	Skipped bool

	// HeldBy describes the current holder when Skipped.
	HeldBy *secondary.LockRecord

	// State is the freshly written checkpoint (nil when Skipped).
	State *secondary.OrchestratorState

	// IntakeCreated counts the follow-up items queued by this run.
	IntakeCreated int

	// IntakeErr carries the best-effort consumption failure, if any.
	// It never aborts the primary decision.
	IntakeErr error
}
