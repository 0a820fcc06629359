package secondary

import (
	"context"
	"time"

	"github.com/example/reeve/internal/core/orchestrate"
)

// EvidenceSource defines the secondary port for reading producer-written
// artifacts. The coordinator only checks the existence and content of
// well-known paths - never how an artifact was produced.
type EvidenceSource interface {
	// Snapshot assembles repo-level and system-level evidence for the
	// given target repos. Open decisions and ledger-derived fields are
	// filled in by the caller.
	Snapshot(ctx context.Context, repos []string) (orchestrate.Snapshot, error)
}

// OrchestratorState mirrors orchestrator/state.json: the single source of
// truth for what should happen next.
type OrchestratorState struct {
	Stage         orchestrate.Stage    `json:"stage"`
	NextAction    orchestrate.Action   `json:"next_action"`
	EvidenceState orchestrate.Snapshot `json:"evidence_state"`
	Stale         bool                 `json:"stale"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// StateStore defines the secondary port for the orchestrator checkpoint.
// The checkpoint write is the linearization point for "what is the current
// decision": readers see the old value or the new one, never a partial.
type StateStore interface {
	Save(ctx context.Context, state OrchestratorState) error

	// Load returns the last checkpoint, or nil before the first run.
	Load(ctx context.Context) (*OrchestratorState, error)
}

// IntakeItem is a queued follow-up work item derived from a ledger event
// with unmet QA obligations.
type IntakeItem struct {
	ID          string    `json:"id"` // INTAKE-<event_id>
	EventID     string    `json:"event_id"`
	RepoID      string    `json:"repo_id,omitempty"`
	WorkID      string    `json:"work_id"`
	PRNumber    int       `json:"pr_number,omitempty"`
	Reason      string    `json:"reason"`
	Obligations []string  `json:"obligations"`
	CreatedAt   time.Time `json:"created_at"`
}

// IntakeQueue defines the secondary port for follow-up work items.
type IntakeQueue interface {
	// Enqueue writes the item unless one with the same ID already exists.
	// Returns true when a new item was created.
	Enqueue(ctx context.Context, item IntakeItem) (bool, error)
}
