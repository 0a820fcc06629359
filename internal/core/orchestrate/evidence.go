package orchestrate

import "time"

// Committee status values as written by the committee producer.
const (
	CommitteePass = "pass"
	CommitteeGaps = "gaps"
)

// RepoEvidence is everything the coordinator knows about one target repo,
// assembled by the imperative shell from artifact files.
type RepoEvidence struct {
	RepoID          string    `json:"repo_id"`
	HasIndex        bool      `json:"has_index"`
	HasScan         bool      `json:"has_scan"`
	CommitteeStatus string    `json:"committee_status,omitempty"` // empty = no output yet
	ScanUpdatedAt   time.Time `json:"scan_updated_at,omitzero"`
	LastChangeAt    time.Time `json:"last_change_at,omitzero"` // newest ledger event touching this repo
}

// OpenDecision is the minimal view of an unanswered decision packet.
type OpenDecision struct {
	ID       string    `json:"id"`
	OpenedAt time.Time `json:"opened_at"`
}

// Snapshot is the aggregate evidence state one decision run evaluates.
// It is a plain value: assembling it is the shell's job, deciding on it
// is this package's.
type Snapshot struct {
	Repos             []RepoEvidence `json:"repos"`
	KickoffSufficient bool           `json:"kickoff_sufficient"`
	FactsSatisfied    bool           `json:"facts_satisfied"`
	IntegrationStatus string         `json:"integration_status,omitempty"` // empty = missing
	OpenDecisions     []OpenDecision `json:"open_decisions,omitempty"`
	LatestEventAt     time.Time      `json:"latest_event_at,omitzero"`
}
