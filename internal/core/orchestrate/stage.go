// Package orchestrate contains the pure decision function of the pipeline
// coordinator. Given one evidence snapshot it always yields the same next
// action - no I/O, no clock reads, no side effects.
package orchestrate

// Stage is the primary pipeline position recorded in the orchestrator
// checkpoint.
type Stage string

const (
	StageNeedsIndex     Stage = "NEEDS_INDEX"
	StageNeedsScan      Stage = "NEEDS_SCAN"
	StageNeedsKickoff   Stage = "NEEDS_KICKOFF"
	StageNeedsCommittee Stage = "NEEDS_COMMITTEE"
	StageDecisionNeeded Stage = "DECISION_NEEDED"
	StageReady          Stage = "COMMITTEE_PASSED"
)

// ActionType names the single next action the coordinator derives.
type ActionType string

const (
	ActionQuestion  ActionType = "question"
	ActionIndex     ActionType = "index"
	ActionScan      ActionType = "scan"
	ActionKickoff   ActionType = "kickoff"
	ActionCommittee ActionType = "committee"
	ActionReady     ActionType = "ready"
)

// ScopeSystem marks actions that target the system as a whole rather than
// individual repos (integration-chair gaps).
const ScopeSystem = "system"

// Action is the next thing that should happen, as consumed by downstream
// CLI and web commands.
type Action struct {
	Type        ActionType `json:"type"`
	TargetRepos []string   `json:"target_repos,omitempty"`
	Scope       string     `json:"scope,omitempty"`
	DecisionID  string     `json:"decision_id,omitempty"`
}

// Outcome is the full result of one decision evaluation.
type Outcome struct {
	Stage  Stage  `json:"stage"`
	Action Action `json:"next_action"`
	Stale  bool   `json:"stale"`
}
