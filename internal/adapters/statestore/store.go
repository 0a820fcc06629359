// Package statestore persists the orchestrator checkpoint as state.json
// plus a derived STATE.md rendering. The json write is the linearization
// point; the markdown is best-effort documentation for humans.
package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/reeve/internal/adapters/filesystem"
	"github.com/example/reeve/internal/config"
	"github.com/example/reeve/internal/ports/secondary"
)

const (
	stateFile = "state.json"
	mdFile    = "STATE.md"
)

// Store implements secondary.StateStore on the orchestrator directory.
type Store struct {
	project config.ProjectContext
}

var _ secondary.StateStore = (*Store)(nil)

func NewStore(project config.ProjectContext) (*Store, error) {
	if err := os.MkdirAll(project.OrchestratorDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create orchestrator dir: %w", err)
	}
	return &Store{project: project}, nil
}

func (s *Store) Save(ctx context.Context, state secondary.OrchestratorState) error {
	if err := filesystem.WriteJSONAtomic(s.path(stateFile), state); err != nil {
		return err
	}
	return filesystem.WriteAtomic(s.path(mdFile), []byte(renderMarkdown(state)), 0644)
}

// Load returns the last checkpoint, or nil before the first run.
func (s *Store) Load(ctx context.Context) (*secondary.OrchestratorState, error) {
	data, err := os.ReadFile(s.path(stateFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read orchestrator state: %w", err)
	}

	var state secondary.OrchestratorState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse orchestrator state: %w", err)
	}
	return &state, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.project.OrchestratorDir(), name)
}

func renderMarkdown(state secondary.OrchestratorState) string {
	var b strings.Builder

	b.WriteString("# Orchestrator State\n\n")
	fmt.Fprintf(&b, "- **Stage:** %s\n", state.Stage)
	fmt.Fprintf(&b, "- **Next action:** %s\n", state.NextAction.Type)
	if len(state.NextAction.TargetRepos) > 0 {
		fmt.Fprintf(&b, "- **Target repos:** %s\n", strings.Join(state.NextAction.TargetRepos, ", "))
	}
	if state.NextAction.Scope != "" {
		fmt.Fprintf(&b, "- **Scope:** %s\n", state.NextAction.Scope)
	}
	if state.NextAction.DecisionID != "" {
		fmt.Fprintf(&b, "- **Decision:** %s\n", state.NextAction.DecisionID)
	}
	fmt.Fprintf(&b, "- **Stale:** %t\n", state.Stale)
	fmt.Fprintf(&b, "- **Updated:** %s\n\n", state.UpdatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))

	b.WriteString("## Evidence\n\n")
	if len(state.EvidenceState.Repos) == 0 {
		b.WriteString("No target repos.\n")
	}
	for _, repo := range state.EvidenceState.Repos {
		fmt.Fprintf(&b, "- `%s`: index=%t scan=%t committee=%s\n",
			repo.RepoID, repo.HasIndex, repo.HasScan, orDash(repo.CommitteeStatus))
	}
	fmt.Fprintf(&b, "\nKickoff sufficient: %t. Facts satisfied: %t. Integration: %s.\n",
		state.EvidenceState.KickoffSufficient,
		state.EvidenceState.FactsSatisfied,
		orDash(state.EvidenceState.IntegrationStatus))

	if n := len(state.EvidenceState.OpenDecisions); n > 0 {
		fmt.Fprintf(&b, "\n%d open decision(s).\n", n)
	}

	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
