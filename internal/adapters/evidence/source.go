// Package evidence reads producer-written artifact files from the knowledge
// directory and assembles the snapshot the decision core evaluates. Only
// existence and well-known fields matter; how an artifact was produced is
// out of scope.
package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/reeve/internal/config"
	"github.com/example/reeve/internal/core/orchestrate"
	"github.com/example/reeve/internal/ports/secondary"
)

const (
	indexFile       = "index.json"
	scanFile        = "scan.json"
	committeeFile   = "committee.json"
	kickoffFile     = "kickoff.json"
	integrationFile = "integration.json"
)

// Source implements secondary.EvidenceSource on the knowledge directory.
type Source struct {
	project config.ProjectContext
}

var _ secondary.EvidenceSource = (*Source)(nil)

func NewSource(project config.ProjectContext) *Source {
	return &Source{project: project}
}

// Snapshot reads per-repo artifacts plus the kickoff and integration
// summaries. Missing files are normal early-pipeline states, not errors;
// present but unparsable files are errors.
func (s *Source) Snapshot(ctx context.Context, repos []string) (orchestrate.Snapshot, error) {
	snap := orchestrate.Snapshot{}

	for _, repoID := range repos {
		ev, err := s.repoEvidence(repoID)
		if err != nil {
			return orchestrate.Snapshot{}, err
		}
		snap.Repos = append(snap.Repos, ev)
	}

	kickoff, err := s.kickoff()
	if err != nil {
		return orchestrate.Snapshot{}, err
	}
	snap.KickoffSufficient = kickoff.Sufficient
	snap.FactsSatisfied = kickoff.FactsSatisfied

	integration, err := s.integration()
	if err != nil {
		return orchestrate.Snapshot{}, err
	}
	snap.IntegrationStatus = integration

	return snap, nil
}

func (s *Source) repoEvidence(repoID string) (orchestrate.RepoEvidence, error) {
	dir := filepath.Join(s.project.KnowledgeDir(), "repos", repoID)
	ev := orchestrate.RepoEvidence{RepoID: repoID}

	if _, err := os.Stat(filepath.Join(dir, indexFile)); err == nil {
		ev.HasIndex = true
	} else if !os.IsNotExist(err) {
		return orchestrate.RepoEvidence{}, fmt.Errorf("failed to stat index for %s: %w", repoID, err)
	}

	info, err := os.Stat(filepath.Join(dir, scanFile))
	if err == nil {
		ev.HasScan = true
		ev.ScanUpdatedAt = info.ModTime().UTC()
	} else if !os.IsNotExist(err) {
		return orchestrate.RepoEvidence{}, fmt.Errorf("failed to stat scan for %s: %w", repoID, err)
	}

	var committee struct {
		Status string `json:"status"`
	}
	found, err := s.readJSON(filepath.Join(dir, committeeFile), &committee)
	if err != nil {
		return orchestrate.RepoEvidence{}, fmt.Errorf("committee artifact for %s: %w", repoID, err)
	}
	if found {
		ev.CommitteeStatus = committee.Status
	}

	return ev, nil
}

func (s *Source) kickoff() (kickoffArtifact, error) {
	var k kickoffArtifact
	if _, err := s.readJSON(filepath.Join(s.project.KnowledgeDir(), kickoffFile), &k); err != nil {
		return kickoffArtifact{}, fmt.Errorf("kickoff artifact: %w", err)
	}
	return k, nil
}

func (s *Source) integration() (string, error) {
	var artifact struct {
		Status string `json:"status"`
	}
	if _, err := s.readJSON(filepath.Join(s.project.KnowledgeDir(), integrationFile), &artifact); err != nil {
		return "", fmt.Errorf("integration artifact: %w", err)
	}
	return artifact.Status, nil
}

// readJSON reads path into v. Returns found=false (and no error) when the
// file does not exist.
func (s *Source) readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return true, nil
}

type kickoffArtifact struct {
	Sufficient     bool `json:"sufficient"`
	FactsSatisfied bool `json:"facts_satisfied"`
}
