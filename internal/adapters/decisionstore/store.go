// Package decisionstore persists decision packets as DECISION-<id>.json
// files plus a human-readable DECISION-<id>.md rendering, both written with
// atomic replace.
package decisionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/example/reeve/internal/adapters/filesystem"
	"github.com/example/reeve/internal/config"
	"github.com/example/reeve/internal/core/decision"
	"github.com/example/reeve/internal/ports/secondary"
)

const (
	filePrefix = "DECISION-"
	jsonExt    = ".json"
	mdExt      = ".md"
)

// Store implements secondary.DecisionRepository on the local filesystem.
type Store struct {
	project config.ProjectContext
}

var _ secondary.DecisionRepository = (*Store)(nil)

func NewStore(project config.ProjectContext) (*Store, error) {
	if err := os.MkdirAll(project.DecisionsDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create decisions dir: %w", err)
	}
	return &Store{project: project}, nil
}

// Save validates the packet against the schema and writes both renderings.
// The JSON file is the source of truth; the markdown is derived and is
// rewritten on every save.
func (s *Store) Save(ctx context.Context, p decision.Packet) error {
	if err := decision.ValidateSchema(p); err != nil {
		return err
	}
	if err := filesystem.WriteJSONAtomic(s.jsonPath(p.ID), p); err != nil {
		return err
	}
	return filesystem.WriteAtomic(s.mdPath(p.ID), []byte(renderMarkdown(p)), 0644)
}

// Get loads and schema-validates one packet.
func (s *Store) Get(ctx context.Context, id string) (decision.Packet, error) {
	data, err := os.ReadFile(s.jsonPath(id))
	if os.IsNotExist(err) {
		return decision.Packet{}, fmt.Errorf("%w: %s", decision.ErrNotFound, id)
	}
	if err != nil {
		return decision.Packet{}, fmt.Errorf("failed to read decision %s: %w", id, err)
	}

	var p decision.Packet
	if err := json.Unmarshal(data, &p); err != nil {
		return decision.Packet{}, fmt.Errorf("failed to parse decision %s: %w", id, err)
	}
	if err := decision.ValidateSchema(p); err != nil {
		return decision.Packet{}, fmt.Errorf("decision %s: %w", id, err)
	}
	return p, nil
}

// List returns packets filtered by status ("" = all), sorted by creation
// time then id.
func (s *Store) List(ctx context.Context, status string) ([]decision.Packet, error) {
	entries, err := os.ReadDir(s.project.DecisionsDir())
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}

	var out []decision.Packet
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, jsonExt) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), jsonExt)
		p, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) jsonPath(id string) string {
	return filepath.Join(s.project.DecisionsDir(), filePrefix+id+jsonExt)
}

func (s *Store) mdPath(id string) string {
	return filepath.Join(s.project.DecisionsDir(), filePrefix+id+mdExt)
}

// renderMarkdown produces the human-facing view of a packet.
func renderMarkdown(p decision.Packet) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Decision %s\n\n", p.ID)
	fmt.Fprintf(&b, "- **Status:** %s\n", p.Status)
	fmt.Fprintf(&b, "- **Scope:** %s\n", p.Scope)
	fmt.Fprintf(&b, "- **Trigger:** %s\n", p.Trigger)
	fmt.Fprintf(&b, "- **Blocking state:** %s\n", p.BlockingState)
	fmt.Fprintf(&b, "- **Created:** %s\n\n", p.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))

	fmt.Fprintf(&b, "## Context\n\n%s\n\n", p.Context.Summary)
	fmt.Fprintf(&b, "**Why automation failed:** %s\n\n", p.Context.WhyAutomationFailed)
	if len(p.Context.WhatIsKnown) > 0 {
		b.WriteString("**What is known:**\n\n")
		for _, fact := range p.Context.WhatIsKnown {
			fmt.Fprintf(&b, "- %s\n", fact)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Questions\n\n")
	for i, q := range p.Questions {
		fmt.Fprintf(&b, "%d. **%s** (`%s`, expects %s)\n", i+1, q.Question, q.ID, q.ExpectedAnswerType)
		if q.Constraints != "" {
			fmt.Fprintf(&b, "   - Constraints: %s\n", q.Constraints)
		}
		if len(q.Blocks) > 0 {
			fmt.Fprintf(&b, "   - Blocks: %s\n", strings.Join(q.Blocks, ", "))
		}
		if q.Answer != nil {
			fmt.Fprintf(&b, "   - Answer: %s (%s)\n", *q.Answer, q.AnsweredAt.UTC().Format("2006-01-02 15:04:05 UTC"))
		}
		b.WriteString("\n")
	}

	if p.AssumptionsIfUnanswered != "" {
		fmt.Fprintf(&b, "## Assumptions if unanswered\n\n%s\n", p.AssumptionsIfUnanswered)
	}

	return b.String()
}
