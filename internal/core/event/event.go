// Package event contains the pure business logic for knowledge change events.
// This is part of the Functional Core - no I/O, only pure functions.
package event

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Type classifies what kind of knowledge change an event records.
type Type string

const (
	TypeMerge            Type = "merge"
	TypeCIFix            Type = "ci_fix"
	TypeDecisionAnswered Type = "decision_answered"
	TypeIndex            Type = "index"
	TypeScan             Type = "scan"
	TypeCommittee        Type = "committee"
)

// knownTypes is the closed set accepted by Validate.
var knownTypes = map[Type]bool{
	TypeMerge:            true,
	TypeCIFix:            true,
	TypeDecisionAnswered: true,
	TypeIndex:            true,
	TypeScan:             true,
	TypeCommittee:        true,
}

// Sentinel errors for the event domain.
var (
	// ErrInvalid marks a structurally invalid event record. Corrupt records
	// are fatal to the operation that found them - never silently repaired.
	ErrInvalid = errors.New("invalid event record")

	// ErrIdentityMismatch means a caller-supplied event_id disagrees with
	// the derived one. This signals a caller bug.
	ErrIdentityMismatch = errors.New("event id mismatch")
)

// Artifacts lists the paths and content fingerprints an event touched.
// Both sets are kept sorted so the record serializes deterministically.
type Artifacts struct {
	Paths        []string `json:"paths"`
	Fingerprints []string `json:"fingerprints"`
}

// ChangeEvent is an immutable fact that something changed.
// Created once by a producer, never mutated, deleted only by compaction
// after being folded into a checkpoint summary.
type ChangeEvent struct {
	ID          string          `json:"event_id"`
	Type        Type            `json:"type"`
	Scope       string          `json:"scope"`
	RepoID      string          `json:"repo_id,omitempty"`
	WorkID      string          `json:"work_id"`
	PRNumber    int             `json:"pr_number,omitempty"`
	Commit      string          `json:"commit,omitempty"`
	Artifacts   Artifacts       `json:"artifacts"`
	Obligations map[string]bool `json:"obligations,omitempty"`
	Summary     string          `json:"summary"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Params carries the producer-supplied fields for a new event.
// ID is optional; when set it must match the derived identity.
type Params struct {
	ID           string
	Type         Type
	Scope        string
	RepoID       string
	WorkID       string
	PRNumber     int
	Commit       string
	Paths        []string
	Fingerprints []string
	Obligations  map[string]bool
	Summary      string
	Timestamp    time.Time
}

// New builds a validated ChangeEvent from params. The event identity is a
// deterministic function of (type, repo_id, commit, sorted paths), so
// logically identical input always yields the same event_id regardless of
// path ordering. A caller-supplied ID that disagrees with the derived one
// fails with ErrIdentityMismatch.
func New(p Params) (ChangeEvent, error) {
	paths := sortedCopy(p.Paths)
	fingerprints := sortedCopy(p.Fingerprints)

	id, err := DeriveID(p.Type, p.RepoID, p.Commit, paths)
	if err != nil {
		return ChangeEvent{}, err
	}
	if p.ID != "" && p.ID != id {
		return ChangeEvent{}, fmt.Errorf("%w: supplied %s, derived %s", ErrIdentityMismatch, p.ID, id)
	}

	ts := p.Timestamp
	if ts.IsZero() {
		return ChangeEvent{}, fmt.Errorf("%w: timestamp is required", ErrInvalid)
	}

	e := ChangeEvent{
		ID:          id,
		Type:        p.Type,
		Scope:       p.Scope,
		RepoID:      p.RepoID,
		WorkID:      p.WorkID,
		PRNumber:    p.PRNumber,
		Commit:      p.Commit,
		Artifacts:   Artifacts{Paths: paths, Fingerprints: fingerprints},
		Obligations: p.Obligations,
		Summary:     p.Summary,
		Timestamp:   ts.UTC(),
	}

	if err := e.Validate(); err != nil {
		return ChangeEvent{}, err
	}
	return e, nil
}

// Validate checks the structural invariants of a persisted event record.
// A failure here is fatal to the operation that loaded the record.
func (e ChangeEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing event_id", ErrInvalid)
	}
	if !knownTypes[e.Type] {
		return fmt.Errorf("%w: unknown type %q", ErrInvalid, e.Type)
	}
	if e.Scope == "" {
		return fmt.Errorf("%w: missing scope", ErrInvalid)
	}
	if e.WorkID == "" {
		return fmt.Errorf("%w: missing work_id", ErrInvalid)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalid)
	}
	if e.Commit != "" && !isHex(e.Commit) {
		return fmt.Errorf("%w: commit %q is not a hex digest", ErrInvalid, e.Commit)
	}
	if !sort.StringsAreSorted(e.Artifacts.Paths) {
		return fmt.Errorf("%w: artifact paths are not sorted", ErrInvalid)
	}
	if !sort.StringsAreSorted(e.Artifacts.Fingerprints) {
		return fmt.Errorf("%w: artifact fingerprints are not sorted", ErrInvalid)
	}

	derived, err := DeriveID(e.Type, e.RepoID, e.Commit, e.Artifacts.Paths)
	if err != nil {
		return err
	}
	if derived != e.ID {
		return fmt.Errorf("%w: stored event_id %s does not match content (want %s)", ErrInvalid, e.ID, derived)
	}

	return nil
}

// Less orders events by (timestamp, event_id) ascending. This is the total
// order ReadSince guarantees regardless of physical segment boundaries.
func Less(a, b ChangeEvent) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

// Sort sorts events in place by (timestamp, event_id) ascending.
func Sort(events []ChangeEvent) {
	sort.Slice(events, func(i, j int) bool {
		return Less(events[i], events[j])
	})
}

// UnmetObligations reports whether the event carries QA obligations that
// are still flagged as outstanding (e.g. must_add_e2e: true).
func (e ChangeEvent) UnmetObligations() []string {
	var unmet []string
	for name, pending := range e.Obligations {
		if pending {
			unmet = append(unmet, name)
		}
	}
	sort.Strings(unmet)
	return unmet
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return len(s) > 0
}
