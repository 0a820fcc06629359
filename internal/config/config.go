package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the flat reeve project configuration stored in
// .reeve/config.json at the project root.
type Config struct {
	Version string   `json:"version"`
	Project string   `json:"project"`
	Repos   []string `json:"repos,omitempty"` // target repos the coordinator tracks
}

// LoadConfig reads .reeve/config.json from the specified directory.
// Resolution order: the given directory only (no home fallback).
// Returns error if no config found - caller should handle accordingly.
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, ".reeve", "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// SaveConfig writes config.json to the .reeve directory under dir.
func SaveConfig(dir string, cfg *Config) error {
	reeveDir := filepath.Join(dir, ".reeve")
	if err := os.MkdirAll(reeveDir, 0755); err != nil {
		return fmt.Errorf("failed to create .reeve dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(reeveDir, "config.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// ProjectContext carries the explicit root path for one project.
// Every component constructor takes one of these - nothing in the core
// reads ambient global state to find its files.
type ProjectContext struct {
	Root string
}

// NewProjectContext creates a context rooted at dir.
func NewProjectContext(dir string) ProjectContext {
	return ProjectContext{Root: dir}
}

// EventsDir is the root of the event ledger.
func (p ProjectContext) EventsDir() string {
	return filepath.Join(p.Root, "events")
}

// SegmentsDir holds the append-only JSONL segment files.
func (p ProjectContext) SegmentsDir() string {
	return filepath.Join(p.EventsDir(), "segments")
}

// CheckpointsDir holds compaction and consumer checkpoints.
func (p ProjectContext) CheckpointsDir() string {
	return filepath.Join(p.EventsDir(), "checkpoints")
}

// IndexPath is the event ledger index file.
func (p ProjectContext) IndexPath() string {
	return filepath.Join(p.EventsDir(), "index.json")
}

// ArchivePath is the sqlite database holding compacted events.
func (p ProjectContext) ArchivePath() string {
	return filepath.Join(p.EventsDir(), "archive.db")
}

// DecisionsDir holds DECISION-*.json packets and their renderings.
func (p ProjectContext) DecisionsDir() string {
	return filepath.Join(p.Root, "decisions")
}

// OrchestratorDir holds state.json and STATE.md.
func (p ProjectContext) OrchestratorDir() string {
	return filepath.Join(p.Root, "orchestrator")
}

// IntakeDir holds queued follow-up work items.
func (p ProjectContext) IntakeDir() string {
	return filepath.Join(p.Root, "intake")
}

// KnowledgeDir holds evidence artifacts written by external producers.
func (p ProjectContext) KnowledgeDir() string {
	return filepath.Join(p.Root, "knowledge")
}

// LockPath is the single advisory lock file for this project.
func (p ProjectContext) LockPath() string {
	return filepath.Join(p.Root, ".reeve", "coordinator.lock")
}

// PolicyPath is the optional policy.yaml with tunables.
func (p ProjectContext) PolicyPath() string {
	return filepath.Join(p.Root, ".reeve", "policy.yaml")
}
