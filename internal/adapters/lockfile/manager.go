// Package lockfile implements the TTL advisory lock as a single JSON file
// created with O_EXCL. Stale locks are detected by TTL only; there is no
// liveness probe of the recorded PID.
package lockfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/example/reeve/internal/adapters/filesystem"
	"github.com/example/reeve/internal/config"
	"github.com/example/reeve/internal/ports/secondary"
)

// Manager implements secondary.LockManager on a lock file.
type Manager struct {
	project config.ProjectContext
	now     func() time.Time
}

var _ secondary.LockManager = (*Manager)(nil)

func NewManager(project config.ProjectContext) *Manager {
	return &Manager{project: project, now: time.Now}
}

// Acquire attempts to create the lock file exclusively. When the file
// already exists and its TTL has elapsed, the stale record is displaced
// with an atomic replace under a fresh token.
func (m *Manager) Acquire(ctx context.Context, ttl time.Duration, owner secondary.LockOwner) (*secondary.AcquireResult, error) {
	path := m.project.LockPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock dir: %w", err)
	}

	record := secondary.LockRecord{
		OwnerToken: uuid.NewString(),
		Owner:      owner,
		AcquiredAt: m.now().UTC(),
		TTLMS:      ttl.Milliseconds(),
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock record: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err == nil {
		if _, werr := f.Write(data); werr != nil {
			f.Close()
			os.Remove(path)
			return nil, fmt.Errorf("failed to write lock file: %w", werr)
		}
		if cerr := f.Close(); cerr != nil {
			os.Remove(path)
			return nil, fmt.Errorf("failed to close lock file: %w", cerr)
		}
		return &secondary.AcquireResult{Acquired: true, Record: record}, nil
	}
	if !os.IsExist(err) {
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}

	holder, err := m.Inspect(ctx)
	if err != nil {
		return nil, err
	}
	if holder == nil {
		// Holder released between the O_EXCL failure and our read. Treat
		// as contended; the next attempt will win.
		return &secondary.AcquireResult{Acquired: false}, nil
	}

	if !holder.Expired(m.now().UTC()) {
		return &secondary.AcquireResult{Acquired: false, Record: *holder}, nil
	}

	// Stale takeover: replace the expired record in one rename.
	if err := filesystem.WriteAtomic(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to take over stale lock: %w", err)
	}
	return &secondary.AcquireResult{Acquired: true, Record: record}, nil
}

// Release deletes the lock file only when the on-disk token matches.
// A missing file or a foreign token is a safe no-op.
func (m *Manager) Release(ctx context.Context, ownerToken string) error {
	holder, err := m.Inspect(ctx)
	if err != nil {
		return err
	}
	if holder == nil || holder.OwnerToken != ownerToken {
		return nil
	}
	if err := os.Remove(m.project.LockPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// Inspect returns the current lock record, or nil when unlocked.
func (m *Manager) Inspect(ctx context.Context) (*secondary.LockRecord, error) {
	data, err := os.ReadFile(m.project.LockPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read lock file: %w", err)
	}

	var record secondary.LockRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	return &record, nil
}
