// Package intake persists queued follow-up work items, one JSON file per
// item. Item IDs embed the source event id, which makes enqueueing
// naturally idempotent: a reprocessed event maps to the same file.
package intake

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/reeve/internal/adapters/filesystem"
	"github.com/example/reeve/internal/config"
	"github.com/example/reeve/internal/ports/secondary"
)

// Queue implements secondary.IntakeQueue on the intake directory.
type Queue struct {
	project config.ProjectContext
}

var _ secondary.IntakeQueue = (*Queue)(nil)

func NewQueue(project config.ProjectContext) (*Queue, error) {
	if err := os.MkdirAll(project.IntakeDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create intake dir: %w", err)
	}
	return &Queue{project: project}, nil
}

// Enqueue writes the item unless a file with the same ID already exists.
func (q *Queue) Enqueue(ctx context.Context, item secondary.IntakeItem) (bool, error) {
	path := filepath.Join(q.project.IntakeDir(), item.ID+".json")

	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat intake item %s: %w", item.ID, err)
	}

	if err := filesystem.WriteJSONAtomic(path, item); err != nil {
		return false, err
	}
	return true, nil
}
