package secondary

import (
	"context"

	"github.com/example/reeve/internal/core/decision"
)

// DecisionRepository defines the secondary port for decision packet
// persistence. Packets are never deleted - they are the audit trail.
type DecisionRepository interface {
	// Save persists a packet (json + human-readable rendering) atomically,
	// validating it against the packet schema first.
	Save(ctx context.Context, p decision.Packet) error

	// Get loads and schema-validates a packet by id.
	// Returns decision.ErrNotFound when no such packet exists.
	Get(ctx context.Context, id string) (decision.Packet, error)

	// List returns packets filtered by status ("" = all), sorted by
	// creation time then id.
	List(ctx context.Context, status string) ([]decision.Packet, error)
}
