// Package secondary defines the secondary ports (driven adapters) for the
// application. These are the interfaces through which the application
// drives external systems - here, the file-backed stores.
package secondary

import (
	"context"
	"time"

	"github.com/example/reeve/internal/core/event"
)

// SegmentInfo is the index entry for one ledger segment file.
type SegmentInfo struct {
	File          string    `json:"file"`
	CreatedAt     time.Time `json:"created_at"`
	LatestEventAt time.Time `json:"latest_event_at,omitzero"`
	Events        int       `json:"events"`
}

// LedgerIndex mirrors events/index.json: the segment registry and counters.
type LedgerIndex struct {
	ActiveSegment string        `json:"active_segment"`
	EventsTotal   int           `json:"events_total"`
	LatestEventAt time.Time     `json:"latest_event_at,omitzero"`
	Segments      []SegmentInfo `json:"segments"`
}

// AppendResult reports where an event landed.
type AppendResult struct {
	Event   event.ChangeEvent
	Segment string
}

// CompactionCheckpoint records how far compaction has progressed. Each run
// supersedes (not merges) the previous checkpoint.
type CompactionCheckpoint struct {
	CompactedAt     time.Time `json:"compacted_at"`
	ThroughSegment  string    `json:"through_segment"`
	EventsCompacted int       `json:"events_compacted"`
	LatestEventAt   time.Time `json:"latest_event_at,omitzero"`
}

// CompactionResult summarizes one compaction run.
type CompactionResult struct {
	Compacted       int // segment files folded
	EventsCompacted int
	Checkpoint      *CompactionCheckpoint // nil when nothing was compacted
}

// ConsumerCheckpoint tracks how far a named consumer has read the ledger.
type ConsumerCheckpoint struct {
	LastProcessedEventID string    `json:"last_processed_event_id"`
	LastProcessedSegment string    `json:"last_processed_segment"`
	LastProcessedAt      time.Time `json:"last_processed_at,omitzero"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// EventLedger defines the secondary port for the append-only event store.
type EventLedger interface {
	// Append writes one event to the active segment, rotating first if
	// needed, and updates the index counters.
	Append(ctx context.Context, e event.ChangeEvent) (*AppendResult, error)

	// ReadSince returns all events with timestamp strictly after since,
	// sorted by (timestamp, event_id). A zero since means from the
	// beginning. Malformed segment content is a fatal error.
	ReadSince(ctx context.Context, since time.Time) ([]event.ChangeEvent, error)

	// RotateIfNeeded ensures the active segment matches the current UTC
	// hour bucket and the size policy, returning the active segment name.
	// Idempotent within one hour below the size threshold.
	RotateIfNeeded(ctx context.Context, now time.Time) (string, error)

	// CompactOlderThan folds non-active segments whose file modification
	// time is older than the cutoff into a compaction checkpoint, then
	// deletes them. The checkpoint is written before any deletion.
	CompactOlderThan(ctx context.Context, days int) (*CompactionResult, error)

	// Index returns the current ledger index.
	Index(ctx context.Context) (*LedgerIndex, error)

	// ConsumerCheckpoint returns the named consumer's checkpoint, or nil
	// if the consumer has never advanced.
	ConsumerCheckpoint(ctx context.Context, name string) (*ConsumerCheckpoint, error)

	// SaveConsumerCheckpoint atomically replaces the named checkpoint.
	SaveConsumerCheckpoint(ctx context.Context, name string, cp ConsumerCheckpoint) error
}

// EventArchive defines the secondary port for the durable archive of
// compacted events. The ledger copies segment contents here before
// deleting the segment files.
type EventArchive interface {
	// Archive stores the events of one segment. Re-archiving the same
	// events is a no-op.
	Archive(ctx context.Context, segment string, events []event.ChangeEvent) error
}
