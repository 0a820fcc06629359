// Package primary defines the primary ports (driving adapters) for the
// application: the service interfaces the CLI talks to.
package primary

import (
	"context"
	"time"

	"github.com/example/reeve/internal/core/event"
	"github.com/example/reeve/internal/ports/secondary"
)

// EventService defines the primary port for ledger operations.
type EventService interface {
	// AppendEvent records one knowledge change event.
	AppendEvent(ctx context.Context, req AppendEventRequest) (*AppendEventResponse, error)

	// ListEventsSince returns events newer than since in total order.
	ListEventsSince(ctx context.Context, since time.Time) ([]event.ChangeEvent, error)

	// Rotate forces a rotation check and returns the active segment name.
	Rotate(ctx context.Context) (string, error)

	// Compact folds segments older than the given number of days
	// (0 = policy default) into a checkpoint and the archive.
	Compact(ctx context.Context, days int) (*secondary.CompactionResult, error)

	// Index returns the current ledger index.
	Index(ctx context.Context) (*secondary.LedgerIndex, error)
}

// AppendEventRequest carries producer-supplied event fields.
// EventID is optional; when present it must match the derived identity.
type AppendEventRequest struct {
	EventID      string
	Type         string
	Scope        string
	RepoID       string
	WorkID       string
	PRNumber     int
	Commit       string
	Paths        []string
	Fingerprints []string
	Obligations  map[string]bool
	Summary      string
	Timestamp    time.Time // zero = now
}

// AppendEventResponse reports the stored event and its segment.
type AppendEventResponse struct {
	Event   event.ChangeEvent
	Segment string
}
