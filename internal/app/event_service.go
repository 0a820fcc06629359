// Package app wires the functional core to the filesystem adapters: the
// imperative shell. Services validate input, call the pure core, and
// persist through secondary ports.
package app

import (
	"context"
	"time"

	"github.com/example/reeve/internal/core/event"
	"github.com/example/reeve/internal/ports/primary"
	"github.com/example/reeve/internal/ports/secondary"
)

// EventServiceImpl implements the EventService interface.
type EventServiceImpl struct {
	ledger secondary.EventLedger
	now    func() time.Time
}

// NewEventService creates a new EventService with injected dependencies.
func NewEventService(ledger secondary.EventLedger) *EventServiceImpl {
	return &EventServiceImpl{
		ledger: ledger,
		now:    time.Now,
	}
}

var _ primary.EventService = (*EventServiceImpl)(nil)

// AppendEvent builds a validated event from producer input and appends it.
func (s *EventServiceImpl) AppendEvent(ctx context.Context, req primary.AppendEventRequest) (*primary.AppendEventResponse, error) {
	ts := req.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	e, err := event.New(event.Params{
		ID:           req.EventID,
		Type:         event.Type(req.Type),
		Scope:        req.Scope,
		RepoID:       req.RepoID,
		WorkID:       req.WorkID,
		PRNumber:     req.PRNumber,
		Commit:       req.Commit,
		Paths:        req.Paths,
		Fingerprints: req.Fingerprints,
		Obligations:  req.Obligations,
		Summary:      req.Summary,
		Timestamp:    ts,
	})
	if err != nil {
		return nil, err
	}

	res, err := s.ledger.Append(ctx, e)
	if err != nil {
		return nil, err
	}

	return &primary.AppendEventResponse{Event: res.Event, Segment: res.Segment}, nil
}

// ListEventsSince returns events newer than since in total order.
func (s *EventServiceImpl) ListEventsSince(ctx context.Context, since time.Time) ([]event.ChangeEvent, error) {
	return s.ledger.ReadSince(ctx, since)
}

// Rotate forces a rotation check against the current wall clock.
func (s *EventServiceImpl) Rotate(ctx context.Context) (string, error) {
	return s.ledger.RotateIfNeeded(ctx, s.now())
}

// Compact folds old segments into a checkpoint and the archive.
func (s *EventServiceImpl) Compact(ctx context.Context, days int) (*secondary.CompactionResult, error) {
	return s.ledger.CompactOlderThan(ctx, days)
}

// Index returns the current ledger index.
func (s *EventServiceImpl) Index(ctx context.Context) (*secondary.LedgerIndex, error) {
	return s.ledger.Index(ctx)
}
