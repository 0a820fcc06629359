package app

import (
	"context"
	"fmt"
	"time"

	"github.com/example/reeve/internal/core/decision"
	"github.com/example/reeve/internal/core/event"
	"github.com/example/reeve/internal/core/orchestrate"
	"github.com/example/reeve/internal/ports/secondary"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockLedger implements secondary.EventLedger for testing.
type mockLedger struct {
	events      []event.ChangeEvent
	checkpoints map[string]secondary.ConsumerCheckpoint
	appendErr   error
	readErr     error
	saveCpErr   error
}

func newMockLedger() *mockLedger {
	return &mockLedger{checkpoints: make(map[string]secondary.ConsumerCheckpoint)}
}

func (m *mockLedger) Append(ctx context.Context, e event.ChangeEvent) (*secondary.AppendResult, error) {
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	m.events = append(m.events, e)
	return &secondary.AppendResult{Event: e, Segment: "events-test"}, nil
}

func (m *mockLedger) ReadSince(ctx context.Context, since time.Time) ([]event.ChangeEvent, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	var out []event.ChangeEvent
	for _, e := range m.events {
		if e.Timestamp.After(since) {
			out = append(out, e)
		}
	}
	event.Sort(out)
	return out, nil
}

func (m *mockLedger) RotateIfNeeded(ctx context.Context, now time.Time) (string, error) {
	return "events-test", nil
}

func (m *mockLedger) CompactOlderThan(ctx context.Context, days int) (*secondary.CompactionResult, error) {
	return &secondary.CompactionResult{}, nil
}

func (m *mockLedger) Index(ctx context.Context) (*secondary.LedgerIndex, error) {
	return &secondary.LedgerIndex{EventsTotal: len(m.events)}, nil
}

func (m *mockLedger) ConsumerCheckpoint(ctx context.Context, name string) (*secondary.ConsumerCheckpoint, error) {
	if cp, ok := m.checkpoints[name]; ok {
		return &cp, nil
	}
	return nil, nil
}

func (m *mockLedger) SaveConsumerCheckpoint(ctx context.Context, name string, cp secondary.ConsumerCheckpoint) error {
	if m.saveCpErr != nil {
		return m.saveCpErr
	}
	m.checkpoints[name] = cp
	return nil
}

// mockDecisionRepository implements secondary.DecisionRepository for testing.
type mockDecisionRepository struct {
	packets map[string]decision.Packet
	saveErr error
	getErr  error
	listErr error
}

func newMockDecisionRepository() *mockDecisionRepository {
	return &mockDecisionRepository{packets: make(map[string]decision.Packet)}
}

func (m *mockDecisionRepository) Save(ctx context.Context, p decision.Packet) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.packets[p.ID] = p
	return nil
}

func (m *mockDecisionRepository) Get(ctx context.Context, id string) (decision.Packet, error) {
	if m.getErr != nil {
		return decision.Packet{}, m.getErr
	}
	if p, ok := m.packets[id]; ok {
		return p, nil
	}
	return decision.Packet{}, fmt.Errorf("%w: %s", decision.ErrNotFound, id)
}

func (m *mockDecisionRepository) List(ctx context.Context, status string) ([]decision.Packet, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []decision.Packet
	for _, p := range m.packets {
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// mockLockManager implements secondary.LockManager for testing.
type mockLockManager struct {
	held       *secondary.LockRecord
	acquireErr error
	releases   []string
}

func (m *mockLockManager) Acquire(ctx context.Context, ttl time.Duration, owner secondary.LockOwner) (*secondary.AcquireResult, error) {
	if m.acquireErr != nil {
		return nil, m.acquireErr
	}
	if m.held != nil {
		return &secondary.AcquireResult{Acquired: false, Record: *m.held}, nil
	}
	record := secondary.LockRecord{
		OwnerToken: "test-token",
		Owner:      owner,
		AcquiredAt: time.Now().UTC(),
		TTLMS:      ttl.Milliseconds(),
	}
	return &secondary.AcquireResult{Acquired: true, Record: record}, nil
}

func (m *mockLockManager) Release(ctx context.Context, ownerToken string) error {
	m.releases = append(m.releases, ownerToken)
	return nil
}

func (m *mockLockManager) Inspect(ctx context.Context) (*secondary.LockRecord, error) {
	return m.held, nil
}

// mockEvidenceSource implements secondary.EvidenceSource for testing.
type mockEvidenceSource struct {
	snapshot orchestrate.Snapshot
	err      error
}

func (m *mockEvidenceSource) Snapshot(ctx context.Context, repos []string) (orchestrate.Snapshot, error) {
	if m.err != nil {
		return orchestrate.Snapshot{}, m.err
	}
	return m.snapshot, nil
}

// mockStateStore implements secondary.StateStore for testing.
type mockStateStore struct {
	saved   []secondary.OrchestratorState
	saveErr error
}

func (m *mockStateStore) Save(ctx context.Context, state secondary.OrchestratorState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, state)
	return nil
}

func (m *mockStateStore) Load(ctx context.Context) (*secondary.OrchestratorState, error) {
	if len(m.saved) == 0 {
		return nil, nil
	}
	last := m.saved[len(m.saved)-1]
	return &last, nil
}

// mockIntakeQueue implements secondary.IntakeQueue for testing.
type mockIntakeQueue struct {
	items      map[string]secondary.IntakeItem
	enqueueErr error
}

func newMockIntakeQueue() *mockIntakeQueue {
	return &mockIntakeQueue{items: make(map[string]secondary.IntakeItem)}
}

func (m *mockIntakeQueue) Enqueue(ctx context.Context, item secondary.IntakeItem) (bool, error) {
	if m.enqueueErr != nil {
		return false, m.enqueueErr
	}
	if _, ok := m.items[item.ID]; ok {
		return false, nil
	}
	m.items[item.ID] = item
	return true, nil
}
