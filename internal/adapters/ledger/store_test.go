package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/reeve/internal/config"
	"github.com/example/reeve/internal/core/event"
)

func testStore(t *testing.T) (*Store, config.ProjectContext) {
	t.Helper()
	project := config.NewProjectContext(t.TempDir())
	store, err := NewStore(project, config.DefaultPolicy(), nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store, project
}

func testEvent(t *testing.T, repoID string, ts time.Time, paths ...string) event.ChangeEvent {
	t.Helper()
	if len(paths) == 0 {
		paths = []string{"x", "y"}
	}
	e, err := event.New(event.Params{
		Type:      event.TypeMerge,
		Scope:     "repo:" + repoID,
		RepoID:    repoID,
		WorkID:    "WO-001",
		Commit:    strings.Repeat("a", 40),
		Paths:     paths,
		Summary:   "merged",
		Timestamp: ts,
	})
	if err != nil {
		t.Fatalf("event.New failed: %v", err)
	}
	return e
}

func TestAppendDoubleAppendSameIdentity(t *testing.T) {
	store, project := testStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 14, 10, 0, 0, time.UTC)

	e := testEvent(t, "repo-a", t0, "x", "y")

	res1, err := store.Append(ctx, e)
	if err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	res2, err := store.Append(ctx, e)
	if err != nil {
		t.Fatalf("second append failed: %v", err)
	}
	if res1.Event.ID != res2.Event.ID {
		t.Errorf("ids differ: %s vs %s", res1.Event.ID, res2.Event.ID)
	}

	// The segment holds exactly two lines with equal event_id.
	data, err := os.ReadFile(filepath.Join(project.SegmentsDir(), res1.Segment+segmentExt))
	if err != nil {
		t.Fatalf("failed to read segment: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	idx, err := store.Index(ctx)
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if idx.EventsTotal != 2 {
		t.Errorf("events_total: got %d, want 2", idx.EventsTotal)
	}
	if idx.ActiveSegment != "events-20260801-14" {
		t.Errorf("unexpected active segment %s", idx.ActiveSegment)
	}
}

func TestRotationByHourBucket(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	h1 := time.Date(2026, 8, 1, 14, 5, 0, 0, time.UTC)
	h2 := time.Date(2026, 8, 1, 15, 5, 0, 0, time.UTC)

	res1, err := store.Append(ctx, testEvent(t, "repo-a", h1))
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	res2, err := store.Append(ctx, testEvent(t, "repo-b", h2))
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if res1.Segment != "events-20260801-14" {
		t.Errorf("h1 segment: got %s", res1.Segment)
	}
	if res2.Segment != "events-20260801-15" {
		t.Errorf("h2 segment: got %s", res2.Segment)
	}

	idx, _ := store.Index(ctx)
	if idx.ActiveSegment != res2.Segment {
		t.Errorf("active segment should follow the latest rotation, got %s", idx.ActiveSegment)
	}
	if len(idx.Segments) != 2 {
		t.Errorf("expected 2 index entries, got %d", len(idx.Segments))
	}
}

func TestRotationIdempotentWithinHour(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 14, 5, 0, 0, time.UTC)

	first, err := store.RotateIfNeeded(ctx, now)
	if err != nil {
		t.Fatalf("rotate failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := store.RotateIfNeeded(ctx, now.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("rotate failed: %v", err)
		}
		if again != first {
			t.Errorf("rotation not idempotent: %s vs %s", again, first)
		}
	}

	idx, _ := store.Index(ctx)
	if len(idx.Segments) != 1 {
		t.Errorf("expected a single segment entry, got %d", len(idx.Segments))
	}
}

func TestRotationBySize(t *testing.T) {
	project := config.NewProjectContext(t.TempDir())
	policy := config.DefaultPolicy()
	policy.MaxSegmentBytes = 1
	store, err := NewStore(project, policy, nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 14, 5, 0, 0, time.UTC)

	res1, err := store.Append(ctx, testEvent(t, "repo-a", now, "a"))
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	res2, err := store.Append(ctx, testEvent(t, "repo-a", now.Add(time.Minute), "b"))
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if res1.Segment == res2.Segment {
		t.Fatalf("expected size rotation, both landed in %s", res1.Segment)
	}
	if res2.Segment != "events-20260801-14-2" {
		t.Errorf("overflow segment: got %s", res2.Segment)
	}

	res3, err := store.Append(ctx, testEvent(t, "repo-a", now.Add(2*time.Minute), "c"))
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if res3.Segment != "events-20260801-14-3" {
		t.Errorf("second overflow segment: got %s", res3.Segment)
	}
}

func TestReadSinceMonotonic(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 14, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		e := testEvent(t, "repo-a", t0.Add(time.Duration(i)*time.Hour), "p", string(rune('a'+i)))
		if _, err := store.Append(ctx, e); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	since := t0.Add(2 * time.Hour)
	got, err := store.ReadSince(ctx, since)
	if err != nil {
		t.Fatalf("ReadSince failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	for _, e := range got {
		if !e.Timestamp.After(since) {
			t.Errorf("event at %s not after %s", e.Timestamp, since)
		}
	}

	// Same since, same result set.
	again, err := store.ReadSince(ctx, since)
	if err != nil {
		t.Fatalf("ReadSince failed: %v", err)
	}
	if len(again) != len(got) {
		t.Errorf("second read differs: %d vs %d", len(again), len(got))
	}
	for i := range got {
		if got[i].ID != again[i].ID {
			t.Errorf("order differs at %d", i)
		}
	}
}

func TestReadSinceZeroReadsEverything(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 14, 0, 0, 0, time.UTC)

	if _, err := store.Append(ctx, testEvent(t, "repo-a", t0)); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	got, err := store.ReadSince(ctx, time.Time{})
	if err != nil {
		t.Fatalf("ReadSince failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 event, got %d", len(got))
	}
}

func TestReadSinceTotalOrderAcrossSegments(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 14, 0, 0, 0, time.UTC)

	// Newer hour appended first; read must still come back sorted.
	if _, err := store.Append(ctx, testEvent(t, "repo-b", t0.Add(time.Hour))); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if _, err := store.Append(ctx, testEvent(t, "repo-a", t0)); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	got, err := store.ReadSince(ctx, time.Time{})
	if err != nil {
		t.Fatalf("ReadSince failed: %v", err)
	}
	if len(got) != 2 || !got[0].Timestamp.Before(got[1].Timestamp) {
		t.Errorf("events not in timestamp order: %+v", got)
	}
}

func TestReadSinceFailsOnCorruptLine(t *testing.T) {
	store, project := testStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 14, 0, 0, 0, time.UTC)

	res, err := store.Append(ctx, testEvent(t, "repo-a", t0))
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	segPath := filepath.Join(project.SegmentsDir(), res.Segment+segmentExt)
	f, err := os.OpenFile(segPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("failed to open segment: %v", err)
	}
	f.WriteString("{not json\n")
	f.Close()

	if _, err := store.ReadSince(ctx, time.Time{}); !errors.Is(err, ErrCorruptSegment) {
		t.Errorf("expected ErrCorruptSegment, got %v", err)
	}
}

func TestReadSinceFailsOnTamperedEvent(t *testing.T) {
	store, project := testStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 14, 0, 0, 0, time.UTC)

	res, err := store.Append(ctx, testEvent(t, "repo-a", t0))
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// Valid JSON, wrong identity.
	segPath := filepath.Join(project.SegmentsDir(), res.Segment+segmentExt)
	data, _ := os.ReadFile(segPath)
	tampered := strings.Replace(string(data), res.Event.ID, "deadbeef0000", 1)
	os.WriteFile(segPath, []byte(tampered), 0644)

	if _, err := store.ReadSince(ctx, time.Time{}); !errors.Is(err, ErrCorruptSegment) {
		t.Errorf("expected ErrCorruptSegment, got %v", err)
	}
}

func TestAppendRejectsInvalidEvent(t *testing.T) {
	store, _ := testStore(t)

	e := testEvent(t, "repo-a", time.Date(2026, 8, 1, 14, 0, 0, 0, time.UTC))
	e.ID = "deadbeef0000"

	if _, err := store.Append(context.Background(), e); !errors.Is(err, event.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestConsumerCheckpointRoundTrip(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	cp, err := store.ConsumerCheckpoint(ctx, "orchestrator-intake")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cp != nil {
		t.Fatal("expected nil checkpoint before first save")
	}

	saved := secondaryCheckpoint("abc123def456", "events-20260801-14", time.Date(2026, 8, 1, 14, 30, 0, 0, time.UTC))
	if err := store.SaveConsumerCheckpoint(ctx, "orchestrator-intake", saved); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.ConsumerCheckpoint(ctx, "orchestrator-intake")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded == nil || loaded.LastProcessedEventID != "abc123def456" {
		t.Errorf("unexpected checkpoint: %+v", loaded)
	}
	if loaded.UpdatedAt.IsZero() {
		t.Error("updated_at not stamped")
	}
}
