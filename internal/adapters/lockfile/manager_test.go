package lockfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/reeve/internal/config"
	"github.com/example/reeve/internal/ports/secondary"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(config.NewProjectContext(t.TempDir()))
}

func testOwner(pid int) secondary.LockOwner {
	return secondary.LockOwner{PID: pid, Host: "test-host", Cwd: "/tmp", Command: "reeve cycle"}
}

func TestAcquireAndRelease(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	res, err := m.Acquire(ctx, time.Minute, testOwner(100))
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !res.Acquired {
		t.Fatal("expected to acquire a free lock")
	}
	if res.Record.OwnerToken == "" {
		t.Error("expected a non-empty owner token")
	}

	holder, err := m.Inspect(ctx)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if holder == nil || holder.OwnerToken != res.Record.OwnerToken {
		t.Errorf("unexpected holder: %+v", holder)
	}

	if err := m.Release(ctx, res.Record.OwnerToken); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	holder, _ = m.Inspect(ctx)
	if holder != nil {
		t.Errorf("lock should be gone after release, got %+v", holder)
	}
}

func TestAcquireContended(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	first, err := m.Acquire(ctx, time.Minute, testOwner(100))
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !first.Acquired {
		t.Fatal("first acquire should win")
	}

	second, err := m.Acquire(ctx, time.Minute, testOwner(200))
	if err != nil {
		t.Fatalf("contended acquire errored: %v", err)
	}
	if second.Acquired {
		t.Fatal("second acquire must not displace a live holder")
	}
	if second.Record.Owner.PID != 100 {
		t.Errorf("expected the original holder in the result, got %+v", second.Record)
	}
}

func TestAcquireTakesOverExpiredLock(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	first, err := m.Acquire(ctx, time.Minute, testOwner(100))
	if err != nil || !first.Acquired {
		t.Fatalf("acquire failed: %v %+v", err, first)
	}

	// Advance past the TTL.
	m.now = func() time.Time { return now.Add(2 * time.Minute) }

	second, err := m.Acquire(ctx, time.Minute, testOwner(200))
	if err != nil {
		t.Fatalf("takeover failed: %v", err)
	}
	if !second.Acquired {
		t.Fatal("expected takeover of an expired lock")
	}
	if second.Record.OwnerToken == first.Record.OwnerToken {
		t.Error("takeover must mint a fresh token")
	}

	holder, _ := m.Inspect(ctx)
	if holder == nil || holder.Owner.PID != 200 {
		t.Errorf("unexpected holder after takeover: %+v", holder)
	}
}

func TestReleaseForeignTokenIsNoOp(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	res, err := m.Acquire(ctx, time.Minute, testOwner(100))
	if err != nil || !res.Acquired {
		t.Fatalf("acquire failed: %v", err)
	}

	if err := m.Release(ctx, "not-the-token"); err != nil {
		t.Fatalf("foreign release must not error: %v", err)
	}
	holder, _ := m.Inspect(ctx)
	if holder == nil {
		t.Fatal("foreign release must not remove the lock")
	}
}

func TestReleaseWhenUnlockedIsNoOp(t *testing.T) {
	m := testManager(t)
	if err := m.Release(context.Background(), "whatever"); err != nil {
		t.Fatalf("release on missing lock must be a no-op: %v", err)
	}
}

func TestInspectRejectsCorruptLockFile(t *testing.T) {
	m := testManager(t)

	path := m.project.LockPath()
	os.MkdirAll(filepath.Dir(path), 0755)
	os.WriteFile(path, []byte("{broken"), 0644)

	if _, err := m.Inspect(context.Background()); err == nil {
		t.Error("expected an error for a corrupt lock file")
	}
}
