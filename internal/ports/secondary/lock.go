package secondary

import (
	"context"
	"time"
)

// LockOwner identifies who holds (or wants) the coordinator lock.
type LockOwner struct {
	PID     int    `json:"pid"`
	Host    string `json:"host"`
	Cwd     string `json:"cwd"`
	Command string `json:"command"`
}

// LockRecord is the on-disk lock file content.
type LockRecord struct {
	OwnerToken string    `json:"owner_token"`
	Owner      LockOwner `json:"owner"`
	AcquiredAt time.Time `json:"acquired_at"`
	TTLMS      int64     `json:"ttl_ms"`
}

// Expired reports whether the record's TTL has elapsed at now.
func (r LockRecord) Expired(now time.Time) bool {
	return now.Sub(r.AcquiredAt) > time.Duration(r.TTLMS)*time.Millisecond
}

// AcquireResult reports the outcome of a lock attempt. Acquired false is a
// normal skip-this-run outcome, not an error.
type AcquireResult struct {
	Acquired bool
	Record   LockRecord // the holder: ours when acquired, theirs when not
}

// LockManager defines the secondary port for the TTL advisory lock.
// Best-effort mutual exclusion: a holder whose TTL expires under a slow
// process can be displaced. That risk is documented and accepted.
type LockManager interface {
	// Acquire attempts to take the lock, displacing an expired holder.
	Acquire(ctx context.Context, ttl time.Duration, owner LockOwner) (*AcquireResult, error)

	// Release deletes the lock only if the on-disk token matches.
	// Releasing a lock held by someone else is a safe no-op.
	Release(ctx context.Context, ownerToken string) error

	// Inspect returns the current lock record, or nil when unlocked.
	Inspect(ctx context.Context) (*LockRecord, error)
}
