package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/example/reeve/internal/adapters/filesystem"
	"github.com/example/reeve/internal/core/event"
	"github.com/example/reeve/internal/ports/secondary"
)

// CompactOlderThan folds segments whose file modification time is older
// than now - days into a compaction checkpoint and deletes them.
// Crash-safety ordering: parse and validate everything first, copy to the
// archive, write the checkpoint atomically, and only then delete segment
// files and update the index. A crash at any earlier point leaves the
// segments intact and the next run redoes the work.
func (s *Store) CompactOlderThan(ctx context.Context, days int) (*secondary.CompactionResult, error) {
	if days <= 0 {
		days = s.policy.CompactionDays
	}
	cutoff := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}

	var doomed []string
	for _, seg := range idx.Segments {
		if seg.File == idx.ActiveSegment {
			continue
		}
		info, err := os.Stat(s.segmentPath(seg.File))
		if err != nil {
			return nil, fmt.Errorf("failed to stat segment %s: %w", seg.File, err)
		}
		if info.ModTime().Before(cutoff) {
			doomed = append(doomed, seg.File)
		}
	}

	if len(doomed) == 0 {
		return &secondary.CompactionResult{}, nil
	}
	sort.Strings(doomed)

	// Validate every doomed line before touching anything.
	perSegment := make(map[string][]event.ChangeEvent, len(doomed))
	total := 0
	var latest time.Time
	for _, seg := range doomed {
		events, err := s.readSegment(seg)
		if err != nil {
			return nil, err
		}
		perSegment[seg] = events
		total += len(events)
		for _, e := range events {
			if e.Timestamp.After(latest) {
				latest = e.Timestamp
			}
		}
	}

	// Archive before deletion; an archive failure aborts compaction with
	// the segments untouched.
	if s.archive != nil {
		for _, seg := range doomed {
			if err := s.archive.Archive(ctx, seg, perSegment[seg]); err != nil {
				return nil, fmt.Errorf("failed to archive segment %s: %w", seg, err)
			}
		}
	}

	checkpoint := secondary.CompactionCheckpoint{
		CompactedAt:     s.now().UTC(),
		ThroughSegment:  doomed[len(doomed)-1],
		EventsCompacted: total,
		LatestEventAt:   latest,
	}
	if err := filesystem.WriteJSONAtomic(s.compactionPath(), checkpoint); err != nil {
		return nil, err
	}

	for _, seg := range doomed {
		if err := os.Remove(s.segmentPath(seg)); err != nil {
			return nil, fmt.Errorf("failed to remove segment %s: %w", seg, err)
		}
	}

	keep := idx.Segments[:0]
	for _, seg := range idx.Segments {
		if _, gone := perSegment[seg.File]; gone {
			idx.EventsTotal -= seg.Events
			continue
		}
		keep = append(keep, seg)
	}
	idx.Segments = keep
	if err := s.saveIndex(idx); err != nil {
		return nil, err
	}

	return &secondary.CompactionResult{
		Compacted:       len(doomed),
		EventsCompacted: total,
		Checkpoint:      &checkpoint,
	}, nil
}

// CompactionCheckpoint returns the last compaction checkpoint, or nil when
// compaction has never run.
func (s *Store) CompactionCheckpoint() (*secondary.CompactionCheckpoint, error) {
	data, err := os.ReadFile(s.compactionPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read compaction checkpoint: %w", err)
	}

	var cp secondary.CompactionCheckpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse compaction checkpoint: %w", err)
	}
	return &cp, nil
}
