// Package ledger implements the file-backed, time-segmented event store:
// append-only JSONL segments, an index of segments and counters, checkpoint
// reads, and crash-safe compaction.
package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/example/reeve/internal/adapters/filesystem"
	"github.com/example/reeve/internal/config"
	"github.com/example/reeve/internal/core/event"
	"github.com/example/reeve/internal/ports/secondary"
)

// ErrCorruptSegment marks malformed or structurally invalid segment
// content. Corrupt logs are surfaced, never skipped - the ledger is an
// audit trail and silently repairing it would destroy its value.
var ErrCorruptSegment = errors.New("corrupt segment")

const (
	segmentPrefix      = "events-"
	segmentExt         = ".jsonl"
	compactionFile     = "last_compacted.json"
	consumerFilePrefix = "consumer-"
)

// Store implements secondary.EventLedger on the local filesystem.
type Store struct {
	project config.ProjectContext
	policy  config.Policy
	archive secondary.EventArchive // nil = no archive configured
	now     func() time.Time
}

var _ secondary.EventLedger = (*Store)(nil)

// NewStore creates a ledger store rooted at the project's events dir.
// archive may be nil when no compaction archive is configured.
func NewStore(project config.ProjectContext, policy config.Policy, archive secondary.EventArchive) (*Store, error) {
	for _, dir := range []string{project.SegmentsDir(), project.CheckpointsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return &Store{
		project: project,
		policy:  policy,
		archive: archive,
		now:     time.Now,
	}, nil
}

// Append writes one serialized event line to the active segment and updates
// the index counters. Re-appending a full record that already exists is
// allowed: identity-level idempotence is the consumer's job via event_id.
func (s *Store) Append(ctx context.Context, e event.ChangeEvent) (*secondary.AppendResult, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}

	segment, err := s.rotate(idx, e.Timestamp)
	if err != nil {
		return nil, err
	}

	line, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	f, err := os.OpenFile(s.segmentPath(segment), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment %s: %w", segment, err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to append to segment %s: %w", segment, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close segment %s: %w", segment, err)
	}

	idx.EventsTotal++
	if e.Timestamp.After(idx.LatestEventAt) {
		idx.LatestEventAt = e.Timestamp
	}
	for i := range idx.Segments {
		if idx.Segments[i].File == segment {
			idx.Segments[i].Events++
			if e.Timestamp.After(idx.Segments[i].LatestEventAt) {
				idx.Segments[i].LatestEventAt = e.Timestamp
			}
		}
	}
	if err := s.saveIndex(idx); err != nil {
		return nil, err
	}

	return &secondary.AppendResult{Event: e, Segment: segment}, nil
}

// ReadSince scans every segment oldest to newest, parses every line, drops
// events at or before since, and returns the rest in (timestamp, event_id)
// order. A zero since reads from the beginning.
func (s *Store) ReadSince(ctx context.Context, since time.Time) ([]event.ChangeEvent, error) {
	segments, err := s.segmentFiles()
	if err != nil {
		return nil, err
	}

	var out []event.ChangeEvent
	for _, seg := range segments {
		events, err := s.readSegment(seg)
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			if !e.Timestamp.After(since) {
				continue
			}
			out = append(out, e)
		}
	}

	event.Sort(out)
	return out, nil
}

// RotateIfNeeded ensures the active segment matches the hour bucket for now
// and the size policy. Idempotent within one hour below the threshold.
func (s *Store) RotateIfNeeded(ctx context.Context, now time.Time) (string, error) {
	idx, err := s.loadIndex()
	if err != nil {
		return "", err
	}
	segment, err := s.rotate(idx, now)
	if err != nil {
		return "", err
	}
	if err := s.saveIndex(idx); err != nil {
		return "", err
	}
	return segment, nil
}

// Index returns the current ledger index.
func (s *Store) Index(ctx context.Context) (*secondary.LedgerIndex, error) {
	return s.loadIndex()
}

// ConsumerCheckpoint returns the named consumer's checkpoint, or nil when
// the consumer has never advanced. A missing checkpoint is not an error.
func (s *Store) ConsumerCheckpoint(ctx context.Context, name string) (*secondary.ConsumerCheckpoint, error) {
	path := s.consumerPath(name)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", name, err)
	}

	var cp secondary.ConsumerCheckpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %w", name, err)
	}
	return &cp, nil
}

// SaveConsumerCheckpoint atomically replaces the named checkpoint.
func (s *Store) SaveConsumerCheckpoint(ctx context.Context, name string, cp secondary.ConsumerCheckpoint) error {
	cp.UpdatedAt = s.now().UTC()
	return filesystem.WriteJSONAtomic(s.consumerPath(name), cp)
}

// rotate determines the active segment for now, creating and registering a
// new one when the hour bucket changed or the size threshold was crossed.
// It mutates idx; the caller saves it.
func (s *Store) rotate(idx *secondary.LedgerIndex, now time.Time) (string, error) {
	desired := segmentPrefix + now.UTC().Format("20060102-15")

	active := idx.ActiveSegment
	switch {
	case active == "":
		return s.openSegment(idx, desired, now)

	case hourBucket(active) != desired:
		return s.openSegment(idx, desired, now)

	default:
		info, err := os.Stat(s.segmentPath(active))
		if err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to stat segment %s: %w", active, err)
		}
		if err == nil && info.Size() > s.policy.MaxSegmentBytes {
			return s.openSegment(idx, nextInBucket(active, desired), now)
		}
		return active, nil
	}
}

// openSegment creates the segment file and registers it in the index.
func (s *Store) openSegment(idx *secondary.LedgerIndex, name string, now time.Time) (string, error) {
	f, err := os.OpenFile(s.segmentPath(name), os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create segment %s: %w", name, err)
	}
	f.Close()

	idx.ActiveSegment = name
	for _, seg := range idx.Segments {
		if seg.File == name {
			return name, nil // already registered (idempotent rotation)
		}
	}
	idx.Segments = append(idx.Segments, secondary.SegmentInfo{
		File:      name,
		CreatedAt: now.UTC(),
	})
	return name, nil
}

// readSegment parses and validates every line of one segment. Any
// malformed line is fatal for the read.
func (s *Store) readSegment(name string) ([]event.ChangeEvent, error) {
	f, err := os.Open(s.segmentPath(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open segment %s: %w", name, err)
	}
	defer f.Close()

	var events []event.ChangeEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var e event.ChangeEvent
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrCorruptSegment, name, lineNo, err)
		}
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrCorruptSegment, name, lineNo, err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan segment %s: %w", name, err)
	}

	return events, nil
}

// segmentFiles lists segment names sorted ascending (oldest first, since
// names encode the UTC hour bucket).
func (s *Store) segmentFiles() ([]string, error) {
	entries, err := os.ReadDir(s.project.SegmentsDir())
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, segmentExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, segmentExt))
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) loadIndex() (*secondary.LedgerIndex, error) {
	data, err := os.ReadFile(s.project.IndexPath())
	if os.IsNotExist(err) {
		return &secondary.LedgerIndex{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	var idx secondary.LedgerIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse index: %w", err)
	}
	return &idx, nil
}

func (s *Store) saveIndex(idx *secondary.LedgerIndex) error {
	return filesystem.WriteJSONAtomic(s.project.IndexPath(), idx)
}

func (s *Store) segmentPath(name string) string {
	return filepath.Join(s.project.SegmentsDir(), name+segmentExt)
}

func (s *Store) consumerPath(name string) string {
	return filepath.Join(s.project.CheckpointsDir(), consumerFilePrefix+name+".json")
}

func (s *Store) compactionPath() string {
	return filepath.Join(s.project.CheckpointsDir(), compactionFile)
}

// hourBucket strips a size-overflow suffix: events-20260828-14-2 and
// events-20260828-14 share the bucket events-20260828-14.
func hourBucket(name string) string {
	parts := strings.Split(name, "-")
	if len(parts) < 3 {
		return name
	}
	return strings.Join(parts[:3], "-")
}

// nextInBucket picks the next overflow name within one hour bucket.
func nextInBucket(active, bucket string) string {
	if active == bucket {
		return bucket + "-2"
	}
	suffix := strings.TrimPrefix(active, bucket+"-")
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return bucket + "-2"
	}
	return fmt.Sprintf("%s-%d", bucket, n+1)
}
