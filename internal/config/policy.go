package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy holds the coordinator tunables, loaded from .reeve/policy.yaml.
// Missing file means defaults; a present-but-invalid file is an error.
type Policy struct {
	MaxSegmentBytes int64 `yaml:"max_segment_bytes"`
	CompactionDays  int   `yaml:"compaction_days"`
	LockTTLMS       int64 `yaml:"lock_ttl_ms"`
}

// DefaultPolicy returns the built-in tunables.
func DefaultPolicy() Policy {
	return Policy{
		MaxSegmentBytes: 1 << 20, // 1 MiB per segment before size rotation
		CompactionDays:  14,
		LockTTLMS:       30 * 60 * 1000, // 30 minutes
	}
}

// LoadPolicy reads policy.yaml from the project, falling back to defaults
// for the file as a whole and for any field left at zero.
func LoadPolicy(p ProjectContext) (Policy, error) {
	policy := DefaultPolicy()

	data, err := os.ReadFile(p.PolicyPath())
	if os.IsNotExist(err) {
		return policy, nil
	}
	if err != nil {
		return policy, fmt.Errorf("failed to read policy: %w", err)
	}

	var loaded Policy
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return policy, fmt.Errorf("failed to parse policy: %w", err)
	}

	if loaded.MaxSegmentBytes > 0 {
		policy.MaxSegmentBytes = loaded.MaxSegmentBytes
	}
	if loaded.CompactionDays > 0 {
		policy.CompactionDays = loaded.CompactionDays
	}
	if loaded.LockTTLMS > 0 {
		policy.LockTTLMS = loaded.LockTTLMS
	}

	return policy, nil
}

// LockTTL returns the lock TTL as a duration.
func (p Policy) LockTTL() time.Duration {
	return time.Duration(p.LockTTLMS) * time.Millisecond
}
