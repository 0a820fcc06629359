package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gowebpki/jcs"
)

// idHexLen is the length of the short hex digest used as event identity.
const idHexLen = 12

// identityFields is the subset of an event that determines its identity.
// Field ordering in the struct does not matter: the JSON form is passed
// through RFC 8785 canonicalization before hashing.
type identityFields struct {
	Type   Type     `json:"type"`
	RepoID string   `json:"repo_id"`
	Commit string   `json:"commit"`
	Paths  []string `json:"paths"`
}

// DeriveID computes the content-derived identity for an event: a short hex
// SHA-256 digest over the canonical JSON form of (type, repo_id, commit,
// sorted paths). Two events with equal identity fields always share an ID,
// independent of path ordering.
func DeriveID(typ Type, repoID, commit string, paths []string) (string, error) {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	raw, err := json.Marshal(identityFields{
		Type:   typ,
		RepoID: repoID,
		Commit: commit,
		Paths:  sorted,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal identity fields: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize identity fields: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:idHexLen], nil
}
