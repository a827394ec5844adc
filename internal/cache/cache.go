// Package cache is the persistent summary cache: fingerprint -> summary
// text. Identical content reuses a cached summary even when moved or
// renamed, and repeated runs over an unchanged tree issue zero
// summarization calls.
package cache

import (
	"fmt"
	"time"
)

// Entry is one persisted cache record. Entries are never mutated in place;
// changed content produces a new fingerprint and thus a new entry.
type Entry struct {
	Summary     string    `json:"summary"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Store is the summary cache contract. Reads may be concurrent; writes are
// serialized by the implementation.
type Store interface {
	// Get returns the entry for a fingerprint, if present.
	Get(fingerprint string) (Entry, bool, error)

	// Put records a summary for a fingerprint. Writing the same value
	// twice is a no-op; writing a different value for an existing key
	// returns *ConsistencyError, since fingerprints are content-derived
	// and a conflicting value signals a hashing defect.
	Put(fingerprint, summary string) error

	// Prune removes every entry whose key is absent from live and
	// returns how many entries were removed.
	Prune(live map[string]bool) (int, error)

	Close() error
}

// ConsistencyError reports a conflicting Put for an existing fingerprint.
// The driver aborts the run on it: it indicates a hashing bug, not a
// legitimate update path.
type ConsistencyError struct {
	Fingerprint string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("cache consistency violation: conflicting summary for fingerprint %s", e.Fingerprint)
}
