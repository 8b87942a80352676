// Package progress persists per-item completion state for resumable batch
// runs. The store is a flat JSON object mapping an item key to its status
// and is rewritten after every mutation, so a crash loses at most the item
// that was in flight.
//
// A single process owns the file; concurrent batch runs against the same
// progress file are not supported.
package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const (
	// StatusDone marks a successfully pushed image reference.
	StatusDone = "done"
	// StatusMissing marks a manifest pattern with no file on disk.
	StatusMissing = "missing"

	failedPrefix = "failed: "
)

// DefaultFile is the progress file name used when the config does not
// override it.
const DefaultFile = ".progress.json"

// Store is a durable key -> status map.
type Store struct {
	path    string
	entries map[string]string
}

// Load reads the progress file at path. A missing file yields an empty
// store (first run); malformed content is an error.
func Load(path string) (*Store, error) {
	s := &Store{path: path, entries: make(map[string]string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress file: %w", err)
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, fmt.Errorf("malformed progress file %s: %w", path, err)
	}
	return s, nil
}

// Save rewrites the whole progress file. Keys are emitted in sorted order
// (encoding/json sorts map keys) so diffs between runs stay readable.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write progress file: %w", err)
	}
	return nil
}

// Get returns the status recorded for key, or "" when absent.
func (s *Store) Get(key string) string {
	return s.entries[key]
}

// IsDone reports whether key has already completed.
func (s *Store) IsDone(key string) bool {
	return s.entries[key] == StatusDone
}

// MarkDone records and persists completion of key.
func (s *Store) MarkDone(key string) error {
	s.entries[key] = StatusDone
	return s.Save()
}

// MarkMissing records and persists that no file matched key.
func (s *Store) MarkMissing(key string) error {
	s.entries[key] = StatusMissing
	return s.Save()
}

// MarkFailed records and persists a failure for key, preserving the
// diagnostic message verbatim.
func (s *Store) MarkFailed(key, msg string) error {
	s.entries[key] = failedPrefix + msg
	return s.Save()
}

// Reset drops every entry and persists the empty store, forcing a full
// re-run.
func (s *Store) Reset() error {
	s.entries = make(map[string]string)
	return s.Save()
}

// ResetKeys removes only the named entries, leaving the rest intact. It
// returns the keys that were actually present.
func (s *Store) ResetKeys(keys ...string) ([]string, error) {
	var removed []string
	for _, k := range keys {
		if _, ok := s.entries[k]; ok {
			delete(s.entries, k)
			removed = append(removed, k)
		}
	}
	if err := s.Save(); err != nil {
		return removed, err
	}
	return removed, nil
}

// Len returns the number of recorded entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// Counts tallies entries per terminal status.
func (s *Store) Counts() (done, failed, missing int) {
	for _, v := range s.entries {
		switch {
		case v == StatusDone:
			done++
		case v == StatusMissing:
			missing++
		case strings.HasPrefix(v, "failed"):
			failed++
		}
	}
	return done, failed, missing
}
