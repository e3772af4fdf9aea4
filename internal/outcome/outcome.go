// Package outcome persists cross-test results in a single JSON file so a
// later test can gate on an earlier test's result (e.g. only run logout when
// login succeeded).
//
// The file is shared mutable state. Writers within one process are
// serialized by a mutex; across worker processes there is no locking and the
// last writer wins. Suites that gate on outcomes must run single-worker
// (executionMode "sequential").
package outcome

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/kuitang/e2ekit/internal/errs"
	"github.com/kuitang/e2ekit/internal/obs"
)

// Store is a file-backed key-value record of test outcomes.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store backed by the JSON file at path. The file is not
// created until the first write.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Read returns the current on-disk record. A missing or unparseable file
// yields an empty record, never an error: a crashed half-written file must
// look like "no prior outcome" to readers.
func (s *Store) Read() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *Store) readLocked() map[string]any {
	record := map[string]any{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return record
	}
	if err := json.Unmarshal(data, &record); err != nil {
		obs.Pkg("outcome").Warn("outcome file unparseable, treating as empty",
			"path", s.path, "error", err.Error())
		return map[string]any{}
	}
	return record
}

// Write merges record into the on-disk state and flushes immediately with
// full-file-rewrite semantics. The backing directory is created if absent.
func (s *Store) Write(record map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.readLocked()
	for k, v := range record {
		merged[k] = v
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrap(errs.IO, "create outcome directory", err)
		}
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return errs.Wrap(errs.IO, "encode outcome record", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return errs.Wrap(errs.IO, "write outcome file", err)
	}
	return nil
}

// WriteKey merges a single key into the record.
func (s *Store) WriteKey(key string, value any) error {
	return s.Write(map[string]any{key: value})
}

// ReadKey returns the value for key and whether it is present.
func (s *Store) ReadKey(key string) (any, bool) {
	v, ok := s.Read()[key]
	return v, ok
}

// Bool returns the value for key as a boolean; absent or non-boolean values
// read as false.
func (s *Store) Bool(key string) bool {
	v, ok := s.ReadKey(key)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// Clear removes the backing file. A missing file is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.IO, "remove outcome file", err)
	}
	return nil
}
