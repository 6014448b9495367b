// Package document implements the metadata document store: a single
// versioned JSON collection of library records persisted as one file.
//
// Mutate is the only place the shared document changes. It holds a
// process-wide mutex for the whole read-modify-write cycle and commits
// via write-to-temp-then-atomic-rename, so concurrent mutations are
// never lost and a concurrent reader never observes a half-written
// file. Reads are snapshot reads of the last committed collection.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tracklib/tracklib/internal/library"
)

const fileMode = 0o644

// CorruptionHook is called when the on-disk document cannot be parsed.
// The store degrades to an empty collection but the failure must not
// be masked as "empty library".
type CorruptionHook func(err error)

type Option func(*Store)

// WithCorruptionHook installs the hook invoked on unreadable or
// corrupt document content.
func WithCorruptionHook(h CorruptionHook) Option {
	return func(s *Store) { s.onCorrupt = h }
}

// Store is the single source of truth for which blobs are live.
type Store struct {
	path      string
	onCorrupt CorruptionHook

	mu sync.Mutex // serializes Mutate end to end

	snapMu  sync.RWMutex // guards the committed snapshot
	records []library.Record
}

// Open loads the document at path. A missing file is an empty library;
// corrupt content soft-fails to empty and fires the corruption hook.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{path: path}
	for _, opt := range opts {
		opt(s)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// First run: nothing persisted yet.
	case err != nil:
		s.corrupt(fmt.Errorf("reading document %s: %w", path, err))
	default:
		var records []library.Record
		if jsonErr := json.Unmarshal(data, &records); jsonErr != nil {
			s.corrupt(fmt.Errorf("parsing document %s: %w", path, jsonErr))
		} else {
			s.records = records
		}
	}

	return s, nil
}

func (s *Store) corrupt(err error) {
	if s.onCorrupt != nil {
		s.onCorrupt(err)
	}
}

// List returns a snapshot of the current collection. Never fails;
// the result is always non-nil and safe for the caller to mutate.
func (s *Store) List() []library.Record {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()

	out := make([]library.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	return out
}

// Get returns the record with the given id or ErrNotFound.
func (s *Store) Get(id string) (library.Record, error) {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()

	for _, r := range s.records {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return library.Record{}, library.ErrNotFound
}

// Count returns the number of records in the committed snapshot.
func (s *Store) Count() int {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return len(s.records)
}

// MutateFunc transforms the collection. It receives a private copy and
// returns the collection to commit; returning an error aborts the
// mutation with the document untouched.
type MutateFunc func(records []library.Record) ([]library.Record, error)

// Mutate applies fn and persists the result atomically. The in-memory
// snapshot is swapped only after the rename lands, so either the whole
// mutation is visible or none of it is.
func (s *Store) Mutate(fn MutateFunc) ([]library.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.List() // deep copy, fn owns it

	updated, err := fn(working)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		updated = []library.Record{}
	}

	if err := s.persist(updated); err != nil {
		return nil, err
	}

	s.snapMu.Lock()
	s.records = updated
	s.snapMu.Unlock()

	return updated, nil
}

// persist writes the collection to a temp file in the document's
// directory and renames it over the final path.
func (s *Store) persist(records []library.Record) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating document directory: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".library-*.json")
	if err != nil {
		return fmt.Errorf("creating temp document: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp document: %w", err)
	}
	if err := os.Chmod(tmpPath, fileMode); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp document: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("committing document: %w", err)
	}
	return nil
}

// Insert appends a record to the collection.
func (s *Store) Insert(rec library.Record) error {
	_, err := s.Mutate(func(records []library.Record) ([]library.Record, error) {
		return append(records, rec), nil
	})
	return err
}

// UpdateFields applies a partial update to the record with the given
// id and returns the committed record. Unknown id leaves the document
// untouched and returns ErrNotFound.
func (s *Store) UpdateFields(id string, u library.Update) (library.Record, error) {
	var updated library.Record
	_, err := s.Mutate(func(records []library.Record) ([]library.Record, error) {
		for i := range records {
			if records[i].ID == id {
				u.ApplyTo(&records[i])
				updated = records[i].Clone()
				return records, nil
			}
		}
		return nil, library.ErrNotFound
	})
	if err != nil {
		return library.Record{}, err
	}
	return updated, nil
}

// Remove deletes the record with the given id and returns it.
func (s *Store) Remove(id string) (library.Record, error) {
	var removed library.Record
	_, err := s.Mutate(func(records []library.Record) ([]library.Record, error) {
		for i := range records {
			if records[i].ID == id {
				removed = records[i].Clone()
				return append(records[:i], records[i+1:]...), nil
			}
		}
		return nil, library.ErrNotFound
	})
	if err != nil {
		return library.Record{}, err
	}
	return removed, nil
}
