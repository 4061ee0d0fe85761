// Package store persists user feedback in a single JSON document. Entries are
// only ever appended.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/logging"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

// FileName is the store document inside the data directory.
const FileName = "store.json"

// timeLayout is UTC ISO-8601 with a trailing Z.
const timeLayout = "2006-01-02T15:04:05.000000Z"

type document struct {
	Feedback []schema.FeedbackEntry `json:"feedback"`
}

// Store is safe for concurrent use within one process.
type Store struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// Open returns a store rooted at dir, creating dir if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}
	return &Store{path: filepath.Join(dir, FileName), now: time.Now}, nil
}

// Path is the location of the backing document.
func (s *Store) Path() string { return s.path }

// Append stamps e with the current UTC time and appends it. The stamped entry
// is returned.
func (s *Store) Append(e schema.FeedbackEntry) (schema.FeedbackEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	e.CreatedAt = s.now().UTC().Format(timeLayout)
	doc.Feedback = append(doc.Feedback, e)
	if err := s.save(doc); err != nil {
		return schema.FeedbackEntry{}, err
	}
	return e, nil
}

// List returns every entry in insertion order. A missing store is empty.
func (s *Store) List() []schema.FeedbackEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load().Feedback
}

// load treats a missing or unreadable document as empty.
func (s *Store) load() document {
	doc := document{Feedback: []schema.FeedbackEntry{}}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.New("store").Warn("reading feedback store", "path", s.path, "err", err)
		}
		return doc
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		logging.New("store").Warn("feedback store is not valid JSON, starting empty", "path", s.path, "err", err)
		return document{Feedback: []schema.FeedbackEntry{}}
	}
	if doc.Feedback == nil {
		doc.Feedback = []schema.FeedbackEntry{}
	}
	return doc
}

// save writes through a temp file so a crash never leaves a torn document.
func (s *Store) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".store-*.json")
	if err != nil {
		return fmt.Errorf("store: save: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("store: save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: save: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: save: %w", err)
	}
	return nil
}
