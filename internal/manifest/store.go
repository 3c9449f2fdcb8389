package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"bootforge/internal/services"
)

// Store serializes manifest reads and writes for a data directory. All
// mutating operations on a given path must go through one Store instance;
// the mutex is what prevents concurrent builds from losing updates.
type Store struct {
	mu  sync.Mutex
	now func() time.Time
}

// NewStore returns a manifest store using wall-clock time for backups.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// WithClock overrides the backup timestamp source. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

// Load reads and decodes the manifest at path.
func (s *Store) Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "manifest", "load", fmt.Sprintf("%s not found", path), nil)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Decode(data)
}

// Save persists doc at path. A pre-existing file is first copied verbatim
// to a timestamped .bak sibling; backups are never overwritten, so a
// same-second save gets a numeric disambiguator.
func (s *Store) Save(path string, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(path, doc)
}

func (s *Store) saveLocked(path string, doc *Document) error {
	encoded, err := doc.Encode()
	if err != nil {
		return err
	}

	previous, err := os.ReadFile(path)
	switch {
	case err == nil:
		backupPath, err := s.nextBackupPath(path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(backupPath, previous, 0o644); err != nil {
			return fmt.Errorf("write backup: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// First save, nothing to back up.
	default:
		return fmt.Errorf("read existing manifest: %w", err)
	}

	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Update runs fn between Load and Save while holding the store lock, so
// read-modify-write sequences cannot interleave.
func (s *Store) Update(path string, fn func(*Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.Load(path)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.saveLocked(path, doc)
}

func (s *Store) nextBackupPath(path string) (string, error) {
	stamp := s.now().Format("20060102-150405")
	candidate := fmt.Sprintf("%s.bak.%s", path, stamp)
	for n := 1; ; n++ {
		if _, err := os.Stat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		} else if err != nil {
			return "", fmt.Errorf("stat backup candidate: %w", err)
		}
		candidate = fmt.Sprintf("%s.bak.%s-%d", path, stamp, n)
	}
}
