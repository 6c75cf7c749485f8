// Package jsonstore provides the flat-file persistence layer.
// Each logical collection lives in one JSON document that is read fully on
// load and rewritten fully on save, using a write-to-temp-then-rename
// discipline so a crash mid-write never leaves a truncated file.
package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Common errors for store operations.
var (
	// ErrPersistence wraps any disk-level failure. It is the only error
	// class callers treat as fatal to the operation in progress.
	ErrPersistence = errors.New("persistence failure")
)

// Document names for every collection the bot owns.
const (
	DocEvents            = "events"
	DocIGNMap            = "ign_map"
	DocBlockedUsers      = "blocked_users"
	DocEventResults      = "event_results"
	DocEventsHistory     = "events_history"
	DocRowTimes          = "row_times"
	DocAbsentUsers       = "absent_users"
	DocNotificationPrefs = "notification_preferences"
)

// envelope versions every document on disk so older shapes can be
// migrated forward on load instead of failing on missing keys.
type envelope struct {
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// currentVersion is the on-disk schema version written by this build.
const currentVersion = 1

// Store reads and writes named JSON documents under a data directory.
// A per-document mutex serializes writers so two near-simultaneous saves
// of the same collection cannot interleave their temp files.
type Store struct {
	dir   string
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %v", ErrPersistence, err)
	}
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

// Dir returns the data directory the store is rooted at.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Load reads the named document into v. A missing file is not an error:
// v is left untouched so the caller's default value stands.
func (s *Store) Load(name string, v any) error {
	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	raw, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug().Str("document", name).Msg("Document not found, using defaults")
			return nil
		}
		return fmt.Errorf("%w: read %s: %v", ErrPersistence, name, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Version > 0 {
		if env.Version > currentVersion {
			return fmt.Errorf("%w: %s has version %d, newer than supported %d",
				ErrPersistence, name, env.Version, currentVersion)
		}
		raw = env.Data
	}
	// Documents written before versioning are bare payloads; fall through
	// and decode them directly.

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrPersistence, name, err)
	}
	return nil
}

// Save writes v as the named document, atomically replacing any previous
// contents. The document is written to a temp file in the same directory,
// synced, then renamed over the target.
func (s *Store) Save(name string, v any) error {
	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrPersistence, name, err)
	}
	raw, err := json.MarshalIndent(envelope{Version: currentVersion, Data: payload}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s envelope: %v", ErrPersistence, name, err)
	}

	target := s.path(name)
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %v", ErrPersistence, name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %v", ErrPersistence, name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync %s: %v", ErrPersistence, name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrPersistence, name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("%w: replace %s: %v", ErrPersistence, name, err)
	}

	log.Debug().Str("document", name).Int("bytes", len(raw)).Msg("Document saved")
	return nil
}
