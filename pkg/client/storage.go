package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/tendant/simple-auth/pkg/authinfo"
)

// Snapshot is the persisted projection of the mirrored state. The
// credential inside renormalizes against the clock on load, so a snapshot
// that lapsed while offline comes back degraded, never resurrected.
type Snapshot struct {
	Front authinfo.FrontAuthenticationInfo `json:"front"`
	Token string                           `json:"token,omitempty"`
}

// Storage persists snapshots across restarts and connectivity loss.
type Storage interface {
	Save(snapshot Snapshot) error
	Load() (Snapshot, bool, error)
	Clear() error
}

// InMemStorage keeps the snapshot in memory; useful for tests and
// short-lived processes.
type InMemStorage struct {
	mu       sync.Mutex
	snapshot *Snapshot
}

// NewInMemStorage creates an empty in-memory storage.
func NewInMemStorage() *InMemStorage {
	return &InMemStorage{}
}

func (s *InMemStorage) Save(snapshot Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = &snapshot
	return nil
}

func (s *InMemStorage) Load() (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return Snapshot{}, false, nil
	}
	return *s.snapshot, true, nil
}

func (s *InMemStorage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = nil
	return nil
}

// FileStorage persists the snapshot as a JSON file, the local-storage
// equivalent for non-browser clients.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

// NewFileStorage creates a file storage at the given path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (s *FileStorage) Save(snapshot Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func (s *FileStorage) Load() (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, true, nil
}

func (s *FileStorage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	return nil
}
