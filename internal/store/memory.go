package store

import (
	"sort"
	"sync"

	"github.com/quotamail/quotamail/internal/models"
)

// MemoryStore provides an in-memory history store. It is thread-safe and
// supports concurrent access. Intended for tests and single-process setups
// that can afford to lose history on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	changes map[historyKey][]models.ThresholdChange
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		changes: make(map[historyKey][]models.ThresholdChange),
	}
}

// Retrieve reads the full ordered history for a key.
func (s *MemoryStore) Retrieve(user string, dimension models.Dimension) (models.ThresholdHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.NewThresholdHistory(s.changes[historyKey{user, dimension}]...), nil
}

// Append adds one change to the end of the key's history.
func (s *MemoryStore) Append(user string, dimension models.Dimension, change models.ThresholdChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := historyKey{user, dimension}
	s.changes[key] = append(s.changes[key], change)
	return nil
}

// ListUsers returns every user with at least one recorded change, sorted.
func (s *MemoryStore) ListUsers() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	users := make([]string, 0, len(s.changes))
	for key := range s.changes {
		if !seen[key.user] {
			seen[key.user] = true
			users = append(users, key.user)
		}
	}
	sort.Strings(users)
	return users, nil
}

// Clear removes all data from the store
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.changes = make(map[historyKey][]models.ThresholdChange)
	return nil
}

// Stats returns statistics about the store
func (s *MemoryStore) Stats() (StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make(map[string]bool)
	total := 0
	for key, changes := range s.changes {
		users[key.user] = true
		total += len(changes)
	}
	return StoreStats{UserCount: len(users), ChangeCount: total}, nil
}

// Close implements HistoryStore Close (no-op for memory store).
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements the HistoryStore interface
var _ HistoryStore = (*MemoryStore)(nil)
