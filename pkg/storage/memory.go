package storage

import (
	"sync"
)

// MemoryStore implements Store with an in-memory tree. It is used for
// tests and for clients that do not need pings to survive a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	tree any
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tree: make(map[string]any)}
}

// Get returns a copy of the value at path
func (s *MemoryStore) Get(path []string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deepCopy(getValueFromPath(s.tree, path)), nil
}

// Update applies transform at path
func (s *MemoryStore) Update(path []string, transform TransformFn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := updateNestedValue(s.tree, path, transform)
	if err != nil {
		return err
	}
	if root == nil {
		root = make(map[string]any)
	}
	s.tree = root
	return nil
}

// Delete removes the value at path
func (s *MemoryStore) Delete(path []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(path) == 0 {
		s.tree = make(map[string]any)
		return nil
	}
	s.tree = deleteNestedValue(s.tree, path)
	return nil
}
