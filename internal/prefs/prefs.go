// Package prefs provides a scoped persistent key-value store for in-progress
// operator selections. It is injected as a collaborator, never consulted as
// ambient global state: callers load on entry and save on change.
package prefs

import (
	"context"
	"sync"
)

// Store persists small string values under a scope and key.
type Store interface {
	Load(ctx context.Context, scope, key string) (value string, ok bool, err error)
	Save(ctx context.Context, scope, key, value string) error
	Delete(ctx context.Context, scope, key string) error
	DeleteScope(ctx context.Context, scope string) error
}

// MemoryStore is an in-memory Store for tests and single-process use.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]string)}
}

// Load reads a value.
func (s *MemoryStore) Load(ctx context.Context, scope, key string) (string, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys, ok := s.data[scope]
	if !ok {
		return "", false, nil
	}
	value, ok := keys[key]
	return value, ok, nil
}

// Save writes a value.
func (s *MemoryStore) Save(ctx context.Context, scope, key, value string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, ok := s.data[scope]
	if !ok {
		keys = make(map[string]string)
		s.data[scope] = keys
	}
	keys[key] = value
	return nil
}

// Delete removes one key.
func (s *MemoryStore) Delete(ctx context.Context, scope, key string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if keys, ok := s.data[scope]; ok {
		delete(keys, key)
	}
	return nil
}

// DeleteScope removes every key in a scope.
func (s *MemoryStore) DeleteScope(ctx context.Context, scope string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, scope)
	return nil
}
