package privatestate

import (
	"context"
	"sort"
	"sync"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/types"
)

// Compile-time interface check.
var _ bboard.PrivateStateProvider = (*MemoryStore)(nil)

// MemoryStore keeps private states in memory.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]types.PrivateState
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]types.PrivateState)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*types.PrivateState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ps, ok := s.states[key]
	if !ok {
		return nil, nil
	}
	ps.SecretKey = append([]byte(nil), ps.SecretKey...)
	return &ps, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, state types.PrivateState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state.SecretKey = append([]byte(nil), state.SecretKey...)
	s.states[key] = state
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key)
	return nil
}

// Keys lists the stored keys in order.
func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.states))
	for k := range s.states {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
