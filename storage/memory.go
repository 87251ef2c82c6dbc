package storage

import (
	"context"
	"fmt"
	"sync"

	"agentworld/core"
)

// MemoryStore is a volatile core.Store implementation keeping worlds in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo servers. Each stored and returned world is cloned
// to prevent external mutation of internal state.
type MemoryStore struct {
	mu     sync.RWMutex
	worlds map[string]*core.World
}

var _ core.Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty in-memory world store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{worlds: make(map[string]*core.World)}
}

// SaveWorld stores a clone of the provided world snapshot.
func (s *MemoryStore) SaveWorld(_ context.Context, w *core.World) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worlds[w.ID] = w.Clone()
	return nil
}

// LoadWorld returns a clone of the stored world, or (nil, nil) when absent.
func (s *MemoryStore) LoadWorld(_ context.Context, id string) (*core.World, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.worlds[id]
	if !ok {
		return nil, nil
	}
	return w.Clone(), nil
}

// DeleteWorld removes a world and reports whether it existed.
func (s *MemoryStore) DeleteWorld(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.worlds[id]; !ok {
		return false, nil
	}
	delete(s.worlds, id)
	return true, nil
}

// ListWorlds returns listing views of every stored world.
func (s *MemoryStore) ListWorlds(_ context.Context) ([]core.WorldInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.WorldInfo, 0, len(s.worlds))
	for _, w := range s.worlds {
		out = append(out, w.Info())
	}
	return out, nil
}

// SaveAgent upserts one agent record inside the stored world snapshot.
func (s *MemoryStore) SaveAgent(_ context.Context, worldID string, a *core.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.worlds[worldID]
	if !ok {
		return fmt.Errorf("save agent: world %s not found", worldID)
	}
	w.Agents[a.ID] = a.Clone()
	return nil
}

// LoadAllAgents returns clones of every agent stored for the world.
func (s *MemoryStore) LoadAllAgents(_ context.Context, worldID string) ([]*core.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.worlds[worldID]
	if !ok {
		return nil, nil
	}
	return w.AgentList(), nil
}

// DeleteAgent removes one agent and reports whether it existed.
func (s *MemoryStore) DeleteAgent(_ context.Context, worldID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.worlds[worldID]
	if !ok {
		return false, nil
	}
	if _, ok := w.Agents[id]; !ok {
		return false, nil
	}
	delete(w.Agents, id)
	return true, nil
}

// Close implements core.Store; a memory store has nothing to release.
func (s *MemoryStore) Close() error { return nil }
