package approval

import (
	"context"
	"sync"
	"time"
)

// Store persists approval requests.
type Store interface {
	Create(ctx context.Context, req *Request) error
	Get(ctx context.Context, id string) (*Request, error)
	Update(ctx context.Context, req *Request) error
	ListPending(ctx context.Context, worldID string) ([]*Request, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// MemoryStore is a thread-safe in-memory implementation of Store.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]*Request
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory approval store for testing or
// single-instance deployments.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[string]*Request),
	}
}

// Create stores an approval request in memory.
func (s *MemoryStore) Create(_ context.Context, req *Request) error {
	if req == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req.clone()
	return nil
}

// Get returns an approval request by ID, or nil if not found.
func (s *MemoryStore) Get(_ context.Context, id string) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	return req.clone(), nil
}

// Update replaces an existing approval request in memory.
func (s *MemoryStore) Update(_ context.Context, req *Request) error {
	if req == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req.clone()
	return nil
}

// ListPending returns all pending, non-expired approval requests for the
// specified world (all worlds when worldID is empty).
func (s *MemoryStore) ListPending(_ context.Context, worldID string) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Request
	now := time.Now()
	for _, req := range s.requests {
		if req.Status != StatusPending {
			continue
		}
		if !req.ExpiresAt.IsZero() && req.ExpiresAt.Before(now) {
			continue
		}
		if worldID != "" && req.WorldID != worldID {
			continue
		}
		result = append(result, req.clone())
	}
	return result, nil
}

// Prune removes approval requests older than the specified duration and
// returns the count removed.
func (s *MemoryStore) Prune(_ context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var pruned int64
	for id, req := range s.requests {
		if req.CreatedAt.Before(cutoff) {
			delete(s.requests, id)
			pruned++
		}
	}
	return pruned, nil
}
