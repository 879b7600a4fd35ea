package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a concurrency-safe, in-memory Store. State is lost on
// restart; it is used when no persistent store module is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[Key]Data

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// NewMemoryStore creates a ready-to-use in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[Key]Data),
		now:      time.Now,
	}
}

// Get returns a copy of the stored data for key.
func (s *MemoryStore) Get(_ context.Context, key Key) (Data, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.sessions[key]
	if !ok {
		return Data{}, nil
	}
	d.Transcript = d.Transcript.Clone()
	return d, nil
}

// Set stores a copy of data for key, assigning an ID and timestamps.
func (s *MemoryStore) Set(_ context.Context, key Key, data Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if prev, ok := s.sessions[key]; ok {
		data.ID = prev.ID
		data.CreatedAt = prev.CreatedAt
	} else {
		if data.ID == "" {
			data.ID = uuid.NewString()
		}
		data.CreatedAt = now
	}
	data.UpdatedAt = now
	data.Transcript = data.Transcript.Clone()

	s.sessions[key] = data
	return nil
}

// Prune removes conversations idle for longer than maxIdle.
func (s *MemoryStore) Prune(_ context.Context, maxIdle time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	pruned := 0
	for key, d := range s.sessions {
		if now.Sub(d.UpdatedAt) > maxIdle {
			delete(s.sessions, key)
			pruned++
		}
	}
	return pruned, nil
}

// Len returns the number of stored conversations.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Interface guards.
var (
	_ Store  = (*MemoryStore)(nil)
	_ Pruner = (*MemoryStore)(nil)
)
