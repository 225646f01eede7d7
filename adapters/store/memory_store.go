package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

type memoryEntry struct {
	session   *core.Session
	expiresAt time.Time
}

// MemoryStore is an in-memory implementation of the Store interface
type MemoryStore struct {
	sessions map[string]memoryEntry
	now      func() time.Time
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory store. Expired slots are treated as
// missing on read and dropped by Sweep.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		now:      now,
	}
}

var _ ports.Store = (*MemoryStore)(nil)

// Load returns a copy of the stored session
func (s *MemoryStore) Load(ctx context.Context, id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sessions[id]
	if !ok || !s.now().Before(entry.expiresAt) {
		return nil, core.ErrSessionNotFound
	}
	return entry.session.Clone(), nil
}

// Save stores a copy of the session for ttl
func (s *MemoryStore) Save(ctx context.Context, session *core.Session, ttl time.Duration) error {
	if ttl <= 0 {
		return s.Delete(ctx, session.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = memoryEntry{
		session:   session.Clone(),
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// Delete removes a session slot; deleting a missing slot is not an error
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Sweep drops expired slots
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, entry := range s.sessions {
		if !now.Before(entry.expiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Clear removes all data from the store
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]memoryEntry)
}
