// Package session keeps the in-memory owner sessions shared by the
// supervisor, the auto-accept engine and the front-end.
package session

import (
	"sort"
	"sync"

	"github.com/talkincode/autoaccept/internal/domain"
)

// Store maps owner identity to session state. Every read returns a copy and
// every write is applied under the lock as one unit.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*domain.OwnerSession
}

func NewStore() *Store {
	return &Store{sessions: make(map[int64]*domain.OwnerSession)}
}

// Get returns a copy of the owner's session.
func (s *Store) Get(ownerID int64) (domain.OwnerSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[ownerID]
	if !ok {
		return domain.OwnerSession{}, false
	}
	return *sess, true
}

// GetOrCreate returns the owner's session, creating a default one if absent.
func (s *Store) GetOrCreate(ownerID int64) domain.OwnerSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.getOrCreateLocked(ownerID)
}

// Update applies fn to the owner's session under the write lock. It returns
// false when the owner has no session; fn is not called in that case.
func (s *Store) Update(ownerID int64, fn func(sess *domain.OwnerSession)) (domain.OwnerSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[ownerID]
	if !ok {
		return domain.OwnerSession{}, false
	}
	fn(sess)
	return *sess, true
}

// Upsert is Update that creates the session first when needed.
func (s *Store) Upsert(ownerID int64, fn func(sess *domain.OwnerSession)) domain.OwnerSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(ownerID)
	fn(sess)
	return *sess
}

// Reset restores the owner's session to defaults without removing it.
func (s *Store) Reset(ownerID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[ownerID]; ok {
		sess.Reset()
	}
}

// Snapshot returns copies of all sessions ordered by owner id.
func (s *Store) Snapshot() []domain.OwnerSession {
	s.mu.RLock()
	out := make([]domain.OwnerSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].OwnerID < out[j].OwnerID })
	return out
}

func (s *Store) getOrCreateLocked(ownerID int64) *domain.OwnerSession {
	sess, ok := s.sessions[ownerID]
	if !ok {
		sess = domain.NewOwnerSession(ownerID)
		s.sessions[ownerID] = sess
	}
	return sess
}
