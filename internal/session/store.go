package session

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Store holds the live sessions by id
type Store struct {
	deps     Deps
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewStore creates a session store whose sessions share deps
func NewStore(deps Deps) *Store {
	return &Store{
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

func (s *Store) Create() *Session {
	id := uuid.NewString()
	session := New(id, s.deps)

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	log.Printf("[SESSION] Created session: id=%s facilities=%d", id, len(s.deps.Facilities))
	return session
}

// Get returns nil when the session does not exist
func (s *Store) Get(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// Delete removes and closes a session. It reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return false
	}
	session.Close()
	log.Printf("[SESSION] Deleted session: id=%s", id)
	return true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CloseAll closes and removes every session
func (s *Store) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}
