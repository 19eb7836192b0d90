package memory

import (
	"sync"

	"quiz-attempt-service/internal/attempt"
)

// SessionStore is an in-memory registry of running attempt engines. Every
// connection for the same session id shares one engine; the engine is closed
// when the last holder releases it.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*liveSession
}

type liveSession struct {
	session *attempt.Session
	refs    int
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*liveSession),
	}
}

// Acquire returns the running engine for id, starting it with start when
// none is registered. Each successful call must be paired with Release.
func (s *SessionStore) Acquire(id string, start func() (*attempt.Session, error)) (*attempt.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if live, ok := s.sessions[id]; ok {
		live.refs++
		return live.session, nil
	}
	session, err := start()
	if err != nil {
		return nil, err
	}
	s.sessions[id] = &liveSession{session: session, refs: 1}
	return session, nil
}

func (s *SessionStore) Get(id string) (*attempt.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return live.session, true
}

// Release drops one reference and closes the engine when none remain.
// Closing keeps persisted state, so the session can be resumed later.
func (s *SessionStore) Release(id string) {
	s.mu.Lock()
	live, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	live.refs--
	if live.refs > 0 {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, id)
	s.mu.Unlock()
	live.session.Close()
}

// Remove unregisters and closes the engine regardless of holders.
func (s *SessionStore) Remove(id string) {
	s.mu.Lock()
	live, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if ok {
		live.session.Close()
	}
}

// Len returns the number of running engines.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
