package memory

import (
	"context"
	"log"
	"sync"
	"time"

	"quiz-editor/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Sessions left with an open draft and no connection are kept for
// detachedTTL, then dropped by Reap.
type SessionStore struct {
	factory     app.EditorFactory
	detachedTTL time.Duration
	clock       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*app.Editor
	attached map[string]int
	detached map[string]time.Time
}

func NewSessionStore(factory app.EditorFactory, detachedTTL time.Duration) *SessionStore {
	return &SessionStore{
		factory:     factory,
		detachedTTL: detachedTTL,
		clock:       time.Now,
		sessions:    make(map[string]*app.Editor),
		attached:    make(map[string]int),
		detached:    make(map[string]time.Time),
	}
}

// GetOrCreate returns the session's editor and counts one attachment; pair
// every call with DeleteIfIdle.
func (s *SessionStore) GetOrCreate(sessionID string) *app.Editor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached[sessionID]++
	delete(s.detached, sessionID)
	if editor, ok := s.sessions[sessionID]; ok {
		return editor
	}
	editor := s.factory(sessionID)
	s.sessions[sessionID] = editor
	return editor
}

func (s *SessionStore) Get(sessionID string) (*app.Editor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	editor, ok := s.sessions[sessionID]
	return editor, ok
}

// DeleteIfIdle releases one attachment. Once none remain the session is
// dropped, or, if it holds an open draft, left for Reap.
func (s *SessionStore) DeleteIfIdle(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	editor, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	if s.attached[sessionID] > 1 {
		s.attached[sessionID]--
		return
	}
	delete(s.attached, sessionID)
	if editor.IsIdle() {
		delete(s.sessions, sessionID)
		return
	}
	s.detached[sessionID] = s.clock()
}

// Reap drops sessions that have been detached for longer than detachedTTL,
// discarding their drafts. It returns how many were dropped.
func (s *SessionStore) Reap(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	n := 0
	for id, since := range s.detached {
		if now.Sub(since) < s.detachedTTL {
			continue
		}
		delete(s.detached, id)
		delete(s.sessions, id)
		n++
		log.Printf("session %s: dropped after %s detached", id, s.detachedTTL)
	}
	return n
}
