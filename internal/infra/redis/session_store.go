package redis

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-editor/internal/app"
)

// SessionStore keeps editors in process and marks each live session in Redis
// so other instances and operators can see which sessions are open. The key
// TTL is refreshed on every lookup and again when the last connection of a
// drafting session goes away; Reap drops detached sessions whose key expired.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	factory  app.EditorFactory
	mu       sync.RWMutex
	sessions map[string]*app.Editor
	attached map[string]int
	detached map[string]struct{}
}

func NewSessionStore(client *redis.Client, ttl time.Duration, factory app.EditorFactory) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		factory:  factory,
		sessions: make(map[string]*app.Editor),
		attached: make(map[string]int),
		detached: make(map[string]struct{}),
	}
}

// GetOrCreate returns the session's editor and counts one attachment; pair
// every call with DeleteIfIdle.
func (s *SessionStore) GetOrCreate(sessionID string) *app.Editor {
	s.mu.Lock()
	defer s.mu.Unlock()
	editor, ok := s.sessions[sessionID]
	if !ok {
		editor = s.factory(sessionID)
		s.sessions[sessionID] = editor
	}
	s.attached[sessionID]++
	delete(s.detached, sessionID)
	s.mark(sessionID)
	return editor
}

func (s *SessionStore) Get(sessionID string) (*app.Editor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	editor, ok := s.sessions[sessionID]
	if ok {
		s.mark(sessionID)
	}
	return editor, ok
}

// DeleteIfIdle releases one attachment. Once none remain an idle session is
// dropped with its key; a drafting one is kept until its key expires.
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
	if !editor.IsIdle() {
		s.detached[sessionID] = struct{}{}
		s.mark(sessionID)
		return
	}
	delete(s.sessions, sessionID)
	if err := s.client.Del(context.Background(), Key(sessionID)).Err(); err != nil {
		log.Printf("session %s: clear liveness: %v", sessionID, err)
	}
}

// Reap drops detached sessions whose liveness key has expired, discarding
// their drafts. Sessions are kept when Redis cannot be reached.
func (s *SessionStore) Reap(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id := range s.detached {
		live, err := s.client.Exists(ctx, Key(id)).Result()
		if err != nil {
			log.Printf("session %s: check liveness: %v", id, err)
			return n
		}
		if live > 0 {
			continue
		}
		delete(s.detached, id)
		delete(s.sessions, id)
		n++
		log.Printf("session %s: dropped after liveness expired", id)
	}
	return n
}

// Key is the liveness key of a session.
func Key(sessionID string) string {
	return "editor:session:" + sessionID
}

// best-effort liveness marker
func (s *SessionStore) mark(sessionID string) {
	if err := s.client.Set(context.Background(), Key(sessionID), "1", s.ttl).Err(); err != nil {
		log.Printf("session %s: mark liveness: %v", sessionID, err)
	}
}
