package redis

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"quiz-proctor/internal/app"
	"quiz-proctor/internal/domain"
)

// SessionStore is a Redis-aware implementation of SessionRepository.
// Notes:
//   - Live sessions stay in a local map; the countdown and the integrity
//     monitor are in-process.
//   - Redis holds the latest view of every session under
//     proctor:session:{id}, refreshed on each session event, so that other
//     instances and operators can inspect progress.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
	cancels  map[string]func()
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
		cancels:  make(map[string]func()),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	id := session.ID()
	s.writeSnapshot(id, session.View())

	events, cancel := session.Subscribe()
	s.mu.Lock()
	if prev, ok := s.cancels[id]; ok {
		prev()
	}
	s.sessions[id] = session
	s.cancels[id] = cancel
	s.mu.Unlock()

	go s.project(id, events)
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	cancel, ok := s.cancels[sessionID]
	delete(s.sessions, sessionID)
	delete(s.cancels, sessionID)
	s.mu.Unlock()

	if ok {
		cancel()
	}
	// best-effort
	_ = s.client.Del(context.Background(), s.key(sessionID)).Err()
}

// Snapshot reads the last projected view of a session, which may be owned
// by another instance.
func (s *SessionStore) Snapshot(ctx context.Context, sessionID string) (domain.SessionView, bool) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		return domain.SessionView{}, false
	}
	var view domain.SessionView
	if err := json.Unmarshal(raw, &view); err != nil {
		return domain.SessionView{}, false
	}
	return view, true
}

func (s *SessionStore) project(sessionID string, events <-chan domain.SessionEvent) {
	for ev := range events {
		s.mu.RLock()
		_, live := s.sessions[sessionID]
		s.mu.RUnlock()
		if !live {
			continue
		}
		s.writeSnapshot(sessionID, ev.View)
	}
}

func (s *SessionStore) writeSnapshot(sessionID string, view domain.SessionView) {
	payload, err := json.Marshal(view)
	if err != nil {
		log.Printf("session %s: encode snapshot: %v", sessionID, err)
		return
	}
	// best-effort liveness marker and progress view
	_ = s.client.Set(context.Background(), s.key(sessionID), payload, s.ttl).Err()
}

func (s *SessionStore) key(sessionID string) string {
	return "proctor:session:" + sessionID
}
