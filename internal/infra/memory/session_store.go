package memory

import (
	"context"
	"sync"
	"time"

	"learn-quiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.AnonSessionStore.
// Each visitor session expires ttl after its last write.
type SessionStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.Mutex
	sessions map[string]*visitorSession
}

type visitorSession struct {
	sittings  map[string]domain.AnonSitting
	tally     domain.AnonTally
	expiresAt time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return NewSessionStoreWithClock(ttl, time.Now)
}

// NewSessionStoreWithClock is test-only for deterministic expiry.
func NewSessionStoreWithClock(ttl time.Duration, now func() time.Time) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		clock:    now,
		sessions: make(map[string]*visitorSession),
	}
}

func (s *SessionStore) LoadSitting(_ context.Context, sessionKey, quizSlug string) (domain.AnonSitting, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.liveLocked(sessionKey)
	if session == nil {
		return domain.AnonSitting{}, false, nil
	}
	sitting, ok := session.sittings[quizSlug]
	if !ok {
		return domain.AnonSitting{}, false, nil
	}
	sitting.Remaining = append([]int64{}, sitting.Remaining...)
	return sitting, true, nil
}

func (s *SessionStore) SaveSitting(_ context.Context, sessionKey string, sitting domain.AnonSitting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.touchLocked(sessionKey)
	sitting.Remaining = append([]int64{}, sitting.Remaining...)
	session.sittings[sitting.QuizSlug] = sitting
	return nil
}

func (s *SessionStore) DeleteSitting(_ context.Context, sessionKey, quizSlug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session := s.liveLocked(sessionKey); session != nil {
		delete(session.sittings, quizSlug)
	}
	return nil
}

func (s *SessionStore) LoadTally(_ context.Context, sessionKey string) (domain.AnonTally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session := s.liveLocked(sessionKey); session != nil {
		return session.tally, nil
	}
	return domain.AnonTally{}, nil
}

func (s *SessionStore) SaveTally(_ context.Context, sessionKey string, tally domain.AnonTally) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(sessionKey).tally = tally
	return nil
}

// liveLocked returns the session if it exists and has not expired, dropping it otherwise.
func (s *SessionStore) liveLocked(sessionKey string) *visitorSession {
	session, ok := s.sessions[sessionKey]
	if !ok {
		return nil
	}
	if s.ttl > 0 && !session.expiresAt.After(s.clock()) {
		delete(s.sessions, sessionKey)
		return nil
	}
	return session
}

func (s *SessionStore) touchLocked(sessionKey string) *visitorSession {
	session := s.liveLocked(sessionKey)
	if session == nil {
		session = &visitorSession{sittings: make(map[string]domain.AnonSitting)}
		s.sessions[sessionKey] = session
	}
	session.expiresAt = s.clock().Add(s.ttl)
	return session
}
