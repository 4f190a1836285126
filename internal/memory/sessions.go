package memory

import (
	"sync"
	"time"

	"github.com/notebase-ai/notebase/internal/domain"
)

// Sessions keys conversation histories by session and bounds their lifetime.
// Memory is process-local: a restart clears it, which is acceptable by
// contract.
type Sessions struct {
	mu       sync.Mutex
	turnsCap int
	ttl      time.Duration
	sessions map[string]*session

	now func() time.Time
}

type session struct {
	history  *History
	lastSeen time.Time
}

func NewSessions(turnsCap int, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Sessions{
		turnsCap: turnsCap,
		ttl:      ttl,
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// Append records a completed turn for the session, creating it on first use.
// Turns are validated before they enter memory; an invalid turn is rejected
// and the session is left untouched.
func (s *Sessions) Append(key string, turn domain.ConversationTurn) error {
	if err := domain.ValidateTurn(turn); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		sess = &session{history: NewHistory(s.turnsCap)}
		s.sessions[key] = sess
	}
	sess.history.Append(turn)
	sess.lastSeen = s.now()
	return nil
}

// Recent returns up to n turns for the session, most recent last.
func (s *Sessions) Recent(key string, n int) []domain.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil
	}
	sess.lastSeen = s.now()
	return sess.history.Recent(n)
}

// All returns every turn the session retains, most recent last.
func (s *Sessions) All(key string) []domain.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil
	}
	sess.lastSeen = s.now()
	return sess.history.Recent(sess.history.Len())
}

// Clear drops the session's history entirely.
func (s *Sessions) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}

// Sweep drops sessions idle past the TTL and returns how many were removed.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for key, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
