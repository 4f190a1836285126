package jobs

import (
	"context"
	"log"
)

// SessionSweeper drops conversation sessions idle past their TTL so process
// memory stays bounded across many sessions.
type SessionSweeper struct {
	sessions SessionStore
}

// SessionStore is the slice of the memory registry the sweeper needs.
type SessionStore interface {
	Sweep() int
	Len() int
}

// NewSessionSweeper creates a SessionSweeper over the given registry.
func NewSessionSweeper(sessions SessionStore) *SessionSweeper {
	return &SessionSweeper{sessions: sessions}
}

// ProcessJobs runs one sweep pass.
func (s *SessionSweeper) ProcessJobs(ctx context.Context) error {
	if removed := s.sessions.Sweep(); removed > 0 {
		log.Printf("session sweeper: removed %d idle sessions, %d remain", removed, s.sessions.Len())
	}
	return nil
}
