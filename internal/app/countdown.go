package app

import (
	"context"
	"errors"
	"log"
	"time"

	"quiz-proctor/internal/domain"
)

// Tick advances the countdown by one second. It is a no-op unless the
// session is ACTIVE or WARNED; the first tick at zero submits, once.
func (s *Session) Tick(ctx context.Context) {
	s.mu.Lock()
	if !s.state.Counting() || s.expired {
		s.unlock()
		return
	}
	if s.remaining > 0 {
		s.remaining--
		s.broadcastLocked(domain.SessionEvent{Type: domain.EventState})
	}
	if s.remaining > 0 {
		s.unlock()
		return
	}
	s.expired = true
	s.unlock()

	if _, err := s.submit(ctx, triggerTimer); err != nil && !errors.Is(err, domain.ErrSubmitInFlight) {
		log.Printf("session %s: forced submit failed: %v", s.id, err)
	}
}

// Run drives Tick until ctx ends or the session terminates.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}
