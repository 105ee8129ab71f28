package memory

import (
	"context"
	"sync"

	"quiz-proctor/internal/domain"
)

// Journal keeps proctoring entries in process (default backend, and tests).
type Journal struct {
	mu      sync.Mutex
	entries []domain.JournalEntry
}

func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) Append(_ context.Context, entry domain.JournalEntry) error {
	j.mu.Lock()
	j.entries = append(j.entries, entry)
	j.mu.Unlock()
	return nil
}

// Entries returns a copy of the entries, optionally filtered by session.
func (j *Journal) Entries(sessionID string) []domain.JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]domain.JournalEntry, 0, len(j.entries))
	for _, e := range j.entries {
		if sessionID == "" || e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out
}
