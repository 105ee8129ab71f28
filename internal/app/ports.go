package app

import (
	"context"

	"quiz-proctor/internal/domain"
)

// QuestionSource loads the question set for a candidate. Forget drops a
// set once its session ends so the next attempt goes back to the API.
type QuestionSource interface {
	GetQuestions(ctx context.Context, key domain.QuestionSetKey) ([]domain.Question, error)
	Forget(ctx context.Context, key domain.QuestionSetKey) error
}

// CandidateDirectory resolves the candidate and the test before a session starts.
type CandidateDirectory interface {
	Authenticate(ctx context.Context, telegramID int64, firstName, lastName string) (domain.Candidate, error)
	GetTest(ctx context.Context, testID int64) (domain.Test, error)
}

// ResultsAPI accepts the final answer set and grades it.
type ResultsAPI interface {
	SubmitResult(ctx context.Context, submission domain.Submission) (domain.SubmissionResult, error)
}

// AntiCheatAPI receives leave and block notifications. Both calls are
// best-effort from the session's point of view.
type AntiCheatAPI interface {
	NotifyLeaveAttempt(ctx context.Context, testID, telegramID int64, attempts int) (domain.LeaveAck, error)
	BlockUser(ctx context.Context, testID, telegramID int64, reason string) error
}

// EventJournal appends proctoring audit records.
type EventJournal interface {
	Append(ctx context.Context, entry domain.JournalEntry) error
}

// Host is the shell embedding the quiz page (e.g. a Telegram mini-app).
// Close must not block; it reports false when no host shell is available.
type Host interface {
	Close(reason string) bool
}

// SessionRepository abstracts how live sessions are registered (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

type teeJournal []EventJournal

// TeeJournal fans entries out to every journal, returning the first error.
func TeeJournal(journals ...EventJournal) EventJournal {
	out := make(teeJournal, 0, len(journals))
	for _, j := range journals {
		if j != nil {
			out = append(out, j)
		}
	}
	return out
}

func (t teeJournal) Append(ctx context.Context, entry domain.JournalEntry) error {
	var first error
	for _, j := range t {
		if err := j.Append(ctx, entry); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type discardJournal struct{}

func (discardJournal) Append(context.Context, domain.JournalEntry) error { return nil }
