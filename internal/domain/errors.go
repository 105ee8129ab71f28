package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a session id is unknown or already reaped.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionClosed is returned for input arriving after submit or block.
	ErrSessionClosed = errors.New("quiz session is closed")
	// ErrSubmitInFlight is returned when a submission is already pending.
	ErrSubmitInFlight = errors.New("submission already in flight")
	// ErrTestNotFound indicates the test does not exist or is inactive.
	ErrTestNotFound = errors.New("test not found")
	// ErrCandidateNotFound indicates the API could not resolve the candidate.
	ErrCandidateNotFound = errors.New("candidate not found")
	// ErrNoQuestions indicates the API returned an empty question set.
	ErrNoQuestions = errors.New("test has no questions")
	// ErrQuestionNotFound indicates an answer references an unknown question.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates an answer references an unknown option.
	ErrOptionNotFound = errors.New("option not found")
	// ErrBlocked is the authoritative backend block signal (HTTP 403).
	ErrBlocked = errors.New("candidate is blocked")
)

// BlockedError carries the server-recorded block reason.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	if e.Reason == "" {
		return ErrBlocked.Error()
	}
	return ErrBlocked.Error() + ": " + e.Reason
}

// Is lets errors.Is(err, ErrBlocked) match.
func (e *BlockedError) Is(target error) bool {
	return target == ErrBlocked
}
