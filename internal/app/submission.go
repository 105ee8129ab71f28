package app

import (
	"context"
	"errors"
	"time"

	"quiz-proctor/internal/domain"
)

const (
	triggerManual = "manual"
	triggerTimer  = "timer"
)

// Submit sends the answer set once. A call while another is pending makes
// no request and returns domain.ErrSubmitInFlight.
func (s *Session) Submit(ctx context.Context) (domain.SubmissionResult, error) {
	return s.submit(ctx, triggerManual)
}

func (s *Session) submit(ctx context.Context, trigger string) (domain.SubmissionResult, error) {
	s.mu.Lock()
	switch {
	case s.state == domain.StateSubmitting:
		s.unlock()
		return domain.SubmissionResult{}, domain.ErrSubmitInFlight
	case s.state.Terminal():
		s.unlock()
		return domain.SubmissionResult{}, domain.ErrSessionClosed
	}
	// Listeners go first so the submission itself is never a leave attempt.
	s.monitor.Detach()
	s.state = domain.StateSubmitting
	s.retry = false
	payload := s.assembleLocked()
	s.broadcastLocked(domain.SessionEvent{Type: domain.EventState})
	s.unlock()

	result, err := s.results.SubmitResult(ctx, payload)

	s.mu.Lock()
	defer s.unlock()
	if s.state != domain.StateSubmitting {
		// blocked by the backend while the request was in flight
		return domain.SubmissionResult{}, domain.ErrSessionClosed
	}
	if err != nil {
		var blocked *domain.BlockedError
		switch {
		case errors.As(err, &blocked):
			s.blockLocked(nonEmpty(blocked.Reason, BlockedMessage), false)
			return domain.SubmissionResult{}, err
		case errors.Is(err, domain.ErrBlocked):
			s.blockLocked(BlockedMessage, false)
			return domain.SubmissionResult{}, err
		}
		s.state = domain.StateActive
		s.retry = true
		s.monitor.Attach(s.onSignal)
		s.record(domain.JournalSubmitFailed, s.attempts, trigger+": "+err.Error())
		s.broadcastLocked(domain.SessionEvent{Type: domain.EventSubmitError, Error: err.Error(), Retry: true})
		return domain.SubmissionResult{}, err
	}

	s.state = domain.StateClosed
	s.result = &result
	s.record(domain.JournalSubmitted, s.attempts, trigger)
	s.record(domain.JournalClosed, s.attempts, "")
	s.broadcastLocked(domain.SessionEvent{Type: domain.EventResult, Result: &result})
	s.terminateLocked()
	return result, nil
}

// assembleLocked builds the payload from answered questions only, in
// question order.
func (s *Session) assembleLocked() domain.Submission {
	answers := make([]domain.AnswerSubmission, 0, len(s.answers))
	for _, q := range s.questions {
		if optionID, ok := s.answers[q.ID]; ok {
			answers = append(answers, domain.AnswerSubmission{QuestionID: q.ID, OptionID: optionID})
		}
	}
	return domain.Submission{
		TestID:         s.test.ID,
		TelegramID:     s.candidate.TelegramID,
		Answers:        answers,
		ElapsedSeconds: int(s.now().Sub(s.startedAt) / time.Second),
		IsTrial:        s.trial,
	}
}

func nonEmpty(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
