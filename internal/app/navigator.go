package app

import "quiz-proctor/internal/domain"

// inputAllowedLocked reports whether navigation and answers are accepted.
func (s *Session) inputAllowedLocked() error {
	switch {
	case s.state.Terminal():
		return domain.ErrSessionClosed
	case s.state == domain.StateSubmitting:
		return domain.ErrSubmitInFlight
	}
	return nil
}

// SelectAnswer records the single chosen option of a question, replacing any
// earlier choice.
func (s *Session) SelectAnswer(questionID, optionID int64) error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.inputAllowedLocked(); err != nil {
		return err
	}
	idx, ok := s.byID[questionID]
	if !ok {
		return domain.ErrQuestionNotFound
	}
	if !s.questions[idx].HasOption(optionID) {
		return domain.ErrOptionNotFound
	}
	s.answers[questionID] = optionID
	s.broadcastLocked(domain.SessionEvent{Type: domain.EventState})
	return nil
}

// GoNext moves forward one question, clamped to the last one. Requiring an
// answer first is left to the client (see SessionView.CanGoNext).
func (s *Session) GoNext() error {
	return s.move(1)
}

// GoPrevious moves back one question, clamped to the first one.
func (s *Session) GoPrevious() error {
	return s.move(-1)
}

func (s *Session) move(delta int) error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.inputAllowedLocked(); err != nil {
		return err
	}
	next := s.index + delta
	if next < 0 {
		next = 0
	}
	if last := len(s.questions) - 1; next > last {
		next = last
	}
	if next == s.index {
		return nil
	}
	s.index = next
	s.broadcastLocked(domain.SessionEvent{Type: domain.EventState})
	return nil
}
