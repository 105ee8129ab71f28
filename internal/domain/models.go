package domain

import (
	"fmt"
	"time"
)

// Option is one selectable answer of a question.
type Option struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// Question is immutable once loaded for a session.
type Question struct {
	ID      int64    `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// HasOption reports whether optionID belongs to the question.
func (q Question) HasOption(optionID int64) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// Test is the descriptor of a quiz as served by the external API.
type Test struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	TimeLimitMinutes int    `json:"time_limit"`
	PassingScore     int    `json:"passing_score"`
}

// Candidate is the authenticated user taking a test.
type Candidate struct {
	ID            int64  `json:"id"`
	TelegramID    int64  `json:"telegram_id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	IsBlocked     bool   `json:"is_blocked"`
	BlockedReason string `json:"blocked_reason"`
}

// AnswerSubmission is a single answered question in a result payload.
type AnswerSubmission struct {
	QuestionID int64 `json:"question_id"`
	OptionID   int64 `json:"option_id"`
}

// Submission is the full result payload for the results endpoint.
type Submission struct {
	TestID         int64              `json:"test_id"`
	TelegramID     int64              `json:"telegram_id"`
	Answers        []AnswerSubmission `json:"answers"`
	ElapsedSeconds int                `json:"time_taken"`
	IsTrial        bool               `json:"is_trial"`
}

// SubmissionResult is computed by the external API, never client side.
type SubmissionResult struct {
	Score          float64 `json:"score"`
	IsPassed       bool    `json:"is_passed"`
	CorrectAnswers int     `json:"correct_answers"`
	TotalQuestions int     `json:"total_questions"`
}

// SessionView is the read model handed to clients. UI flags are derived
// from State rather than stored.
type SessionView struct {
	SessionID        string    `json:"sessionId"`
	TestID           int64     `json:"testId"`
	TestTitle        string    `json:"testTitle,omitempty"`
	State            State     `json:"state"`
	CurrentIndex     int       `json:"currentIndex"`
	TotalQuestions   int       `json:"totalQuestions"`
	Question         *Question `json:"question,omitempty"`
	SelectedOptionID int64     `json:"selectedOptionId,omitempty"`
	Answered         int       `json:"answered"`
	RemainingSeconds int       `json:"remainingSeconds"`
	LeaveAttempts    int       `json:"leaveAttempts"`
	IsTrial          bool      `json:"isTrial"`
	PromptVisible    bool      `json:"promptVisible"`
	Submitting       bool      `json:"submitting"`
	Blocked          bool      `json:"blocked"`
	CanGoNext        bool      `json:"canGoNext"`
	CanGoPrevious    bool      `json:"canGoPrevious"`
	RetryAvailable   bool      `json:"retryAvailable"`
	StartedAt        time.Time `json:"startedAt"`
}

// QuestionSetKey identifies the question set served to one candidate.
type QuestionSetKey struct {
	TestID     int64
	TelegramID int64
	Trial      bool
}

func (k QuestionSetKey) String() string {
	return fmt.Sprintf("%d:%d:%t", k.TestID, k.TelegramID, k.Trial)
}

// LeaveAck is the anti-cheat endpoint's reply to a leave notification.
type LeaveAck struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason"`
}
