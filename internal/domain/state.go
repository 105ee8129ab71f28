package domain

import "time"

// State is the proctoring state of a quiz session.
type State string

const (
	StateActive     State = "ACTIVE"
	StateWarned     State = "WARNED"
	StateSubmitting State = "SUBMITTING"
	StateClosed     State = "CLOSED"
	StateBlocked    State = "BLOCKED"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateBlocked
}

// Counting reports whether the countdown runs in this state.
func (s State) Counting() bool {
	return s == StateActive || s == StateWarned
}

// EventType names the messages a session publishes to its subscribers.
type EventType string

const (
	EventState       EventType = "state"
	EventPrompt      EventType = "prompt"
	EventResult      EventType = "result"
	EventBlocked     EventType = "blocked"
	EventSubmitError EventType = "submitError"
	EventTerminate   EventType = "terminate"
)

// SessionEvent is published to subscribers after every transition.
type SessionEvent struct {
	Type   EventType         `json:"type"`
	View   SessionView       `json:"view"`
	Prompt string            `json:"prompt,omitempty"`
	Result *SubmissionResult `json:"result,omitempty"`
	Reason string            `json:"reason,omitempty"`
	Error  string            `json:"error,omitempty"`
	Retry  bool              `json:"retry,omitempty"`
}

// JournalKind classifies proctoring journal entries.
type JournalKind string

const (
	JournalStarted      JournalKind = "session_started"
	JournalLeaveAttempt JournalKind = "leave_attempt"
	JournalWarned       JournalKind = "warned"
	JournalLeaveCancel  JournalKind = "leave_cancelled"
	JournalBlocked      JournalKind = "blocked"
	JournalSubmitted    JournalKind = "submitted"
	JournalSubmitFailed JournalKind = "submit_failed"
	JournalClosed       JournalKind = "closed"
)

// JournalEntry is an append-only audit record of a session transition.
type JournalEntry struct {
	SessionID  string      `json:"sessionId"`
	TestID     int64       `json:"testId"`
	TelegramID int64       `json:"telegramId"`
	Kind       JournalKind `json:"kind"`
	Attempts   int         `json:"attempts"`
	Detail     string      `json:"detail,omitempty"`
	At         time.Time   `json:"at"`
}
