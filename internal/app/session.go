package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"quiz-proctor/internal/domain"
)

const (
	defaultMaxLeaveAttempts = 2
	defaultTickInterval     = time.Second
	defaultNotifyTimeout    = 10 * time.Second
)

// Block reasons and prompts shown to the candidate.
const (
	ReasonLeaveConfirmed = "Test tark etildi (cheating)"
	ReasonDevTools       = "DevTools ochishga urinish (cheating)"
	LeavePrompt          = "Test sahifasini tark etmoqchimisiz? Yana bir urinishda siz block qilinasiz."
	BlockedMessage       = "Siz block qilingansiz"
)

// LeaveAttemptsReason is the block reason once the attempt threshold is hit.
func LeaveAttemptsReason(attempts int) string {
	return fmt.Sprintf("%s - %d marta urinish", ReasonLeaveConfirmed, attempts)
}

// SessionConfig describes one candidate's quiz session.
type SessionConfig struct {
	ID        string
	Test      domain.Test
	Candidate domain.Candidate
	Trial     bool
	Questions []domain.Question

	MaxLeaveAttempts int
	TickInterval     time.Duration
	// DedupWindow collapses a blur and a beforeunload arriving within the
	// window into one leave attempt. Zero counts every event.
	DedupWindow   time.Duration
	NotifyTimeout time.Duration

	// Now is injectable for deterministic elapsed-time tests.
	Now        func() time.Time
	OnTerminal func(sessionID string)
}

// SessionDeps are the external collaborators of a session.
type SessionDeps struct {
	Results   ResultsAPI
	AntiCheat AntiCheatAPI
	Journal   EventJournal
}

type leaveMark struct {
	kind EventKind
	at   time.Time
}

// Session is the quiz session controller. It owns navigation, the
// countdown, the integrity state machine and the single submission.
type Session struct {
	id         string
	test       domain.Test
	candidate  domain.Candidate
	trial      bool
	questions  []domain.Question
	byID       map[int64]int
	startedAt  time.Time
	now        func() time.Time
	onTerminal func(string)

	maxAttempts   int
	tickInterval  time.Duration
	dedupWindow   time.Duration
	notifyTimeout time.Duration

	results   ResultsAPI
	anticheat AntiCheatAPI
	journal   EventJournal
	monitor   *IntegrityMonitor

	mu          sync.Mutex
	state       domain.State
	index       int
	answers     map[int64]int64
	remaining   int
	expired     bool
	attempts    int
	lastLeave   leaveMark
	retry       bool
	result      *domain.SubmissionResult
	blockReason string
	host        Host
	subscribers map[chan domain.SessionEvent]struct{}
	after       []func()

	done     chan struct{}
	doneOnce sync.Once
	pending  sync.WaitGroup
}

// NewSession builds an ACTIVE session with its integrity monitor attached.
func NewSession(cfg SessionConfig, deps SessionDeps) (*Session, error) {
	if len(cfg.Questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxLeaveAttempts <= 0 {
		cfg.MaxLeaveAttempts = defaultMaxLeaveAttempts
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	if deps.Journal == nil {
		deps.Journal = discardJournal{}
	}

	byID := make(map[int64]int, len(cfg.Questions))
	for i, q := range cfg.Questions {
		byID[q.ID] = i
	}

	s := &Session{
		id:            cfg.ID,
		test:          cfg.Test,
		candidate:     cfg.Candidate,
		trial:         cfg.Trial,
		questions:     cfg.Questions,
		byID:          byID,
		startedAt:     cfg.Now(),
		now:           cfg.Now,
		onTerminal:    cfg.OnTerminal,
		maxAttempts:   cfg.MaxLeaveAttempts,
		tickInterval:  cfg.TickInterval,
		dedupWindow:   cfg.DedupWindow,
		notifyTimeout: cfg.NotifyTimeout,
		results:       deps.Results,
		anticheat:     deps.AntiCheat,
		journal:       deps.Journal,
		monitor:       NewIntegrityMonitor(),
		state:         domain.StateActive,
		answers:       make(map[int64]int64),
		remaining:     max(cfg.Test.TimeLimitMinutes*60, 0),
		subscribers:   make(map[chan domain.SessionEvent]struct{}),
		done:          make(chan struct{}),
	}
	s.monitor.Attach(s.onSignal)
	s.record(domain.JournalStarted, 0, fmt.Sprintf("questions=%d trial=%t", len(cfg.Questions), cfg.Trial))
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Done is closed once the session reaches CLOSED or BLOCKED.
func (s *Session) Done() <-chan struct{} { return s.done }

// Monitor exposes the integrity listener set, mainly for tests.
func (s *Session) Monitor() *IntegrityMonitor { return s.monitor }

// AttachHost binds the host shell used to terminate a blocked session.
func (s *Session) AttachHost(h Host) {
	s.mu.Lock()
	s.host = h
	s.mu.Unlock()
}

// View returns a snapshot of the session.
func (s *Session) View() domain.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Result returns the graded result once the session is CLOSED.
func (s *Session) Result() (domain.SubmissionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return domain.SubmissionResult{}, false
	}
	return *s.result, true
}

// Drain waits for in-flight best-effort notifications.
func (s *Session) Drain() {
	s.pending.Wait()
}

// HandleIntegrity feeds a raw client signal through the integrity monitor.
func (s *Session) HandleIntegrity(ctx context.Context, ev IntegrityEvent) bool {
	return s.monitor.Dispatch(ctx, ev)
}

func (s *Session) onSignal(ctx context.Context, sig Signal, ev IntegrityEvent) {
	s.mu.Lock()
	defer s.unlock()

	if !s.state.Counting() {
		return
	}
	switch sig {
	case SignalFocus:
		if s.state == domain.StateWarned {
			s.broadcastLocked(domain.SessionEvent{Type: domain.EventPrompt, Prompt: LeavePrompt})
		}
	case SignalDevTools:
		s.blockLocked(ReasonDevTools, true)
	case SignalLeave:
		s.leaveAttemptLocked(ev.Kind)
	}
}

func (s *Session) leaveAttemptLocked(kind EventKind) {
	now := s.now()
	if s.isDuplicateLeaveLocked(kind, now) {
		return
	}
	s.lastLeave = leaveMark{kind: kind, at: now}
	s.attempts++
	attempts := s.attempts

	s.notifyLeave(attempts)
	s.record(domain.JournalLeaveAttempt, attempts, string(kind))

	if attempts >= s.maxAttempts {
		s.blockLocked(LeaveAttemptsReason(attempts), true)
		return
	}
	s.state = domain.StateWarned
	s.record(domain.JournalWarned, attempts, "")
	s.broadcastLocked(domain.SessionEvent{Type: domain.EventPrompt, Prompt: LeavePrompt})
}

func (s *Session) isDuplicateLeaveLocked(kind EventKind, now time.Time) bool {
	if s.dedupWindow <= 0 || s.lastLeave.kind == "" || s.lastLeave.kind == kind {
		return false
	}
	return now.Sub(s.lastLeave.at) <= s.dedupWindow
}

// CancelLeave dismisses the leave prompt. The attempt count is kept.
func (s *Session) CancelLeave() {
	s.mu.Lock()
	defer s.unlock()
	if s.state != domain.StateWarned {
		return
	}
	s.state = domain.StateActive
	s.record(domain.JournalLeaveCancel, s.attempts, "")
	s.broadcastLocked(domain.SessionEvent{Type: domain.EventState})
}

// ConfirmLeave blocks the candidate after they chose to leave.
func (s *Session) ConfirmLeave() {
	s.mu.Lock()
	defer s.unlock()
	if s.state != domain.StateWarned {
		return
	}
	s.blockLocked(ReasonLeaveConfirmed, true)
}

// applyRemoteBlock mirrors an authoritative backend block locally.
func (s *Session) applyRemoteBlock(reason string) {
	s.mu.Lock()
	defer s.unlock()
	if s.state.Terminal() {
		return
	}
	if reason == "" {
		reason = BlockedMessage
	}
	s.blockLocked(reason, false)
}

func (s *Session) blockLocked(reason string, notifyServer bool) {
	s.state = domain.StateBlocked
	s.blockReason = reason
	s.monitor.Detach()
	if notifyServer {
		s.notifyBlock(reason)
	}
	s.record(domain.JournalBlocked, s.attempts, reason)
	s.broadcastLocked(domain.SessionEvent{Type: domain.EventBlocked, Reason: reason})
	if s.host == nil || !s.host.Close(reason) {
		s.broadcastLocked(domain.SessionEvent{Type: domain.EventTerminate, Reason: BlockedMessage + ": " + reason})
	}
	s.terminateLocked()
}

// terminateLocked stops the countdown and releases subscribers.
func (s *Session) terminateLocked() {
	s.doneOnce.Do(func() { close(s.done) })
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	if s.onTerminal != nil {
		id, cb := s.id, s.onTerminal
		s.after = append(s.after, func() { cb(id) })
	}
}

// unlock releases the mutex and runs deferred callbacks outside of it.
func (s *Session) unlock() {
	after := s.after
	s.after = nil
	s.mu.Unlock()
	for _, fn := range after {
		fn()
	}
}

func (s *Session) notifyLeave(attempts int) {
	if s.anticheat == nil {
		return
	}
	s.bestEffort("notify leave attempt", func(ctx context.Context) error {
		ack, err := s.anticheat.NotifyLeaveAttempt(ctx, s.test.ID, s.candidate.TelegramID, attempts)
		if err != nil {
			var blocked *domain.BlockedError
			if errors.As(err, &blocked) {
				s.applyRemoteBlock(blocked.Reason)
				return nil
			}
			if errors.Is(err, domain.ErrBlocked) {
				s.applyRemoteBlock("")
				return nil
			}
			return err
		}
		if ack.Blocked {
			s.applyRemoteBlock(ack.Reason)
		}
		return nil
	})
}

func (s *Session) notifyBlock(reason string) {
	if s.anticheat == nil {
		return
	}
	s.bestEffort("block user", func(ctx context.Context) error {
		return s.anticheat.BlockUser(ctx, s.test.ID, s.candidate.TelegramID, reason)
	})
}

func (s *Session) record(kind domain.JournalKind, attempts int, detail string) {
	entry := domain.JournalEntry{
		SessionID:  s.id,
		TestID:     s.test.ID,
		TelegramID: s.candidate.TelegramID,
		Kind:       kind,
		Attempts:   attempts,
		Detail:     detail,
		At:         s.now(),
	}
	s.bestEffort("journal "+string(kind), func(ctx context.Context) error {
		return s.journal.Append(ctx, entry)
	})
}

// bestEffort runs fn detached from the caller; failures are logged only.
func (s *Session) bestEffort(name string, fn func(ctx context.Context) error) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Printf("session %s: %s failed: %v", s.id, name, err)
		}
	}()
}

// Subscribe returns a channel of session events. The channel is closed when
// the session terminates or cancel is called.
func (s *Session) Subscribe() (<-chan domain.SessionEvent, func()) {
	ch := make(chan domain.SessionEvent, 8)

	s.mu.Lock()
	ch <- domain.SessionEvent{Type: domain.EventState, View: s.viewLocked()}
	if s.state.Terminal() {
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked(ev domain.SessionEvent) {
	ev.View = s.viewLocked()
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// slow subscriber: drop the oldest update
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func (s *Session) viewLocked() domain.SessionView {
	view := domain.SessionView{
		SessionID:        s.id,
		TestID:           s.test.ID,
		TestTitle:        s.test.Title,
		State:            s.state,
		CurrentIndex:     s.index,
		TotalQuestions:   len(s.questions),
		Answered:         len(s.answers),
		RemainingSeconds: s.remaining,
		LeaveAttempts:    s.attempts,
		IsTrial:          s.trial,
		PromptVisible:    s.state == domain.StateWarned,
		Submitting:       s.state == domain.StateSubmitting,
		Blocked:          s.state == domain.StateBlocked,
		CanGoPrevious:    s.index > 0,
		RetryAvailable:   s.retry && s.state == domain.StateActive,
		StartedAt:        s.startedAt,
	}
	if !s.state.Terminal() {
		q := s.questions[s.index]
		view.Question = &q
		view.SelectedOptionID = s.answers[q.ID]
		_, answered := s.answers[q.ID]
		view.CanGoNext = answered && s.index < len(s.questions)-1
	}
	return view
}
