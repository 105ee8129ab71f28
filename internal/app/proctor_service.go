package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"quiz-proctor/internal/domain"
)

const forgetTimeout = 2 * time.Second

// Settings tune every session the service starts.
type Settings struct {
	MaxLeaveAttempts int
	TickInterval     time.Duration
	DedupWindow      time.Duration
	NotifyTimeout    time.Duration
	Now              func() time.Time
}

// StartRequest is what a candidate's mini-app sends to open a session.
type StartRequest struct {
	TestID     int64  `json:"test_id"`
	TelegramID int64  `json:"telegram_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Trial      bool   `json:"trial"`
}

// ProctorService contains the session lifecycle use cases.
type ProctorService struct {
	directory CandidateDirectory
	questions QuestionSource
	results   ResultsAPI
	anticheat AntiCheatAPI
	journal   EventJournal
	sessions  SessionRepository
	settings  Settings

	runCtx  context.Context
	stopRun context.CancelFunc
	running sync.WaitGroup
}

func NewProctorService(
	directory CandidateDirectory,
	questions QuestionSource,
	results ResultsAPI,
	anticheat AntiCheatAPI,
	journal EventJournal,
	sessions SessionRepository,
	settings Settings,
) *ProctorService {
	runCtx, stop := context.WithCancel(context.Background())
	return &ProctorService{
		directory: directory,
		questions: questions,
		results:   results,
		anticheat: anticheat,
		journal:   journal,
		sessions:  sessions,
		settings:  settings,
		runCtx:    runCtx,
		stopRun:   stop,
	}
}

// Start authenticates the candidate, loads the test and its questions once,
// and starts a new session with its countdown running.
func (p *ProctorService) Start(ctx context.Context, req StartRequest) (*Session, error) {
	candidate, err := p.directory.Authenticate(ctx, req.TelegramID, req.FirstName, req.LastName)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if candidate.IsBlocked {
		return nil, &domain.BlockedError{Reason: candidate.BlockedReason}
	}
	if candidate.TelegramID == 0 {
		candidate.TelegramID = req.TelegramID
	}

	test, err := p.directory.GetTest(ctx, req.TestID)
	if err != nil {
		return nil, fmt.Errorf("load test: %w", err)
	}

	key := domain.QuestionSetKey{
		TestID:     req.TestID,
		TelegramID: req.TelegramID,
		Trial:      req.Trial,
	}
	questions, err := p.questions.GetQuestions(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	session, err := NewSession(SessionConfig{
		ID:               uuid.NewString(),
		Test:             test,
		Candidate:        candidate,
		Trial:            req.Trial,
		Questions:        questions,
		MaxLeaveAttempts: p.settings.MaxLeaveAttempts,
		TickInterval:     p.settings.TickInterval,
		DedupWindow:      p.settings.DedupWindow,
		NotifyTimeout:    p.settings.NotifyTimeout,
		Now:              p.settings.Now,
		OnTerminal: func(id string) {
			p.sessions.Delete(id)
			p.forgetQuestions(key)
		},
	}, SessionDeps{
		Results:   p.results,
		AntiCheat: p.anticheat,
		Journal:   p.journal,
	})
	if err != nil {
		return nil, err
	}

	p.sessions.Put(session)
	p.running.Add(1)
	go func() {
		defer p.running.Done()
		session.Run(p.runCtx)
	}()
	log.Printf("session %s started: test=%d telegram_id=%d trial=%t questions=%d",
		session.ID(), test.ID, candidate.TelegramID, req.Trial, len(questions))
	return session, nil
}

// Get returns a live session.
func (p *ProctorService) Get(sessionID string) (*Session, error) {
	session, ok := p.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// forgetQuestions drops the cached set of a finished attempt; a retake
// must be checked and re-randomised by the API.
func (p *ProctorService) forgetQuestions(key domain.QuestionSetKey) {
	ctx, cancel := context.WithTimeout(context.Background(), forgetTimeout)
	defer cancel()
	if err := p.questions.Forget(ctx, key); err != nil {
		log.Printf("forget questions %s: %v", key, err)
	}
}

// Shutdown stops every countdown and waits for them to exit.
func (p *ProctorService) Shutdown() {
	p.stopRun()
	p.running.Wait()
}
