package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-proctor/internal/app"
	"quiz-proctor/internal/domain"
	"quiz-proctor/internal/infra/memory"
)

type fakeDirectory struct {
	candidate domain.Candidate
	test      domain.Test
	testErr   error
}

func (d fakeDirectory) Authenticate(_ context.Context, telegramID int64, _, _ string) (domain.Candidate, error) {
	c := d.candidate
	if c.TelegramID == 0 {
		c.TelegramID = telegramID
	}
	return c, nil
}

func (d fakeDirectory) GetTest(context.Context, int64) (domain.Test, error) {
	if d.testErr != nil {
		return domain.Test{}, d.testErr
	}
	return d.test, nil
}

var errAttemptsUsed = errors.New("All attempts used")

// attemptLoader hands out the sample set until its attempts run out.
type attemptLoader struct {
	mu    sync.Mutex
	calls int
	max   int
}

func (l *attemptLoader) LoadQuestions(context.Context, domain.QuestionSetKey) ([]domain.Question, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.max > 0 && l.calls > l.max {
		return nil, errAttemptsUsed
	}
	return sampleQuestions(), nil
}

func (l *attemptLoader) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type serviceFixture struct {
	service  *app.ProctorService
	loader   *attemptLoader
	store    *memory.SessionStore
	journal  *memory.Journal
	results  *fakeResults
	clock    *fakeClock
	notifier *fakeAntiCheat
}

func newServiceFixture(t *testing.T, dir fakeDirectory) serviceFixture {
	t.Helper()
	if dir.test.ID == 0 {
		dir.test = domain.Test{ID: 7, Title: "Go developer", TimeLimitMinutes: 1}
	}
	clock := newFakeClock()
	store := memory.NewSessionStore()
	journal := memory.NewJournal()
	results := &fakeResults{result: domain.SubmissionResult{Score: 100, IsPassed: true}}
	notifier := &fakeAntiCheat{}
	loader := &attemptLoader{}
	questions := memory.NewQuestionCache(loader, time.Minute)
	service := app.NewProctorService(dir, questions, results, notifier, journal, store, app.Settings{
		TickInterval: time.Hour,
		Now:          clock.Now,
	})
	t.Cleanup(service.Shutdown)
	return serviceFixture{service: service, loader: loader, store: store, journal: journal, results: results, clock: clock, notifier: notifier}
}

func TestStartRegistersSession(t *testing.T) {
	f := newServiceFixture(t, fakeDirectory{})

	session, err := f.service.Start(context.Background(), app.StartRequest{TestID: 7, TelegramID: 5001, Trial: true})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	view := session.View()
	if view.State != domain.StateActive || view.RemainingSeconds != 60 || view.TotalQuestions != 3 || !view.IsTrial {
		t.Fatalf("unexpected view: %+v", view)
	}
	got, err := f.service.Get(session.ID())
	if err != nil || got != session {
		t.Fatalf("expected session registered, got %v", err)
	}
	session.Drain()
	if entries := f.journal.Entries(session.ID()); len(entries) != 1 || entries[0].Kind != domain.JournalStarted {
		t.Fatalf("expected start journal entry, got %+v", entries)
	}
}

func TestStartRejectsBlockedCandidate(t *testing.T) {
	f := newServiceFixture(t, fakeDirectory{candidate: domain.Candidate{IsBlocked: true, BlockedReason: "cheating"}})

	_, err := f.service.Start(context.Background(), app.StartRequest{TestID: 7, TelegramID: 5001})
	var blocked *domain.BlockedError
	if !errors.As(err, &blocked) || blocked.Reason != "cheating" {
		t.Fatalf("expected blocked error, got %v", err)
	}
	if f.store.Len() != 0 {
		t.Fatalf("expected no session for blocked candidate")
	}
}

func TestStartUnknownTest(t *testing.T) {
	f := newServiceFixture(t, fakeDirectory{testErr: domain.ErrTestNotFound})

	_, err := f.service.Start(context.Background(), app.StartRequest{TestID: 9, TelegramID: 5001})
	if !errors.Is(err, domain.ErrTestNotFound) {
		t.Fatalf("expected test not found, got %v", err)
	}
}

func TestTerminalSessionIsRemoved(t *testing.T) {
	f := newServiceFixture(t, fakeDirectory{})

	session, err := f.service.Start(context.Background(), app.StartRequest{TestID: 7, TelegramID: 5001})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := session.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.service.Get(session.ID()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session removed after submit, got %v", err)
	}
	if f.store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", f.store.Len())
	}
}

func TestRetakeAfterSubmitReloadsQuestions(t *testing.T) {
	f := newServiceFixture(t, fakeDirectory{})
	f.loader.max = 1
	req := app.StartRequest{TestID: 7, TelegramID: 5001}

	session, err := f.service.Start(context.Background(), req)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := session.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err = f.service.Start(context.Background(), req)
	if !errors.Is(err, errAttemptsUsed) {
		t.Fatalf("expected retake to reach the loader and fail, got %v", err)
	}
	if n := f.loader.Calls(); n != 2 {
		t.Fatalf("expected two loads, got %d", n)
	}
}

func TestBlockedSessionForgetsQuestions(t *testing.T) {
	f := newServiceFixture(t, fakeDirectory{})
	req := app.StartRequest{TestID: 7, TelegramID: 5001}

	session, err := f.service.Start(context.Background(), req)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	session.HandleIntegrity(context.Background(), blur())
	session.HandleIntegrity(context.Background(), blur())
	session.Drain()
	if state := session.View().State; state != domain.StateBlocked {
		t.Fatalf("expected BLOCKED, got %s", state)
	}

	if _, err := f.service.Start(context.Background(), req); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if n := f.loader.Calls(); n != 2 {
		t.Fatalf("expected questions reloaded after block, got %d loads", n)
	}
}

func TestLeaveAttemptJournalsWarning(t *testing.T) {
	f := newServiceFixture(t, fakeDirectory{})

	session, err := f.service.Start(context.Background(), app.StartRequest{TestID: 7, TelegramID: 5001})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	session.HandleIntegrity(context.Background(), blur())
	session.Drain()

	kinds := make(map[domain.JournalKind]int)
	for _, e := range f.journal.Entries(session.ID()) {
		kinds[e.Kind]++
		if e.Kind == domain.JournalWarned && e.Attempts != 1 {
			t.Fatalf("expected warning at attempt 1, got %+v", e)
		}
	}
	if kinds[domain.JournalLeaveAttempt] != 1 || kinds[domain.JournalWarned] != 1 {
		t.Fatalf("expected leave attempt and warning entries, got %v", kinds)
	}
}

func TestGetUnknownSession(t *testing.T) {
	f := newServiceFixture(t, fakeDirectory{})
	if _, err := f.service.Get("nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestShutdownStopsCountdowns(t *testing.T) {
	f := newServiceFixture(t, fakeDirectory{})
	if _, err := f.service.Start(context.Background(), app.StartRequest{TestID: 7, TelegramID: 5001}); err != nil {
		t.Fatalf("start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		f.service.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("shutdown did not stop the countdown")
	}
}
