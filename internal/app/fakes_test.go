package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"quiz-proctor/internal/app"
	"quiz-proctor/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeResults struct {
	mu      sync.Mutex
	calls   []domain.Submission
	errs    []error
	result  domain.SubmissionResult
	entered chan struct{}
	release chan struct{}
}

func (f *fakeResults) SubmitResult(ctx context.Context, submission domain.Submission) (domain.SubmissionResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, submission)
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	return f.result, nil
}

func (f *fakeResults) Calls() []domain.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Submission(nil), f.calls...)
}

type fakeAntiCheat struct {
	mu        sync.Mutex
	notified  []int
	blocked   []string
	ack       domain.LeaveAck
	notifyErr error
	blockErr  error
}

func (f *fakeAntiCheat) NotifyLeaveAttempt(ctx context.Context, testID, telegramID int64, attempts int) (domain.LeaveAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, attempts)
	return f.ack, f.notifyErr
}

func (f *fakeAntiCheat) BlockUser(ctx context.Context, testID, telegramID int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocked = append(f.blocked, reason)
	return f.blockErr
}

func (f *fakeAntiCheat) Notified() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.notified...)
}

func (f *fakeAntiCheat) Blocked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.blocked...)
}

type fakeHost struct {
	available bool
	mu        sync.Mutex
	reasons   []string
}

func (h *fakeHost) Close(reason string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reasons = append(h.reasons, reason)
	return h.available
}

type fixture struct {
	session   *app.Session
	results   *fakeResults
	anticheat *fakeAntiCheat
	clock     *fakeClock
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: 11, Text: "2 + 2?", Options: []domain.Option{{ID: 111, Text: "3"}, {ID: 112, Text: "4"}}},
		{ID: 12, Text: "Capital of Uzbekistan?", Options: []domain.Option{{ID: 121, Text: "Tashkent"}, {ID: 122, Text: "Samarkand"}}},
		{ID: 13, Text: "HTTP 403 means?", Options: []domain.Option{{ID: 131, Text: "Forbidden"}, {ID: 132, Text: "Not found"}}},
	}
}

func newFixture(t *testing.T, timeLimitMinutes int, mutate func(*app.SessionConfig)) fixture {
	clock := newFakeClock()
	results := &fakeResults{result: domain.SubmissionResult{Score: 100, IsPassed: true, CorrectAnswers: 3, TotalQuestions: 3}}
	anticheat := &fakeAntiCheat{}
	cfg := app.SessionConfig{
		ID:        "s-1",
		Test:      domain.Test{ID: 7, Title: "Go developer", TimeLimitMinutes: timeLimitMinutes, PassingScore: 60},
		Candidate: domain.Candidate{ID: 1, TelegramID: 5001},
		Questions: sampleQuestions(),
		Now:       clock.Now,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	session, err := app.NewSession(cfg, app.SessionDeps{Results: results, AntiCheat: anticheat})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return fixture{session: session, results: results, anticheat: anticheat, clock: clock}
}
