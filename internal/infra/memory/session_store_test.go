package memory

import (
	"testing"

	"quiz-proctor/internal/app"
	"quiz-proctor/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	session, err := app.NewSession(app.SessionConfig{
		ID:        "s-1",
		Test:      domain.Test{ID: 7, TimeLimitMinutes: 1},
		Questions: sampleQuestions(),
	}, app.SessionDeps{})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	store.Put(session)
	if got, ok := store.Get("s-1"); !ok || got != session {
		t.Fatalf("expected session present")
	}
	if store.Len() != 1 {
		t.Fatalf("expected one session, got %d", store.Len())
	}

	store.Delete("s-1")
	if _, ok := store.Get("s-1"); ok {
		t.Fatalf("expected session removed")
	}
}
