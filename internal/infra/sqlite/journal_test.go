package sqlite

import (
	"context"
	"testing"
	"time"

	"quiz-proctor/internal/domain"
)

func TestJournalAppendAndRead(t *testing.T) {
	ctx := context.Background()
	j, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer j.Close()

	at := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	entries := []domain.JournalEntry{
		{SessionID: "s-1", TestID: 7, TelegramID: 5001, Kind: domain.JournalStarted, At: at},
		{SessionID: "s-2", TestID: 7, TelegramID: 5002, Kind: domain.JournalStarted, At: at},
		{SessionID: "s-1", TestID: 7, TelegramID: 5001, Kind: domain.JournalLeaveAttempt, Attempts: 1, Detail: "blur", At: at.Add(time.Second)},
		{SessionID: "s-1", TestID: 7, TelegramID: 5001, Kind: domain.JournalBlocked, Attempts: 2, Detail: "Test tark etildi (cheating) - 2 marta urinish", At: at.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if err := j.Append(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := j.Entries(ctx, "s-1")
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[2].Kind != domain.JournalBlocked || got[2].Attempts != 2 || !got[2].At.Equal(at.Add(2*time.Second)) {
		t.Fatalf("unexpected last entry: %+v", got[2])
	}
	if got[1].Detail != "blur" {
		t.Fatalf("unexpected detail: %+v", got[1])
	}
}
