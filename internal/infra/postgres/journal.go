package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"quiz-proctor/internal/domain"
)

// Journal appends proctoring entries to the proctor_events table.
type Journal struct {
	pool *pgxpool.Pool
}

func NewJournal(pool *pgxpool.Pool) *Journal {
	return &Journal{pool: pool}
}

func (j *Journal) Append(ctx context.Context, entry domain.JournalEntry) error {
	_, err := j.pool.Exec(ctx,
		`INSERT INTO proctor_events (session_id, test_id, telegram_id, kind, attempts, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.SessionID, entry.TestID, entry.TelegramID, string(entry.Kind), entry.Attempts, entry.Detail, entry.At,
	)
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

// Entries returns a session's entries in insertion order.
func (j *Journal) Entries(ctx context.Context, sessionID string) ([]domain.JournalEntry, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT session_id, test_id, telegram_id, kind, attempts, detail, created_at
		 FROM proctor_events WHERE session_id=$1 ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		var kind string
		if err := rows.Scan(&e.SessionID, &e.TestID, &e.TelegramID, &kind, &e.Attempts, &e.Detail, &e.At); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.Kind = domain.JournalKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}
