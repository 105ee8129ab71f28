package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // driver: sqlite
	"quiz-proctor/internal/domain"
)

const defaultDSN = "file:proctor.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"

const schema = `
CREATE TABLE IF NOT EXISTS proctor_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL,
  test_id INTEGER NOT NULL,
  telegram_id INTEGER NOT NULL,
  kind TEXT NOT NULL,
  attempts INTEGER NOT NULL DEFAULT 0,
  detail TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL -- unix millis
);

CREATE INDEX IF NOT EXISTS proctor_events_session_idx ON proctor_events (session_id, id);
`

// Journal is a single-file proctoring journal for deployments without
// Postgres.
type Journal struct {
	db *sql.DB
}

// Open opens the database and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Journal, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite serialises writers; one connection also keeps :memory: databases intact
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) Append(ctx context.Context, entry domain.JournalEntry) error {
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO proctor_events (session_id, test_id, telegram_id, kind, attempts, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.SessionID, entry.TestID, entry.TelegramID, string(entry.Kind), entry.Attempts, entry.Detail, at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

// Entries returns a session's entries in insertion order.
func (j *Journal) Entries(ctx context.Context, sessionID string) ([]domain.JournalEntry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT session_id, test_id, telegram_id, kind, attempts, detail, created_at
		 FROM proctor_events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []domain.JournalEntry
	for rows.Next() {
		var (
			e    domain.JournalEntry
			kind string
			ms   int64
		)
		if err := rows.Scan(&e.SessionID, &e.TestID, &e.TelegramID, &kind, &e.Attempts, &e.Detail, &ms); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.Kind = domain.JournalKind(kind)
		e.At = time.UnixMilli(ms).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
