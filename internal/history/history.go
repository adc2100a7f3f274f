// Package history persists day summaries and published post ids, so the
// evening summary can thread under the morning post even across restarts.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sunbot/internal/astro"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// DateKey is the day key format used throughout the store.
const DateKey = "2006-01-02"

// Store is a small SQLite-backed record of days and posts.
type Store struct {
	db *sql.DB
}

// Open creates/opens the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordDay upserts the solar summary for the events' date.
func (s *Store) RecordDay(ctx context.Context, ev *astro.DayEvents) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO days(date, twilight_start, sunrise, sunset, twilight_end, day_length_sec)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(date) DO UPDATE SET
		   twilight_start=excluded.twilight_start,
		   sunrise=excluded.sunrise,
		   sunset=excluded.sunset,
		   twilight_end=excluded.twilight_end,
		   day_length_sec=excluded.day_length_sec`,
		ev.Date.Format(DateKey),
		ev.TwilightStart.Format(time.RFC3339),
		ev.Sunrise.Format(time.RFC3339),
		ev.Sunset.Format(time.RFC3339),
		ev.TwilightEnd.Format(time.RFC3339),
		int64(ev.DayLength.Seconds()),
	)
	return err
}

// DayLength returns the stored day length for a date, if recorded.
func (s *Store) DayLength(ctx context.Context, date time.Time) (time.Duration, bool, error) {
	var sec int64
	err := s.db.QueryRowContext(ctx,
		`SELECT day_length_sec FROM days WHERE date = ?`,
		date.Format(DateKey),
	).Scan(&sec)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return time.Duration(sec) * time.Second, true, nil
}

// RecordPost stores a published message id under the given day and kind.
func (s *Store) RecordPost(ctx context.Context, day time.Time, kind string, messageID int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posts(day, kind, message_id, created_at) VALUES(?,?,?,?)`,
		day.Format(DateKey), kind, messageID, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// FirstPost returns the earliest message id posted on the given day.
func (s *Store) FirstPost(ctx context.Context, day time.Time) (int, bool, error) {
	var id int
	err := s.db.QueryRowContext(ctx,
		`SELECT message_id FROM posts WHERE day = ? ORDER BY id ASC LIMIT 1`,
		day.Format(DateKey),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}
