// Package history records played tracks in SQLite.
package history

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/osa030/radiobox/internal/domain/track"
)

const schema = `CREATE TABLE IF NOT EXISTS plays (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	video_id       TEXT NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	artist         TEXT NOT NULL DEFAULT '',
	duration_sec   INTEGER NOT NULL DEFAULT 0,
	requested_by   TEXT NOT NULL DEFAULT '',
	requester_type TEXT NOT NULL DEFAULT '',
	played_at      INTEGER NOT NULL
)`

const index = `CREATE INDEX IF NOT EXISTS plays_played_at ON plays (played_at)`

// Entry is one recorded play.
type Entry struct {
	ID            int64  `db:"id" json:"id"`
	VideoID       string `db:"video_id" json:"video_id"`
	Title         string `db:"title" json:"title"`
	Artist        string `db:"artist" json:"artist"`
	DurationSec   int    `db:"duration_sec" json:"duration_sec"`
	RequestedBy   string `db:"requested_by" json:"requested_by"`
	RequesterType string `db:"requester_type" json:"requester_type"`
	PlayedAtUnix  int64  `db:"played_at" json:"played_at"`
}

// PlayedAt returns the play time.
func (e Entry) PlayedAt() time.Time {
	return time.Unix(e.PlayedAtUnix, 0)
}

// Store is a SQLite-backed play history.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open history db %s", path)
	}

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		schema,
		index,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "init history db")
		}
	}
	return &Store{db: db}, nil
}

// Record stores a play of qt at playedAt.
func (s *Store) Record(ctx context.Context, qt track.QueuedTrack, playedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO plays (video_id, title, artist, duration_sec, requested_by, requester_type, played_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		qt.Track.ID, qt.Track.Title, qt.Track.Artist, int(qt.Track.Duration.Seconds()),
		qt.RequestedBy(), qt.Requester.Type.String(), playedAt.Unix(),
	)
	return errors.Wrap(err, "record play")
}

// Recent returns up to limit plays, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	entries := make([]Entry, 0, limit)
	err := s.db.SelectContext(ctx, &entries,
		`SELECT id, video_id, title, artist, duration_sec, requested_by, requester_type, played_at
		FROM plays ORDER BY played_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query recent plays")
	}
	return entries, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
