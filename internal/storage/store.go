// Package storage persists collection jobs, posts, comments, saved queries,
// export records, and the TTL cache in a single SQLite database.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// timeFormat is the canonical stored timestamp layout.
const timeFormat = time.RFC3339Nano

var schema = []string{
	`CREATE TABLE IF NOT EXISTS saved_queries (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        subreddit TEXT NOT NULL,
        sort TEXT NOT NULL DEFAULT 'hot',
        time_filter TEXT NOT NULL DEFAULT 'all',
        item_limit INTEGER NOT NULL DEFAULT 100,
        query TEXT NOT NULL DEFAULT '',
        include_comments INTEGER NOT NULL DEFAULT 0,
        comment_depth INTEGER NOT NULL DEFAULT 0,
        created_at TEXT NOT NULL,
        last_run_at TEXT
    );`,
	`CREATE TABLE IF NOT EXISTS collection_jobs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        saved_query_id INTEGER REFERENCES saved_queries(id),
        subreddit TEXT NOT NULL,
        status TEXT NOT NULL DEFAULT 'pending',
        total_posts INTEGER NOT NULL DEFAULT 0,
        collected_posts INTEGER NOT NULL DEFAULT 0,
        total_comments INTEGER NOT NULL DEFAULT 0,
        collected_comments INTEGER NOT NULL DEFAULT 0,
        started_at TEXT,
        completed_at TEXT,
        error_message TEXT
    );`,
	`CREATE TABLE IF NOT EXISTS collected_posts (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        job_id INTEGER NOT NULL REFERENCES collection_jobs(id),
        reddit_id TEXT NOT NULL UNIQUE,
        subreddit TEXT NOT NULL,
        title TEXT NOT NULL,
        selftext TEXT NOT NULL DEFAULT '',
        author TEXT NOT NULL DEFAULT '[deleted]',
        score INTEGER NOT NULL DEFAULT 0,
        num_comments INTEGER NOT NULL DEFAULT 0,
        created_utc REAL NOT NULL,
        url TEXT NOT NULL DEFAULT '',
        permalink TEXT NOT NULL DEFAULT '',
        collected_at TEXT NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS collected_comments (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        job_id INTEGER NOT NULL REFERENCES collection_jobs(id),
        reddit_id TEXT NOT NULL UNIQUE,
        post_reddit_id TEXT NOT NULL,
        parent_reddit_id TEXT,
        author TEXT NOT NULL DEFAULT '[deleted]',
        body TEXT NOT NULL DEFAULT '',
        score INTEGER NOT NULL DEFAULT 0,
        created_utc REAL NOT NULL,
        depth INTEGER NOT NULL DEFAULT 0,
        collected_at TEXT NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS export_records (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        job_id INTEGER NOT NULL REFERENCES collection_jobs(id),
        format TEXT NOT NULL,
        file_path TEXT NOT NULL,
        exported_at TEXT NOT NULL,
        record_count INTEGER NOT NULL DEFAULT 0,
        includes_comments INTEGER NOT NULL DEFAULT 0,
        anonymized INTEGER NOT NULL DEFAULT 0
    );`,
	`CREATE TABLE IF NOT EXISTS cache (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL,
        expires_at REAL NOT NULL
    );`,
}

// Open initializes or connects to the database and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) migrate() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(timeFormat)
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

type rowScanner interface {
	Scan(dest ...any) error
}
