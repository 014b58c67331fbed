// Package history records produced books, most recent first.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultLimit bounds the in-memory log and listings without an explicit limit.
const DefaultLimit = 100

// Entry describes one produced EPUB.
type Entry struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Format    string    `json:"format"`
	Chapters  int       `json:"chapters"`
	Size      int64     `json:"size"`
	Author    string    `json:"author"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store appends entries and lists them newest first.
type Store interface {
	Add(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// MemoryStore keeps the last capacity entries.
type MemoryStore struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
}

// NewMemoryStore creates a MemoryStore. Non-positive capacity uses DefaultLimit.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultLimit
	}
	return &MemoryStore{capacity: capacity}
}

func (s *MemoryStore) Add(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	if over := len(s.entries) - s.capacity; over > 0 {
		s.entries = append([]Entry(nil), s.entries[over:]...)
	}
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]Entry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS conversions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	path       TEXT NOT NULL,
	title      TEXT NOT NULL,
	format     TEXT NOT NULL,
	chapters   INTEGER NOT NULL,
	size       INTEGER NOT NULL,
	author     TEXT NOT NULL,
	tags       TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversions_created ON conversions(created_at);
`

// SQLiteStore keeps entries in the conversions table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the table if needed. db stays owned by the caller.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Add(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversions (path, title, format, chapters, size, author, tags, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Path, e.Title, e.Format, e.Chapters, e.Size, e.Author, strings.Join(e.Tags, ","), e.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record conversion: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, title, format, chapters, size, author, tags, created_at
		 FROM conversions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			tags    string
			created int64
		)
		if err := rows.Scan(&e.Path, &e.Title, &e.Format, &e.Chapters, &e.Size, &e.Author, &tags, &created); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if tags != "" {
			e.Tags = strings.Split(tags, ",")
		}
		e.CreatedAt = time.Unix(0, created)
		out = append(out, e)
	}
	return out, rows.Err()
}
