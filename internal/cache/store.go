package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Store keeps encoded payloads by fingerprint. Implementations are safe for
// concurrent use and publish whole entries only.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

const (
	DefaultMaxEntries = 100
	DefaultTTL        = 24 * time.Hour
)

// MemoryStore is a bounded LRU whose entries expire after a TTL.
type MemoryStore struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryStore creates a MemoryStore. Non-positive arguments use the defaults.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{lru: expirable.NewLRU[string, []byte](maxEntries, nil, ttl)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, payload []byte) error {
	s.lru.Add(key, append([]byte(nil), payload...))
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.lru.Remove(key)
	return nil
}

func (s *MemoryStore) Close() error {
	s.lru.Purge()
	return nil
}

// Len is the number of live entries.
func (s *MemoryStore) Len() int {
	return s.lru.Len()
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS conversion_cache (
	fingerprint TEXT PRIMARY KEY,
	payload     BLOB NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversion_cache_created ON conversion_cache(created_at);
`

// SQLiteStore persists entries in the conversion_cache table. Rows older
// than the TTL are ignored and pruned; the newest maxEntries rows are kept.
type SQLiteStore struct {
	db         *sql.DB
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

// NewSQLiteStore creates the table if needed. The store does not own db;
// Close leaves it open for other users of the same file.
func NewSQLiteStore(db *sql.DB, maxEntries int, ttl time.Duration) (*SQLiteStore, error) {
	if _, err := db.Exec(cacheSchema); err != nil {
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SQLiteStore{db: db, maxEntries: maxEntries, ttl: ttl, now: time.Now}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM conversion_cache WHERE fingerprint = ? AND created_at >= ?`,
		key, s.cutoff()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return payload, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversion_cache (fingerprint, payload, created_at) VALUES (?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		key, payload, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return s.prune(ctx)
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversion_cache WHERE fingerprint = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return nil
}

func (s *SQLiteStore) cutoff() int64 {
	return s.now().Add(-s.ttl).UnixNano()
}

func (s *SQLiteStore) prune(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversion_cache WHERE created_at < ?`, s.cutoff()); err != nil {
		return fmt.Errorf("failed to prune expired entries: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM conversion_cache WHERE fingerprint NOT IN (
			SELECT fingerprint FROM conversion_cache ORDER BY created_at DESC LIMIT ?
		)`, s.maxEntries)
	if err != nil {
		return fmt.Errorf("failed to evict old entries: %w", err)
	}
	return nil
}
