// Package cache remembers pipeline results by input fingerprint.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/yuanying/clip2epub/internal/content"
)

// Fingerprint identifies a pipeline input: the text and the normalized
// options. Options that only differ in unset defaults hash equally.
func Fingerprint(text string, opts content.Options) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	// Options has a fixed field order and only scalar fields, so the JSON
	// encoding is canonical.
	enc, _ := json.Marshal(opts.Normalize())
	h.Write(enc)
	return hex.EncodeToString(h.Sum(nil))
}

// Cache stores processed results in a Store.
type Cache struct {
	store  Store
	group  singleflight.Group
	logger *slog.Logger
}

// New creates a Cache over store.
func New(store Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, logger: logger}
}

// Get returns the cached result for key. Unreadable or empty entries count
// as misses and are removed.
func (c *Cache) Get(ctx context.Context, key string) (*content.Processed, bool) {
	payload, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var p content.Processed
	if err := json.Unmarshal(payload, &p); err != nil || len(p.Chapters) == 0 {
		c.logger.Warn("discarding unreadable cache entry", "key", key, "error", err)
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn("cache delete failed", "key", key, "error", err)
		}
		return nil, false
	}
	return &p, true
}

// Put stores p under key. Failures are logged and otherwise ignored.
func (c *Cache) Put(ctx context.Context, key string, p *content.Processed) {
	payload, err := json.Marshal(p)
	if err != nil {
		c.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.store.Put(ctx, key, payload); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// GetOrProcess returns the cached result for text and opts, or runs process
// once for all concurrent callers with the same fingerprint and caches its
// result. hit reports whether the result came from the cache. Each caller
// gets its own copy.
//
// The shared run is detached from any single caller's cancellation; a
// caller whose ctx ends stops waiting without failing the others.
func (c *Cache) GetOrProcess(ctx context.Context, text string, opts content.Options,
	process func(context.Context) (*content.Processed, error)) (p *content.Processed, hit bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	key := Fingerprint(text, opts)
	if cached, ok := c.Get(ctx, key); ok {
		c.logger.Debug("cache hit", "key", key)
		return cached, true, nil
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if cached, ok := c.Get(flightCtx, key); ok {
			return cached, nil
		}
		out, err := process(flightCtx)
		if err != nil {
			return nil, err
		}
		c.Put(flightCtx, key, out)
		return out, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*content.Processed).Clone(), false, nil
	}
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}
