// Package searchcache keeps remote search results for a TTL, in memory and
// on disk, so repeated alarms don't spend API quota on identical queries.
package searchcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Entry is the on-disk representation of a cached value.
type Entry[T any] struct {
	Data     T         `json:"data"`
	CachedAt time.Time `json:"cached_at"`
}

// Cache is a two-level TTL cache. An empty dir keeps it memory-only.
// Safe for concurrent use.
type Cache[T any] struct {
	mem *cache.Cache
	dir string
	ttl time.Duration
	now func() time.Time
}

// New returns a cache holding values for ttl.
func New[T any](dir string, ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		mem: cache.New(ttl, 2*ttl),
		dir: dir,
		ttl: ttl,
		now: time.Now,
	}
}

// Key derives a stable key from a set of search terms. Order and case
// of the terms do not matter.
func Key(terms []string) string {
	norm := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			norm = append(norm, t)
		}
	}
	slices.Sort(norm)
	norm = slices.Compact(norm)
	h := sha256.Sum256([]byte(strings.Join(norm, "\x00")))
	return hex.EncodeToString(h[:])[:16]
}

// Path returns the file backing key.
func (c *Cache[T]) Path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Get returns the value for key if present and younger than the TTL.
func (c *Cache[T]) Get(key string) (T, bool) {
	var zero T
	if v, ok := c.mem.Get(key); ok {
		if data, ok := v.(T); ok {
			return data, true
		}
	}
	if c.dir == "" {
		return zero, false
	}

	path := c.Path(key)
	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Debug("[CACHE] Read failed", "path", path, "error", err)
		}
		return zero, false
	}

	var e Entry[T]
	if err := json.Unmarshal(b, &e); err != nil {
		slog.Debug("[CACHE] Removing corrupted entry", "path", path, "error", err)
		_ = os.Remove(path) //nolint:errcheck // best effort
		return zero, false
	}

	age := c.now().Sub(e.CachedAt)
	if age >= c.ttl {
		return zero, false
	}

	c.mem.Set(key, e.Data, c.ttl-age)
	return e.Data, true
}

// Put stores v under key.
func (c *Cache[T]) Put(key string, v T) error {
	c.mem.Set(key, v, cache.DefaultExpiration)
	if c.dir == "" {
		return nil
	}

	b, err := json.Marshal(Entry[T]{Data: v, CachedAt: c.now()})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.WriteFile(c.Path(key), b, 0o600); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	return nil
}

// CleanupOldFiles removes cache files not modified within maxAge.
func (c *Cache[T]) CleanupOldFiles(maxAge time.Duration) (cleaned int, errs int) {
	if c.dir == "" {
		return 0, 0
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("[CACHE] Failed to read cache directory for cleanup", "error", err)
			errs++
		}
		return 0, errs
	}

	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			errs++
			continue
		}
		if c.now().Sub(info.ModTime()) > maxAge {
			if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
				errs++
			} else {
				cleaned++
			}
		}
	}

	return cleaned, errs
}
