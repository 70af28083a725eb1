// Package dedup suppresses repeats of the same event within a time window.
package dedup

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Filter remembers recent event keys. Safe for concurrent use.
type Filter struct {
	seen   *cache.Cache
	window time.Duration
}

// New returns a Filter that lets each key through at most once per window.
func New(window time.Duration) *Filter {
	return &Filter{
		seen:   cache.New(window, 2*window),
		window: window,
	}
}

// Allow reports whether key was not seen within the window, and records it.
func (f *Filter) Allow(key string) bool {
	return f.seen.Add(key, struct{}{}, cache.DefaultExpiration) == nil
}

// Forget drops key so the next event with it is allowed.
func (f *Filter) Forget(key string) {
	f.seen.Delete(key)
}

// Window returns the suppression window.
func (f *Filter) Window() time.Duration {
	return f.window
}
