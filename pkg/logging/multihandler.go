// Package logging configures structured logging for move-alarm.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// MultiHandler fans a record out to several slog handlers, e.g. the
// terminal and a DailyFile.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler returns a handler writing to every handler given.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

// Enabled reports whether any underlying handler accepts level.
func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes a copy of the record to each enabled handler.
// A failing handler does not stop the others.
//
//nolint:gocritic // slog.Handler signature takes the record by value
func (h *MultiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		_ = handler.Handle(ctx, record.Clone()) //nolint:errcheck // keep fanning out
	}
	return nil
}

// WithAttrs returns a MultiHandler whose handlers all carry attrs.
func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(handler slog.Handler) slog.Handler { return handler.WithAttrs(attrs) })
}

// WithGroup returns a MultiHandler whose handlers all open group name.
func (h *MultiHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(handler slog.Handler) slog.Handler { return handler.WithGroup(name) })
}

func (h *MultiHandler) derive(fn func(slog.Handler) slog.Handler) *MultiHandler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = fn(handler)
	}
	return &MultiHandler{handlers: handlers}
}

const dayLayout = "2006-01-02"

// DailyFile is an io.Writer appending to <dir>/<name>-YYYY-MM-DD.log. A
// write on a new day closes the old file and opens the next one, so a
// long-running alarm does not keep logging into yesterday's file.
type DailyFile struct {
	f    *os.File
	now  func() time.Time
	dir  string
	name string
	day  string
	mu   sync.Mutex
}

// OpenDailyFile creates dir if needed and opens today's file.
func OpenDailyFile(dir, name string, now func() time.Time) (*DailyFile, error) {
	if now == nil {
		now = time.Now
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	d := &DailyFile{dir: dir, name: name, now: now}
	if err := d.rotate(now().Format(dayLayout)); err != nil {
		return nil, err
	}
	return d, nil
}

// Path returns the file currently written to.
func (d *DailyFile) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path(d.day)
}

func (d *DailyFile) path(day string) string {
	return filepath.Join(d.dir, fmt.Sprintf("%s-%s.log", d.name, day))
}

// Write implements io.Writer.
func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if day := d.now().Format(dayLayout); day != d.day {
		if err := d.rotate(day); err != nil {
			return 0, err
		}
	}
	if d.f == nil {
		return 0, os.ErrClosed
	}
	return d.f.Write(p)
}

// Close closes the current file. Later writes fail with os.ErrClosed
// until the day changes.
func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

// rotate switches to the file for day. Callers hold d.mu, except during
// construction.
func (d *DailyFile) rotate(day string) error {
	f, err := os.OpenFile(d.path(day), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if d.f != nil {
		_ = d.f.Close() //nolint:errcheck // switching to the new day's file
	}
	d.f = f
	d.day = day
	return nil
}
