// Package alarm schedules the single move reminder: a cancellable
// background countdown that plays a sound when it runs out.
package alarm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codeGROOVE-dev/move-alarm/pkg/config"
	"github.com/codeGROOVE-dev/move-alarm/pkg/sounds"
)

// ErrNotSet is returned by Snooze when nothing is pending or sounding.
var ErrNotSet = errors.New("alarm is not set")

// Epoch is the target time of an alarm that is not set.
var Epoch = time.Unix(0, 0)

// Player is the part of *sounds.Player the scheduler drives.
type Player interface {
	Play(ctx context.Context) (*sounds.Handle, error)
	Stop(h *sounds.Handle) bool
	StopAll() bool
	IsPlaying() bool
}

// Notifier shows the reminder message when the alarm fires.
type Notifier interface {
	Notify(title, message string) error
}

// waitTask is one countdown. Its context is cancelled by Remove, by a
// Snooze that replaces it, or by Close, which also aborts fetching the
// sound once the countdown is over.
type waitTask struct {
	ctx    context.Context //nolint:containedctx // lives exactly as long as the task
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	// firing is set under Scheduler.mu once the countdown has run out.
	firing bool
}

func (t *waitTask) alive() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

func (t *waitTask) finish() {
	t.once.Do(func() { close(t.done) })
}

// Scheduler owns one alarm. Safe for concurrent use.
type Scheduler struct {
	target   time.Time
	player   Player
	notifier Notifier
	out      io.Writer
	ctx      context.Context //nolint:containedctx // bounds every wait goroutine
	cancel   context.CancelFunc
	now      func() time.Time
	onError  func(error)
	task     atomic.Pointer[waitTask]
	cfg      config.Config
	tick     time.Duration
	mu       sync.Mutex
	// cancelRequested marks the current task as removed. It is cleared
	// when that task exits or a new one starts.
	cancelRequested bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTick sets the length of one countdown step. Defaults to one second.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) { s.tick = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithOutput sets where user-facing notices are written. The background
// wait writes to it too, so w must be safe for concurrent use.
func WithOutput(w io.Writer) Option {
	return func(s *Scheduler) { s.out = w }
}

// WithNotifier sets who is told the reminder message on fire.
func WithNotifier(n Notifier) Option {
	return func(s *Scheduler) { s.notifier = n }
}

// WithErrorHandler receives failures from the background wait, which has
// no caller to return them to. They are always logged as well.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Scheduler) { s.onError = fn }
}

// New returns an idle scheduler.
func New(cfg config.Config, player Player, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:    cfg,
		player: player,
		target: Epoch,
		tick:   time.Second,
		now:    time.Now,
		out:    io.Discard,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) waiting() bool {
	t := s.task.Load()
	return t != nil && t.alive()
}

// pending reports whether a wait is running that has not been removed.
// Callers hold s.mu.
func (s *Scheduler) pending() bool {
	return s.waiting() && !s.cancelRequested
}

// IsSet reports whether the alarm is pending or sounding. It looks at the
// wait goroutine and the player rather than a stored flag.
func (s *Scheduler) IsSet() bool {
	return s.waiting() || s.player.IsPlaying()
}

// Sounding reports whether the alarm is audible.
func (s *Scheduler) Sounding() bool {
	return s.player.IsPlaying()
}

// Time returns the current target, or Epoch when not set.
func (s *Scheduler) Time() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Done is closed when the current wait goroutine exits. It is already
// closed when there is none.
func (s *Scheduler) Done() <-chan struct{} {
	if t := s.task.Load(); t != nil {
		return t.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Set starts the alarm and returns when it will sound. If the alarm is
// already set, the existing target is returned and nothing changes. A
// removed wait that has not exited yet does not count as set.
func (s *Scheduler) Set() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending() || s.player.IsPlaying() {
		return s.target
	}
	s.cancelRequested = false
	s.target = s.now().Add(s.cfg.WaitDuration)
	s.start(s.cfg.WaitDuration)
	slog.Info("[ALARM] Alarm set", "target", s.target)
	return s.target
}

// Snooze postpones the alarm. While counting down it moves the reported
// target by the snooze interval; the running countdown is not restarted.
// Once the countdown is over, whether the sound is still being fetched or
// already playing, it abandons that sound and waits the snooze interval
// again.
func (s *Scheduler) Snooze() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	playing := s.player.IsPlaying()
	if !playing && !s.pending() {
		return time.Time{}, ErrNotSet
	}

	if !playing && !s.task.Load().firing {
		s.target = s.target.Add(s.cfg.SnoozeDuration)
		slog.Info("[ALARM] Alarm snoozed while pending", "target", s.target)
		return s.target, nil
	}

	if playing {
		s.player.StopAll()
	}
	s.cancelRequested = false
	s.target = s.now().Add(s.cfg.SnoozeDuration)
	s.start(s.cfg.SnoozeDuration)
	slog.Info("[ALARM] Alarm snoozed", "target", s.target)
	return s.target, nil
}

// Remove stops a sounding alarm or cancels a pending one, including one
// whose sound is still being fetched. It reports whether there was
// anything to remove.
func (s *Scheduler) Remove() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.player.IsPlaying():
		s.player.StopAll()
		s.target = Epoch
	case s.pending():
		s.cancelRequested = true
		s.task.Load().cancel()
	default:
		return false
	}

	fmt.Fprintln(s.out, "Alarm removed")
	slog.Info("[ALARM] Alarm removed")
	return true
}

// Close ends any wait and stops playback. The scheduler cannot be set
// again afterwards.
func (s *Scheduler) Close() {
	s.cancel()
	s.player.StopAll()
	<-s.Done()
}

// start launches the countdown, replacing any previous task. Callers
// hold s.mu.
func (s *Scheduler) start(d time.Duration) {
	ctx, cancel := context.WithCancel(s.ctx)
	t := &waitTask{ctx: ctx, cancel: cancel, done: make(chan struct{})}
	if old := s.task.Swap(t); old != nil {
		old.cancel()
	}
	go s.wait(t, int(d/time.Second))
}

func (s *Scheduler) wait(t *waitTask, seconds int) {
	defer t.cancel()
	defer t.finish()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[ALARM] Wait goroutine panicked", "panic", r, "stack", string(debug.Stack()))
			s.end(t)
			s.report(fmt.Errorf("alarm task panicked: %v", r))
		}
	}()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for remaining := seconds; remaining > 0; remaining-- {
		select {
		case <-t.ctx.Done():
			slog.Debug("[ALARM] Wait cancelled", "remaining", remaining)
			s.end(t)
			return
		case <-ticker.C:
		}
	}

	s.mu.Lock()
	if t.ctx.Err() != nil {
		s.endLocked(t)
		s.mu.Unlock()
		return
	}
	t.firing = true
	s.mu.Unlock()

	s.fire(t)
}

func (s *Scheduler) fire(t *waitTask) {
	slog.Info("[ALARM] Alarm due, playing sound")
	h, err := s.player.Play(t.ctx)
	if t.ctx.Err() != nil {
		if h != nil {
			s.player.Stop(h)
		}
		slog.Info("[ALARM] Alarm cancelled before its sound started")
		s.end(t)
		return
	}
	if err != nil {
		s.end(t)
		s.report(fmt.Errorf("play alarm sound: %w", err))
	}

	if s.notifier != nil && s.cfg.ReminderText != "" {
		if err := s.notifier.Notify("Move Alarm", s.cfg.ReminderText); err != nil {
			slog.Warn("[ALARM] Failed to show notification", "error", err)
		}
	}
}

// end retires t without sounding.
func (s *Scheduler) end(t *waitTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked(t)
}

// endLocked resets the target if t is still the current task and marks t
// finished in the same critical section, so Set never sees a live task
// with an epoch target. Callers hold s.mu.
func (s *Scheduler) endLocked(t *waitTask) {
	if s.task.Load() == t {
		s.target = Epoch
		s.cancelRequested = false
	}
	t.finish()
}

func (s *Scheduler) report(err error) {
	slog.Error("[ALARM] Background failure", "error", err)
	if s.onError != nil {
		s.onError(err)
	}
}
