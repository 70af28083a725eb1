package sounds

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Resolver picks the file to play. *Source satisfies it.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Stopper halts one playback. It must not invoke the playback's done
// callback and must be safe to call more than once.
type Stopper interface {
	Stop()
}

// Backend starts playing path without blocking. done is called once if,
// and only if, the sound plays to the end by itself.
type Backend interface {
	Start(path string, done func()) (Stopper, error)
}

// Handle identifies one playing sound.
type Handle struct {
	Started time.Time
	stopper Stopper
	done    chan struct{}
	Path    string
	once    sync.Once
	ID      uuid.UUID
	// stopRequested is set when Stop wins the race with Backend.Start.
	stopRequested bool
}

// Done is closed when the sound ends, naturally or by Stop.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) markDone() {
	h.once.Do(func() { close(h.done) })
}

// Player plays sounds and tracks every one still audible. Safe for
// concurrent use.
type Player struct {
	resolver Resolver
	backend  Backend
	handles  []*Handle
	mu       sync.Mutex
}

// NewPlayer returns a Player that asks r for a file and plays it on b.
func NewPlayer(r Resolver, b Backend) *Player {
	return &Player{resolver: r, backend: b}
}

// Play resolves a sound and starts it. The handle is registered before
// playback starts, so IsPlaying is true as soon as Play returns. On any
// error nothing stays registered.
func (p *Player) Play(ctx context.Context) (*Handle, error) {
	path, err := p.resolver.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve sound: %w", err)
	}

	h := &Handle{ID: uuid.New(), Path: path, Started: time.Now(), done: make(chan struct{})}
	p.mu.Lock()
	p.handles = append(p.handles, h)
	p.mu.Unlock()

	st, err := p.backend.Start(path, func() { p.finish(h) })
	if err != nil {
		p.remove(h)
		h.markDone()
		return nil, fmt.Errorf("%w: %s: %w", ErrPlayback, path, err)
	}

	p.mu.Lock()
	h.stopper = st
	stopNow := h.stopRequested
	p.mu.Unlock()
	if stopNow {
		st.Stop()
	}

	slog.Info("[SOUND] Playing", "path", path, "handle", h.ID)
	return h, nil
}

// Stop stops h if it is still playing and reports whether it was.
func (p *Player) Stop(h *Handle) bool {
	if h == nil {
		return false
	}
	p.mu.Lock()
	idx := slices.Index(p.handles, h)
	if idx < 0 {
		p.mu.Unlock()
		return false
	}
	p.handles = slices.Delete(p.handles, idx, idx+1)
	h.stopRequested = true
	st := h.stopper
	p.mu.Unlock()

	// The backend may take its own locks; never hold p.mu here.
	if st != nil {
		st.Stop()
	}
	h.markDone()
	slog.Debug("[SOUND] Stopped", "handle", h.ID)
	return true
}

// StopAll stops every playing sound in the order they were started and
// reports whether there was anything to stop.
func (p *Player) StopAll() bool {
	p.mu.Lock()
	stopping := p.handles
	p.handles = nil
	for _, h := range stopping {
		h.stopRequested = true
	}
	p.mu.Unlock()

	for _, h := range stopping {
		p.mu.Lock()
		st := h.stopper
		p.mu.Unlock()
		if st != nil {
			st.Stop()
		}
		h.markDone()
	}
	if len(stopping) > 0 {
		slog.Info("[SOUND] Stopped all sounds", "count", len(stopping))
	}
	return len(stopping) > 0
}

// IsPlaying reports whether any sound is audible.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles) > 0
}

// Handles returns the playing sounds, oldest first.
func (p *Player) Handles() []*Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.handles)
}

// finish runs when a sound plays to the end.
func (p *Player) finish(h *Handle) {
	if p.remove(h) {
		slog.Debug("[SOUND] Finished", "handle", h.ID)
	}
	h.markDone()
}

func (p *Player) remove(h *Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := slices.Index(p.handles, h)
	if idx < 0 {
		return false
	}
	p.handles = slices.Delete(p.handles, idx, idx+1)
	return true
}
