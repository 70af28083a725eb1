package sounds

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"
)

// DefaultSampleRate is the rate the speaker is opened at.
const DefaultSampleRate = beep.SampleRate(44100)

// SpeakerBackend decodes WAV files and mixes them on the system audio
// device. The device is opened on first use.
type SpeakerBackend struct {
	initErr    error
	initOnce   sync.Once
	sampleRate beep.SampleRate
}

// NewSpeakerBackend returns a backend mixing at rate.
func NewSpeakerBackend(rate beep.SampleRate) *SpeakerBackend {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	return &SpeakerBackend{sampleRate: rate}
}

func (b *SpeakerBackend) init() error {
	b.initOnce.Do(func() {
		b.initErr = speaker.Init(b.sampleRate, b.sampleRate.N(time.Second/10))
		if b.initErr == nil {
			slog.Debug("[SOUND] Speaker initialized", "sample_rate", int(b.sampleRate))
		}
	})
	return b.initErr
}

// Start implements Backend.
func (b *SpeakerBackend) Start(path string, done func()) (Stopper, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sound: %w", err)
	}
	streamer, format, err := wav.Decode(f)
	if err != nil {
		_ = f.Close() //nolint:errcheck // decode already failed
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if err := b.init(); err != nil {
		_ = streamer.Close() //nolint:errcheck // init already failed
		return nil, fmt.Errorf("initialize speaker: %w", err)
	}

	var s beep.Streamer = streamer
	if format.SampleRate != b.sampleRate {
		s = beep.Resample(4, format.SampleRate, b.sampleRate, streamer)
	}

	pb := &speakerPlayback{streamer: streamer}
	pb.ctrl = &beep.Ctrl{Streamer: beep.Seq(s, beep.Callback(func() {
		pb.release()
		// Callbacks run under the speaker lock; done may need other locks.
		if done != nil {
			go done()
		}
	}))}
	speaker.Play(pb.ctrl)
	return pb, nil
}

type speakerPlayback struct {
	streamer beep.StreamSeekCloser
	ctrl     *beep.Ctrl
	once     sync.Once
}

// Stop detaches the stream from the mixer without running its callback.
func (pb *speakerPlayback) Stop() {
	speaker.Lock()
	pb.ctrl.Streamer = nil
	speaker.Unlock()
	pb.release()
}

func (pb *speakerPlayback) release() {
	pb.once.Do(func() {
		if err := pb.streamer.Close(); err != nil {
			slog.Debug("[SOUND] Failed to close stream", "error", err)
		}
	})
}
