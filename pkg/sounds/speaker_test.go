package sounds

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// These cases fail before the audio device is opened, so they run
// without one.
func TestSpeakerBackend_UnplayableFiles(t *testing.T) {
	dir := t.TempDir()
	notWAV := filepath.Join(dir, "notes.wav")
	if err := os.WriteFile(notWAV, []byte("this is not RIFF data"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{name: "not a wav file", path: notWAV},
		{name: "missing file", path: filepath.Join(dir, "gone.wav")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlayer(staticResolver{path: tt.path}, NewSpeakerBackend(0))
			h, err := p.Play(context.Background())
			if !errors.Is(err, ErrPlayback) {
				t.Fatalf("Play() error = %v, want ErrPlayback", err)
			}
			if h != nil {
				t.Errorf("Play() handle = %v, want nil", h)
			}
			if p.IsPlaying() {
				t.Error("IsPlaying() = true after a failed start")
			}
			if got := len(p.Handles()); got != 0 {
				t.Errorf("Handles() has %d entries, want 0", got)
			}
		})
	}
}

func TestNewSpeakerBackend_DefaultRate(t *testing.T) {
	if got := NewSpeakerBackend(0).sampleRate; got != DefaultSampleRate {
		t.Errorf("sampleRate = %d, want %d", got, DefaultSampleRate)
	}
	if got := NewSpeakerBackend(22050).sampleRate; got != 22050 {
		t.Errorf("sampleRate = %d, want 22050", got)
	}
}
