package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/move-alarm/pkg/alarm"
	"github.com/codeGROOVE-dev/move-alarm/pkg/config"
	"github.com/codeGROOVE-dev/move-alarm/pkg/sounds"
)

type quietPlayer struct {
	mu      sync.Mutex
	playing bool
}

func (p *quietPlayer) Play(context.Context) (*sounds.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
	return &sounds.Handle{}, nil
}

func (p *quietPlayer) Stop(*sounds.Handle) bool {
	return p.StopAll()
}

func (p *quietPlayer) StopAll() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	had := p.playing
	p.playing = false
	return had
}

func (p *quietPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func isolateDirs(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("HOME", dir)
	t.Setenv("APPDATA", dir)
	t.Setenv("LOCALAPPDATA", dir)
}

func TestHandleCommand(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cfg := config.Config{WaitDuration: 3 * time.Minute, SnoozeDuration: 2 * time.Minute}

	var out bytes.Buffer
	s := alarm.New(cfg, &quietPlayer{}, alarm.WithTick(time.Hour), alarm.WithOutput(&out),
		alarm.WithClock(func() time.Time { return now }))
	defer s.Close()

	steps := []struct {
		line     string
		want     string
		wantQuit bool
	}{
		{line: "status", want: "Alarm not set\n"},
		{line: "snooze", want: "Error: alarm is not set\n"},
		{line: "remove", want: "No alarm to remove\n"},
		{line: "set", want: "Alarm set for 09:03:00\n"},
		{line: "  STATUS ", want: "Alarm set for 09:03:00\n"},
		{line: "snooze", want: "Alarm snoozed until 09:05:00\n"},
		{line: "remove", want: "Alarm removed\n"},
		{line: "", want: ""},
		{line: "dance", want: "Unknown command \"dance\" (set, snooze, remove, status, quit)\n"},
		{line: "quit", wantQuit: true},
	}
	for _, st := range steps {
		out.Reset()
		quit := handleCommand(s, st.line, &out)
		if quit != st.wantQuit {
			t.Errorf("handleCommand(%q) quit = %v, want %v", st.line, quit, st.wantQuit)
		}
		if out.String() != st.want {
			t.Errorf("handleCommand(%q) output = %q, want %q", st.line, out.String(), st.want)
		}
	}
}

func TestHandleCommand_StatusWhileSounding(t *testing.T) {
	p := &quietPlayer{playing: true}
	s := alarm.New(config.Config{WaitDuration: time.Minute, SnoozeDuration: time.Minute}, p)
	defer s.Close()

	var out bytes.Buffer
	handleCommand(s, "status", &out)
	if out.String() != "Alarm is sounding\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestConfigInitAndPath(t *testing.T) {
	isolateDirs(t)
	path := filepath.Join(t.TempDir(), "move-alarm", "config.toml")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"config", "init", "--config", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if _, err := config.Load(path); err != nil {
		t.Errorf("written config does not load: %v", err)
	}

	root = newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"config", "init", "--config", path})
	if err := root.Execute(); err == nil {
		t.Error("second config init should refuse to overwrite")
	}

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"config", "path", "--config", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("config path error = %v", err)
	}
	if strings.TrimSpace(out.String()) != path {
		t.Errorf("config path = %q, want %q", out.String(), path)
	}
}

func TestRunAlarm_QuitFromInput(t *testing.T) {
	isolateDirs(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := config.WriteDefault(path); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	in := strings.NewReader("status\nquit\n")
	done := make(chan error, 1)
	go func() { done <- runAlarm(context.Background(), path, false, in, &out) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runAlarm() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runAlarm did not return after quit")
	}
	if !strings.Contains(out.String(), "Alarm not set") {
		t.Errorf("output = %q", out.String())
	}
}

func TestDesktopNotifier_SuppressesRepeats(t *testing.T) {
	n := newDesktopNotifier()
	var sent []string
	n.notify = func(_, message string) error {
		sent = append(sent, message)
		return nil
	}

	for range 3 {
		if err := n.Notify("Move Alarm", "Time to stretch!"); err != nil {
			t.Fatalf("Notify() error = %v", err)
		}
	}
	if err := n.Notify("Move Alarm", "Time to walk!"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(sent) != 2 {
		t.Errorf("sent %v, want one of each message", sent)
	}
}

func TestLockedWriter_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	w := &lockedWriter{w: &buf}

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				fmt.Fprintln(w, "Alarm removed")
			}
		}()
	}
	wg.Wait()

	if got := strings.Count(buf.String(), "Alarm removed\n"); got != 1000 {
		t.Errorf("got %d complete lines, want 1000", got)
	}
}
