package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSetup_StderrOnly(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var stderr bytes.Buffer
	logger, closeFn, err := Setup(Options{Stderr: &stderr})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer closeFn() //nolint:errcheck // test cleanup

	logger.Debug("hidden")
	logger.Info("visible")

	if strings.Contains(stderr.String(), "hidden") {
		t.Error("debug record logged without Debug option")
	}
	if !strings.Contains(stderr.String(), "visible") {
		t.Errorf("info record missing: %s", stderr.String())
	}
}

func TestSetup_DailyFile(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	dir := filepath.Join(t.TempDir(), "logs")
	day := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

	var stderr bytes.Buffer
	logger, closeFn, err := Setup(Options{
		Stderr: &stderr,
		Dir:    dir,
		Name:   "move-alarm",
		Debug:  true,
		Now:    func() time.Time { return day },
	})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	logger.Debug("[ALARM] Wait tick", "remaining", 3)
	if err := closeFn(); err != nil {
		t.Fatalf("close error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "move-alarm-2026-10-19.log"))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "remaining=3") {
		t.Errorf("log file missing record: %s", data)
	}
	if !strings.Contains(stderr.String(), "remaining=3") {
		t.Errorf("stderr missing record: %s", stderr.String())
	}
}

func TestSetup_UnwritableDirFallsBackToStderr(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	// A regular file where the directory should be.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	var stderr bytes.Buffer
	logger, closeFn, err := Setup(Options{Stderr: &stderr, Dir: filepath.Join(blocker, "logs")})
	if err == nil {
		t.Fatal("Setup() should report the unusable log directory")
	}
	defer closeFn() //nolint:errcheck // test cleanup

	logger.Info("still logging")
	if !strings.Contains(stderr.String(), "still logging") {
		t.Errorf("stderr logging should survive file failure: %s", stderr.String())
	}
}
