package sounds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// CommandBackend plays sounds through the platform's command-line player:
// afplay on macOS, paplay or aplay on Linux, PowerShell on Windows.
type CommandBackend struct {
	lookPath func(string) (string, error)
	goos     string
}

// NewCommandBackend returns a backend for the running platform.
func NewCommandBackend() *CommandBackend {
	return &CommandBackend{lookPath: exec.LookPath, goos: runtime.GOOS}
}

// command returns the player binary and arguments for path.
func (b *CommandBackend) command(path string) (string, []string, error) {
	switch b.goos {
	case "darwin":
		return "afplay", []string{path}, nil
	case "windows":
		//nolint:gocritic // Need literal quotes in PowerShell script
		script := fmt.Sprintf(`(New-Object Media.SoundPlayer "%s").PlaySync()`,
			strings.ReplaceAll(path, `"`, `""`))
		return "powershell", []string{"-WindowStyle", "Hidden", "-c", script}, nil
	default:
		// Prefer PulseAudio, fall back to ALSA.
		if _, err := b.lookPath("paplay"); err == nil {
			return "paplay", []string{path}, nil
		}
		if _, err := b.lookPath("aplay"); err == nil {
			return "aplay", []string{"-q", path}, nil
		}
		return "", nil, fmt.Errorf("no sound player found for %s", b.goos)
	}
}

// Start implements Backend.
func (b *CommandBackend) Start(path string, done func()) (Stopper, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("sound file: %w", err)
	}
	name, args, err := b.command(path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	slog.Debug("[SOUND] Started player command", "command", name, "pid", cmd.Process.Pid)

	go func() {
		err := cmd.Wait()
		stopped := ctx.Err() != nil
		cancel()
		switch {
		case stopped:
			return
		case err != nil:
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				slog.Warn("[SOUND] Player command failed", "command", name, "exit_code", exitErr.ExitCode())
			} else {
				slog.Warn("[SOUND] Player command failed", "command", name, "error", err)
			}
		}
		if done != nil {
			done()
		}
	}()
	return commandPlayback(cancel), nil
}

type commandPlayback context.CancelFunc

func (c commandPlayback) Stop() { c() }
