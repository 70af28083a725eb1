package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/move-alarm/pkg/alarm"
)

const timeFormat = "15:04:05"

func newRunCmd(flags *globalFlags) *cobra.Command {
	var start bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the alarm and read commands from stdin",
		Long: `Run the alarm interactively. Commands:
  set      start the alarm
  snooze   postpone the alarm
  remove   cancel or silence the alarm
  status   show when the alarm sounds
  quit     exit`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAlarm(cmd.Context(), flags.configPath, start, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&start, "start", false, "set the alarm immediately")
	return cmd
}

func runAlarm(ctx context.Context, configPath string, start bool, in io.Reader, w io.Writer) error {
	// The wait goroutine and the command loop both print.
	out := &lockedWriter{w: w}
	a := newApp(configPath, out)
	sched := alarm.New(a.cfg, a.player,
		alarm.WithOutput(out),
		alarm.WithNotifier(newDesktopNotifier()),
		alarm.WithErrorHandler(func(err error) {
			fmt.Fprintf(out, "Error: %v\n", err)
		}),
	)
	defer sched.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if start {
		handleCommand(sched, "set", out)
	}
	fmt.Fprintln(out, "Type a command (set, snooze, remove, status, quit):")

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
			slog.Warn("[MAIN] Failed to read input", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleCommand(sched, line, out); quit {
				return nil
			}
		}
	}
}

// handleCommand runs one interactive command and reports whether the
// user asked to quit.
func handleCommand(s *alarm.Scheduler, line string, out io.Writer) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
	case "set", "s":
		fmt.Fprintf(out, "Alarm set for %s\n", s.Set().Format(timeFormat))
	case "snooze", "z":
		t, err := s.Snooze()
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return false
		}
		fmt.Fprintf(out, "Alarm snoozed until %s\n", t.Format(timeFormat))
	case "remove", "r":
		if !s.Remove() {
			fmt.Fprintln(out, "No alarm to remove")
		}
	case "status":
		switch {
		case s.Sounding():
			fmt.Fprintln(out, "Alarm is sounding")
		case s.IsSet():
			fmt.Fprintf(out, "Alarm set for %s\n", s.Time().Format(timeFormat))
		default:
			fmt.Fprintln(out, "Alarm not set")
		}
	case "quit", "q", "exit":
		return true
	default:
		fmt.Fprintf(out, "Unknown command %q (set, snooze, remove, status, quit)\n", strings.TrimSpace(line))
	}
	return false
}

// lockedWriter serializes writes to w.
type lockedWriter struct {
	w  io.Writer
	mu sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
