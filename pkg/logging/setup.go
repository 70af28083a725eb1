package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Options controls Setup.
type Options struct {
	// Stderr receives human-oriented log lines. Defaults to os.Stderr.
	Stderr io.Writer
	// Dir holds daily log files. Empty disables file logging.
	Dir string
	// Name prefixes the log file name, e.g. "move-alarm".
	Name  string
	Debug bool
	// Now is used to pick the log file for today. Defaults to time.Now.
	Now func() time.Time
}

// Setup builds a logger writing to stderr and, when Dir is set, to
// <Dir>/<Name>-YYYY-MM-DD.log. It also installs the logger as the slog
// default. The returned close function releases the log file.
//
// A log file that cannot be opened is reported and skipped; stderr
// logging still works.
func Setup(opts Options) (*slog.Logger, func() error, error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Name == "" {
		opts.Name = "move-alarm"
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{AddSource: true, Level: level}

	stderr := slog.NewTextHandler(opts.Stderr, handlerOpts)
	logger := slog.New(stderr)
	closeFn := func() error { return nil }

	if opts.Dir == "" {
		slog.SetDefault(logger)
		return logger, closeFn, nil
	}

	df, fileErr := OpenDailyFile(opts.Dir, opts.Name, opts.Now)
	if fileErr == nil {
		logger = slog.New(NewMultiHandler(stderr, slog.NewTextHandler(df, handlerOpts)))
		closeFn = df.Close
	}

	slog.SetDefault(logger)
	if fileErr != nil {
		logger.Warn("[LOG] File logging disabled", "error", fileErr)
	}
	return logger, closeFn, fileErr
}
