// Package main is the move-alarm command: a reminder that plays a sound
// after a configured interval so you get up and move.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/move-alarm/pkg/config"
	"github.com/codeGROOVE-dev/move-alarm/pkg/logging"
)

// Version information - set during build with -ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type globalFlags struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	var closeLog func() error

	root := &cobra.Command{
		Use:           "move-alarm",
		Short:         "Plays a sound when it's time to get up and move",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			opts := logging.Options{Stderr: cmd.ErrOrStderr(), Name: config.AppName, Debug: flags.debug}
			if dir, err := os.UserCacheDir(); err == nil {
				opts.Dir = filepath.Join(dir, config.AppName, "logs")
			}
			_, c, err := logging.Setup(opts)
			closeLog = c
			if err != nil {
				// Stderr logging still works; carry on without the file.
				slog.Debug("[MAIN] Continuing without log file", "error", err)
			}
			slog.Debug("[MAIN] Starting", "version", version, "commit", commit, "date", date)
			if flags.configPath == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				flags.configPath = p
			}
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if closeLog != nil {
				return closeLog()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default <user config dir>/move-alarm/config.toml)")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newRunCmd(flags),
		newPlayCmd(flags),
		newAuthCmd(flags),
		newConfigCmd(flags),
	)
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
