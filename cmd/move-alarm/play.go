package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func newPlayCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play one alarm sound now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return playOnce(cmd.Context(), flags.configPath, cmd.OutOrStdout())
		},
	}
}

func playOnce(ctx context.Context, configPath string, out io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	a := newApp(configPath, out)
	h, err := a.player.Play(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Playing %s (Ctrl-C to stop)\n", h.Path)

	select {
	case <-h.Done():
	case <-ctx.Done():
		a.player.Stop(h)
	}
	return nil
}
