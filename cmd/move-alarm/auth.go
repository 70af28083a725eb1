package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/move-alarm/pkg/auth"
	"github.com/codeGROOVE-dev/move-alarm/pkg/config"
	"github.com/codeGROOVE-dev/move-alarm/pkg/safebrowse"
)

func newAuthCmd(flags *globalFlags) *cobra.Command {
	var logout bool
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize move-alarm to download sounds from freesound.org",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.LoadOrDefault(flags.configPath, cmd.OutOrStdout())
			p := newProvider(cfg)
			if logout {
				if err := p.Logout(); err != nil {
					return fmt.Errorf("remove stored token: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			}
			if cfg.ClientID == "" || cfg.ClientSecret == "" {
				return errors.New("set [freesound] client_id and client_secret in the config file first")
			}
			return authorize(cmd.Context(), p, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&logout, "logout", false, "forget the stored token")
	return cmd
}

func authorize(ctx context.Context, p *auth.Provider, in io.Reader, out io.Writer) error {
	state := auth.NewState()
	params := p.AuthorizeParams(state)

	if err := safebrowse.OpenWithParams(ctx, p.AuthorizeURL(), params); err != nil {
		slog.Warn("[AUTH] Could not open browser", "error", err)
		u, werr := safebrowse.WithParams(p.AuthorizeURL(), params)
		if werr != nil {
			return fmt.Errorf("build authorize url: %w", werr)
		}
		fmt.Fprintf(out, "Open this page to authorize move-alarm:\n  %s\n", u)
	} else {
		fmt.Fprintln(out, "Your browser has been opened to authorize move-alarm.")
	}

	fmt.Fprint(out, "Paste the authorization code: ")
	code, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return errors.New("no authorization code entered")
	}

	if err := p.Exchange(ctx, code); err != nil {
		return err
	}
	fmt.Fprintln(out, "Authorized. Enable freesound in the [sounds] section to use it.")
	return nil
}
