package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/move-alarm/pkg/config"
)

func newConfigCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Write a default configuration file",
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := config.WriteDefault(flags.configPath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", flags.configPath)
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file path",
			RunE: func(cmd *cobra.Command, _ []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), flags.configPath)
				return nil
			},
		},
	)
	return cmd
}
