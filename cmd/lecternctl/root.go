package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var userFlag string

	ctx := newCommandContext(&configFlag, &userFlag)

	rootCmd := &cobra.Command{
		Use:           "lecternctl",
		Short:         "Inspect and operate Lectern workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "config.toml", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "User id owning the workflows")

	rootCmd.AddCommand(newWorkflowsCommand(ctx))
	rootCmd.AddCommand(newExecutionsCommand(ctx))
	rootCmd.AddCommand(newTokensCommand(ctx))

	return rootCmd
}
