package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExecutionsCommand(ctx *commandContext) *cobra.Command {
	executionsCmd := &cobra.Command{
		Use:   "executions",
		Short: "Control workflow executions",
	}

	executionsCmd.AddCommand(&cobra.Command{
		Use:   "abort <execution-id>",
		Short: "Abort a running execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			execs, err := ctx.executions()
			if err != nil {
				return err
			}
			if err := execs.Abort(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "execution %s aborted\n", args[0])
			return nil
		},
	})

	executionsCmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Time out overdue executions and reap expired tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			execs, err := ctx.executions()
			if err != nil {
				return err
			}
			n, err := execs.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d executions timed out\n", n)
			return nil
		},
	})

	return executionsCmd
}
