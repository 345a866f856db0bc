package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newTokensCommand(ctx *commandContext) *cobra.Command {
	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "Manage suspended job tokens",
	}

	tokensCmd.AddCommand(&cobra.Command{
		Use:   "reap",
		Short: "Delete expired job tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bridge, err := ctx.bridge()
			if err != nil {
				return err
			}
			n, err := bridge.Reap(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d expired tokens removed\n", n)
			return nil
		},
	})

	return tokensCmd
}
