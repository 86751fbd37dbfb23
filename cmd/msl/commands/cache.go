package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func cacheCmd(st *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or reset cached credentials",
	}
	var keypair bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the cached session (and with --keypair, the client keypair)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.wire.Tokens.Clear(cmd.Context()); err != nil {
				return err
			}
			if keypair {
				if err := st.wire.Keypairs.ClearKeypair(); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleared")
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&keypair, "keypair", false, "also remove the client keypair")
	cmd.AddCommand(clearCmd)
	return cmd
}
