package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"mslclient/internal/services/identity"
)

func fingerprintCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the client keypair fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, created, err := st.wire.Identity.LoadOrCreate()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Fingerprint: %s\n", identity.Fingerprint(kp))
			if created {
				fmt.Fprintf(cmd.ErrOrStderr(), "Keypair created at %s\n", st.wire.Keypairs.Path())
			}
			return nil
		},
	}
}
