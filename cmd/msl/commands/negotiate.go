package commands

import (
	"time"

	"github.com/spf13/cobra"

	"mslclient/internal/domain"
)

func negotiateCmd(st *rootState) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "negotiate",
		Short: "Establish a session, reusing a cached one unless --force",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				sess domain.Session
				err  error
			)
			if force {
				sess, err = st.wire.Sessions.Renegotiate(cmd.Context())
			} else {
				sess, err = st.wire.Sessions.Negotiate(cmd.Context())
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"identity":       sess.Identity,
				"sequencenumber": sess.Token.SequenceNumber,
				"expiration":     sess.Token.ExpiresAt().UTC().Format(time.RFC3339),
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "ignore the cache and perform a handshake")
	return cmd
}
