package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"mslclient/internal/crypto"
	"mslclient/internal/services/playback"
)

// license <viewable-id> <challenge-file>: resolve the manifest, then exchange
// the raw challenge bytes for a license.
func licenseCmd(st *rootState) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "license <viewable-id> <challenge-file>",
		Short: "Exchange a device challenge for a license",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("viewable id %q: %w", args[0], err)
			}
			challenge, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			sess, err := st.wire.Sessions.Negotiate(ctx)
			if err != nil {
				return err
			}
			m, err := st.wire.Playback.Manifest(ctx, sess, playback.ManifestRequest{ViewableID: id})
			if err != nil {
				return err
			}
			lic, err := st.wire.Playback.Capability(sess, m).License(ctx, "", challenge)
			if err != nil {
				return err
			}
			if out != "" {
				return os.WriteFile(out, lic, 0o600)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), crypto.B64(lic))
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the raw license to a file instead of printing base64")
	return cmd
}
