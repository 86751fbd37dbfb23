package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mslclient/internal/crypto"
	"mslclient/internal/services/playback"
)

func manifestCmd(st *rootState) *cobra.Command {
	var (
		profiles []string
		full     bool
	)
	cmd := &cobra.Command{
		Use:   "manifest <viewable-id>",
		Short: "Fetch the playback manifest of a viewable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("viewable id %q: %w", args[0], err)
			}
			sess, err := st.wire.Sessions.Negotiate(cmd.Context())
			if err != nil {
				return err
			}
			m, err := st.wire.Playback.Manifest(cmd.Context(), sess, playback.ManifestRequest{ViewableID: id, Profiles: profiles})
			if err != nil {
				return err
			}
			if full {
				return printJSON(cmd.OutOrStdout(), m.Viewable)
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"viewableId":        m.ViewableID,
				"playbackContextId": m.PlaybackContextID,
				"drmContextId":      m.DRMContextID,
				"pssh":              crypto.B64(m.PSSH),
				"cert":              crypto.B64(m.Certificate),
			})
		},
	}
	cmd.Flags().StringSliceVar(&profiles, "profile", nil, "stream profile to request (repeatable)")
	cmd.Flags().BoolVar(&full, "full", false, "print the whole viewable document")
	return cmd
}
