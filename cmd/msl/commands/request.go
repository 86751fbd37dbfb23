package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"mslclient/internal/protocol/msl"
)

// request <json>: send one application request over the current session.
func requestCmd(st *rootState) *cobra.Command {
	var endpoint, path string
	cmd := &cobra.Command{
		Use:   "request <json>",
		Short: "Send a raw application request and print the decoded result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := json.RawMessage(args[0])
			if !json.Valid(body) {
				return fmt.Errorf("request body is not valid JSON")
			}
			url := endpoint
			switch endpoint {
			case "", "manifest":
				url = st.wire.Config.Endpoints.Manifest
			case "license":
				url = st.wire.Config.Endpoints.License
			}
			sess, err := st.wire.Sessions.Negotiate(cmd.Context())
			if err != nil {
				return err
			}
			out, err := st.wire.Messages.Send(cmd.Context(), sess, url, path, body)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "manifest", "manifest, license or a full URL")
	cmd.Flags().StringVar(&path, "path", msl.DefaultPath, "application path inside the message")
	return cmd
}
