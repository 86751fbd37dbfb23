package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mslclient/internal/app"
	"mslclient/internal/config"
	"mslclient/internal/logging"
)

type rootState struct {
	configPath string
	logLevel   string
	wire       *app.Wire
	log        *zap.Logger
}

// close releases what PersistentPreRunE opened. cobra skips post-run hooks
// when RunE fails, so this runs from Root.ExecuteContext instead.
func (st *rootState) close() error {
	var err error
	if st.wire != nil {
		err = st.wire.Close()
		st.wire = nil
	}
	if st.log != nil {
		_ = st.log.Sync()
		st.log = nil
	}
	return err
}

// Root is the msl command tree together with the resources its commands use.
type Root struct {
	*cobra.Command
	st *rootState
}

// ExecuteContext runs the command tree and releases the wiring afterwards,
// whether or not the command failed.
func (r *Root) ExecuteContext(ctx context.Context) error {
	err := r.Command.ExecuteContext(ctx)
	if cerr := r.st.close(); err == nil {
		err = cerr
	}
	return err
}

// Execute runs the CLI with ctx as the command context.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the msl command tree.
func NewRootCommand() *Root {
	st := &rootState{}
	root := &cobra.Command{
		Use:          "msl",
		Short:        "MSL secure session messaging client",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(st.configPath)
			if err != nil {
				return err
			}
			if cfg.MSL.Scheme == config.SchemeWidevine {
				return errors.New("msl.scheme = \"widevine\" needs a decryption device, which the msl CLI does not provide; use \"asymmetric\"")
			}
			if st.logLevel != "" {
				cfg.Logging.Level = st.logLevel
			}
			if st.log, err = logging.NewFromConfig(cfg); err != nil {
				return err
			}
			st.wire, err = app.NewWire(cfg, st.log, nil)
			return err
		},
	}

	root.PersistentFlags().StringVarP(&st.configPath, "config", "c", "", "config file (default ~/.config/mslclient/config.toml)")
	root.PersistentFlags().StringVar(&st.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		negotiateCmd(st),
		requestCmd(st),
		manifestCmd(st),
		licenseCmd(st),
		fingerprintCmd(st),
		cacheCmd(st),
	)
	return &Root{Command: root, st: st}
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
