package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mslclient/internal/crypto"
	"mslclient/internal/logging"
	"mslclient/internal/protocol/msl"
	"mslclient/internal/testsupport/mslserver"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		addr   string
		chunks int
		ttl    time.Duration
		level  string
	)
	cmd := &cobra.Command{
		Use:          "mslserver",
		Short:        "Run a local MSL peer",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(logging.Options{Level: level})
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			srv, err := mslserver.New()
			if err != nil {
				return err
			}
			srv.Chunks = chunks
			srv.TokenTTL = ttl
			srv.Handle(msl.DefaultPath, application(log))

			hs := &http.Server{Addr: addr, Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = hs.Shutdown(shutdown)
			}()
			log.Info("mslserver listening", zap.String("addr", addr), zap.Int("chunks", chunks))
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().IntVar(&chunks, "chunks", 2, "payload chunks per response")
	cmd.Flags().DurationVar(&ttl, "token-ttl", 24*time.Hour, "master token lifetime")
	cmd.Flags().StringVar(&level, "log-level", "info", "log level")
	return cmd
}

type call struct {
	Method      string  `json:"method"`
	ViewableIDs []int64 `json:"viewableIds"`
	Challenges  []struct {
		DataBase64 string `json:"dataBase64"`
	} `json:"challenges"`
}

// application answers manifest and license calls with synthetic results.
func application(log *zap.Logger) mslserver.Handler {
	return func(req json.RawMessage) (any, error) {
		var c call
		if err := json.Unmarshal(req, &c); err != nil {
			return nil, err
		}
		log.Info("application call", zap.String("method", c.Method))
		switch c.Method {
		case "manifest":
			if len(c.ViewableIDs) == 0 {
				return map[string]any{"result": map[string]any{"errorDisplayMessage": "no viewable requested"}}, nil
			}
			id := c.ViewableIDs[0]
			return map[string]any{"result": map[string]any{
				"viewables": []map[string]any{{
					"movieId":           id,
					"playbackContextId": fmt.Sprintf("pbctx-%d", id),
					"drmContextId":      fmt.Sprintf("drmctx-%d", id),
					"psshb64":           []string{crypto.B64([]byte(fmt.Sprintf("pssh-%d", id)))},
					"cert":              crypto.B64([]byte("service-certificate")),
				}},
			}}, nil
		case "license":
			if len(c.Challenges) == 0 {
				return map[string]any{"success": false, "error": "no challenge"}, nil
			}
			challenge, err := crypto.DecodeB64(c.Challenges[0].DataBase64)
			if err != nil {
				return nil, err
			}
			lic := append([]byte("license:"), challenge...)
			return map[string]any{"success": true, "result": map[string]any{
				"licenses": []map[string]any{{"data": crypto.B64(lic)}},
			}}, nil
		default:
			return map[string]any{"result": map[string]any{"errorDisplayMessage": "unsupported method " + c.Method}}, nil
		}
	}
}
