package cli

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/debemdeboas/kable/internal/server"
	"github.com/debemdeboas/kable/internal/sse"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the choices and submissions HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			events := sse.NewClients()
			a, err := newApp(ctx, cfg, events.Publish)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = cfg.Server.Addr()
			}

			srv := server.New(server.Options{
				Choices:        a.choices,
				Submitter:      a.orchestrator,
				Events:         events,
				Timeout:        cfg.Submission.Timeout,
				Document:       a.documentOptions(nil),
				MaxUploadBytes: int64(cfg.Server.MaxUploadBytes),
			})

			// Warm the cache so the first form load does not wait on the store.
			a.choices.LoadAsync(ctx)

			err = srv.ListenAndServe(ctx, addr)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
