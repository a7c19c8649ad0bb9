package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"simpit/host/api"
)

func runCmd() *cobra.Command {
	var (
		opts     hostOptions
		httpAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the device and serve telemetry",
		Long: `Connect to the device, perform the handshake, subscribe to the
configured channels and serve cached telemetry over HTTP.

Examples:
  simpit-host run --device /dev/ttyACM0
  simpit-host run --config simpit.toml --http :8080
  simpit-host run --loopback`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine(cmd, &opts, os.Stdout)
			if err != nil {
				return err
			}
			defer e.Close()

			if cmd.Flags().Changed("http") {
				e.cfg.HTTP.Addr = httpAddr
			}
			return runEngine(cmd.Context(), e)
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP listen address, empty disables (overrides config)")

	return cmd
}

func runEngine(ctx context.Context, e *engine) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.host.Run(gctx)
	})

	if e.cfg.Engine.StatusInterval > 0 {
		g.Go(func() error {
			return e.cache.Report(gctx, e.cfg.Engine.StatusInterval)
		})
	}

	if e.cfg.HTTP.Addr != "" {
		srv := api.New(e.host, e.cache, e.metrics, e.log)
		g.Go(func() error {
			return srv.ListenAndServe(gctx, e.cfg.HTTP.Addr)
		})
	}

	err := g.Wait()
	e.log.Info().Msg("Shutting down")
	return err
}
