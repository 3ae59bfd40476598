package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nstogner/sitesmith/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the run engine and the sandbox reaper",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		srv := server.New(a.store, a.engine, a.provider)
		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return a.engine.Start(ctx)
		})
		if a.docker != nil {
			g.Go(func() error {
				return a.docker.Run(ctx)
			})
		}
		g.Go(func() error {
			if err := srv.Start(cfg.HTTPAddr); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		err = g.Wait()
		if errors.Is(err, context.Canceled) {
			slog.Info("Shut down")
			return nil
		}
		return err
	},
}
