package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/fractiz/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}
		server := api.NewServer(api.Config{
			Addr:            cfg.HTTP.Addr,
			AllowedOrigins:  cfg.HTTP.AllowedOrigins,
			ReadTimeout:     cfg.HTTP.ReadTimeout,
			WriteTimeout:    cfg.HTTP.WriteTimeout,
			ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
			Version:         version,
		}, app.service, logger.Named("http"))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return server.ListenAndServe(gctx)
		})
		g.Go(func() error {
			<-gctx.Done()
			if ctx.Err() != nil {
				logger.Info("shutdown requested")
			}
			return nil
		})

		logger.Info("fractiz serving",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("version", version),
			zap.Int("kcs", len(app.catalog.KCs())),
		)
		if err := g.Wait(); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
}
