package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/s0up4200/torrentsnag/config"
	"github.com/s0up4200/torrentsnag/server"
)

var serveAddr string

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API used by the browser extension",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	appConfig.OnReload(func(c *config.Config) {
		level, err := zerolog.ParseLevel(c.Logging.Level)
		if err == nil {
			zerolog.SetGlobalLevel(level)
		}
		logger.Info().Str("level", c.Logging.Level).Msg("Applied configuration reload")
	})
	appConfig.Watch(logger)

	go dupTracker.RunCompaction(ctx, cfg.Tracking.Interval)

	srv := server.NewServer(&server.Dependencies{
		Settings:       settingsSvc,
		Tracker:        dupTracker,
		Sessions:       sessions,
		Orchestrator:   orch,
		Metrics:        metricsMgr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Version:        version,
		Logger:         logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
