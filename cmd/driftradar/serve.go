package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/observability"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/server"
)

func newServeCmd(gf *globalFlags) *cobra.Command {
	var addr, staticDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(gf)
			if err != nil {
				return err
			}
			if addr != "" {
				a.cfg.Addr = addr
			}
			if staticDir != "" {
				a.cfg.StaticDir = staticDir
			}
			return runServe(cmd.Context(), a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().StringVar(&staticDir, "static-dir", "", "directory holding the built web UI")
	return cmd
}

func runServe(ctx context.Context, a *app) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.InitTracing(ctx, observability.TraceConfig{
		ServiceName:    a.cfg.ServiceName,
		ServiceVersion: version,
		Exporter:       a.cfg.TraceExporter,
		OTLPEndpoint:   a.cfg.OTLPEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			a.logger.Warn("tracing shutdown", slog.String("error", err.Error()))
		}
	}()

	srv := server.New(a.svc, server.Options{
		Version:   versionInfo(a),
		StaticDir: a.cfg.StaticDir,
		RateLimit: a.cfg.RateLimit,
		RateBurst: a.cfg.RateBurst,
		Metrics:   a.metrics,
	})
	a.logger.Info("starting server",
		slog.String("addr", a.cfg.Addr),
		slog.String("provider", a.cfg.Provider),
		slog.String("model", a.cfg.Model))
	return srv.Run(ctx, a.cfg.Addr)
}

func versionInfo(a *app) server.VersionInfo {
	return server.VersionInfo{
		GitSHA:      a.cfg.GitSHA,
		BuildTime:   a.cfg.BuildTime,
		Model:       a.cfg.Model,
		Provider:    a.cfg.Provider,
		ServiceName: a.cfg.ServiceName,
	}
}
